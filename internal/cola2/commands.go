package cola2

import (
	"encoding/binary"

	"firestige.xyz/safetyscanner/internal/core"
	"firestige.xyz/safetyscanner/internal/core/decoder"
)

// Variable indices.
const (
	IndexTypeCode           = 13
	IndexDeviceName         = 17
	IndexFirmwareVersion    = 18
	IndexOrderNumber        = 19
	IndexSerialNumber       = 22
	IndexStatusOverview     = 23
	IndexConfigMetadata     = 28
	IndexApplicationName    = 32
	IndexProjectName        = 33
	IndexUserName           = 36
	IndexDeviceStatus       = 51
	IndexRequiredUserAction = 69
	IndexPersistentConfig   = 177
	IndexCurrentConfig      = 178
	IndexLatestTelegram     = 179 // + channel
	IndexMonitoringCase     = 2101
	IndexFieldHeader        = 0x2710
	IndexFieldGeometry      = 0x2810
)

// Method indices.
const (
	MethodFindMe             = 0x000E
	MethodChangeCommSettings = 0x00B0
)

// Enumeration bounds.
const (
	MaxFields          = 128
	MaxMonitoringCases = 254
	MaxChannels        = 4
)

// Session defaults.
const (
	DefaultHeartbeatTimeout = 60 // seconds
	DefaultClientID         = 1
)

// NewCreateSession builds the session opening command. The assigned session
// id is written to out.
func NewCreateSession(heartbeat uint8, clientID uint32, out *uint32) *CreateSessionCommand {
	return &CreateSessionCommand{heartbeat: heartbeat, clientID: clientID, out: out}
}

// NewCloseSession builds the session closing command.
func NewCloseSession() CloseSessionCommand { return CloseSessionCommand{} }

// NewChangeCommSettingsCommand configures a UDP output channel.
func NewChangeCommSettingsCommand(s core.CommSettings) *MethodCommand {
	return &MethodCommand{name: "change_comm_settings", index: MethodChangeCommSettings, args: s.Encode()}
}

// NewFindMeCommand makes the device display blink for the given seconds.
func NewFindMeCommand(blinkSeconds uint16) *MethodCommand {
	return &MethodCommand{
		name:        "find_me",
		index:       MethodFindMe,
		args:        binary.LittleEndian.AppendUint16(nil, blinkSeconds),
		noSessionID: true,
	}
}

func NewTypeCodeCommand(out *core.TypeCode) *VariableCommand {
	return newVariable("type_code", IndexTypeCode, func(b *core.Block) { *out = parseTypeCode(b) })
}

func NewDeviceNameCommand(out *core.DeviceName) *VariableCommand {
	return newVariable("device_name", IndexDeviceName, func(b *core.Block) { out.Name = readString(b, 0) })
}

func NewSerialNumberCommand(out *core.SerialNumber) *VariableCommand {
	return newVariable("serial_number", IndexSerialNumber, func(b *core.Block) { out.SerialNumber = readString(b, 0) })
}

func NewOrderNumberCommand(out *core.OrderNumber) *VariableCommand {
	return newVariable("order_number", IndexOrderNumber, func(b *core.Block) { out.OrderNumber = readString(b, 0) })
}

// NewApplicationNameCommand reads the application name, which follows four
// reserved bytes.
func NewApplicationNameCommand(out *core.ApplicationName) *VariableCommand {
	return newVariable("application_name", IndexApplicationName, func(b *core.Block) { out.Name = readString(b, 4) })
}

func NewProjectNameCommand(out *core.ProjectName) *VariableCommand {
	return newVariable("project_name", IndexProjectName, func(b *core.Block) { out.Name = readString(b, 0) })
}

func NewUserNameCommand(out *core.UserName) *VariableCommand {
	return newVariable("user_name", IndexUserName, func(b *core.Block) { out.Name = readString(b, 0) })
}

func NewFirmwareVersionCommand(out *core.FirmwareVersion) *VariableCommand {
	return newVariable("firmware_version", IndexFirmwareVersion, func(b *core.Block) {
		*out = core.FirmwareVersion{
			VersionIndicator: b.Uint8(0),
			Major:            b.Uint8(1),
			Minor:            b.Uint8(2),
			Release:          b.Uint8(3),
		}
	})
}

func NewConfigMetadataCommand(out *core.ConfigMetadata) *VariableCommand {
	return newVariable("config_metadata", IndexConfigMetadata, func(b *core.Block) { *out = parseConfigMetadata(b) })
}

func NewStatusOverviewCommand(out *core.StatusOverview) *VariableCommand {
	return newVariable("status_overview", IndexStatusOverview, func(b *core.Block) { *out = parseStatusOverview(b) })
}

func NewDeviceStatusCommand(out *core.DeviceStatus) *VariableCommand {
	return newVariable("device_status", IndexDeviceStatus, func(b *core.Block) { *out = core.DeviceStatus(b.Uint8(0)) })
}

func NewRequiredUserActionCommand(out *core.RequiredUserAction) *VariableCommand {
	return newVariable("required_user_action", IndexRequiredUserAction, func(b *core.Block) {
		*out = parseRequiredUserAction(b)
	})
}

// NewLatestTelegramCommand reads the most recent data telegram of a channel.
// The channel must be below MaxChannels.
func NewLatestTelegramCommand(out *core.Data, channel uint8) *VariableCommand {
	return &VariableCommand{
		name:  "latest_telegram",
		index: IndexLatestTelegram + uint16(channel),
		decode: func(b *core.Block) error {
			data, err := decoder.DecodeData(core.WrapBuffer(b.Bytes(0, b.Len())))
			*out = data
			return err
		},
	}
}

func NewPersistentConfigCommand(out *core.ConfigData) *VariableCommand {
	return newVariable("persistent_config", IndexPersistentConfig, func(b *core.Block) { *out = parseConfigData(b) })
}

func NewCurrentConfigCommand(out *core.ConfigData) *VariableCommand {
	return newVariable("current_config", IndexCurrentConfig, func(b *core.Block) { *out = parseConfigData(b) })
}

// NewFieldHeaderCommand reads the header of field i into out.
func NewFieldHeaderCommand(out *core.FieldData, i uint16) *VariableCommand {
	return newVariable("field_header", IndexFieldHeader+i, func(b *core.Block) { parseFieldHeader(b, out) })
}

// NewFieldGeometryCommand reads the contour of field i into out.
func NewFieldGeometryCommand(out *core.FieldData, i uint16) *VariableCommand {
	return newVariable("field_geometry", IndexFieldGeometry+i, func(b *core.Block) { parseFieldGeometry(b, out) })
}

// NewMonitoringCaseCommand reads monitoring case i.
func NewMonitoringCaseCommand(out *core.MonitoringCaseData, i uint16) *VariableCommand {
	return newVariable("monitoring_case", IndexMonitoringCase+i, func(b *core.Block) { *out = parseMonitoringCase(b) })
}
