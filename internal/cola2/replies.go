package cola2

import (
	"strconv"

	"firestige.xyz/safetyscanner/internal/core"
)

// readString reads a length-prefixed string: u32 length, then characters.
func readString(b *core.Block, off int) string {
	n := int(b.Uint32(off))
	return b.String(off+4, n)
}

// parseTypeCode reads the type code and derives the interface type and range
// from its fixed positions, e.g. MICS3-ABAZ55ZA1P01 is a 5.5 m EFI-pro device.
func parseTypeCode(b *core.Block) core.TypeCode {
	tc := core.TypeCode{Code: readString(b, 0)}
	if len(tc.Code) < 14 {
		return tc
	}
	switch tc.Code[12:14] {
	case "ZA":
		tc.InterfaceType = core.InterfaceEFIPro
	case "IA":
		tc.InterfaceType = core.InterfaceEtherNetIP
	case "PN":
		tc.InterfaceType = core.InterfaceProfinet
	case "NN":
		tc.InterfaceType = core.InterfaceNonSafeEthernet
	}
	if v, err := strconv.Atoi(tc.Code[10:12]); err == nil {
		tc.MaxRange = float64(v) / 10
	}
	return tc
}

func parseConfigMetadata(b *core.Block) core.ConfigMetadata {
	return core.ConfigMetadata{
		VersionIndicator: b.Uint8(0),
		VersionMajor:     b.Uint8(1),
		VersionMinor:     b.Uint8(2),
		VersionRelease:   b.Uint8(3),
		ModificationDate: b.Uint16(4),
		ModificationTime: b.Uint32(8),
		TransferDate:     b.Uint16(12),
		TransferTime:     b.Uint32(16),
		AppChecksum:      b.Uint32(20),
		OverallChecksum:  b.Uint32(24),
		IntegrityHash:    [4]uint32{b.Uint32(28), b.Uint32(32), b.Uint32(36), b.Uint32(40)},
	}
}

func parseStatusOverview(b *core.Block) core.StatusOverview {
	return core.StatusOverview{
		VersionIndicator:        b.Uint8(0),
		VersionMajor:            b.Uint8(1),
		VersionMinor:            b.Uint8(2),
		VersionRelease:          b.Uint8(3),
		DeviceState:             core.DeviceState(b.Uint8(4)),
		ConfigState:             core.ConfigState(b.Uint8(5)),
		ApplicationState:        core.ApplicationState(b.Uint8(6)),
		CurrentTimePowerOnCount: b.Uint32(8),
		CurrentTimeTime:         b.Uint32(12),
		CurrentTimeDate:         b.Uint16(16),
		ErrorInfoCode:           b.Uint32(20),
		ErrorInfoTime:           b.Uint32(24),
		ErrorInfoDate:           b.Uint16(28),
	}
}

func parseRequiredUserAction(b *core.Block) core.RequiredUserAction {
	v := b.Uint16(0)
	bit := func(n uint) bool { return v&(1<<n) != 0 }
	return core.RequiredUserAction{
		ConfirmConfiguration:        bit(0),
		CheckConfiguration:          bit(1),
		CheckApplicationInterfaces:  bit(2),
		CheckDuplicateChannels:      bit(3),
		InstallConfigurationFile:    bit(4),
		CheckFirmware:               bit(5),
		CheckFieldOfView:            bit(6),
		AcknowledgeConfiguration:    bit(7),
		ConfirmConfigurationPending: bit(8),
	}
}

// parseConfigData reads a measurement configuration: addressing at 0..28,
// then a derived values block.
func parseConfigData(b *core.Block) core.ConfigData {
	derived := b.Sub("config derived values", 28, 20)
	return core.ConfigData{
		VersionIndicator: b.Uint8(0),
		VersionMajor:     b.Uint8(1),
		VersionMinor:     b.Uint8(2),
		VersionRelease:   b.Uint8(3),
		HostIP:           core.AddrFromUint32(b.Uint32(4)).String(),
		HostUDPPort:      b.Uint16(8),
		Channel:          b.Uint8(10),
		Enabled:          b.Uint8(11) != 0,
		InterfaceType:    b.Uint8(12),
		PublishingFreq:   b.Uint16(14),
		Features:         core.Features(b.Uint16(16)),
		StartAngle:       core.FromFixedPoint(b.Int32(20)),
		EndAngle:         core.FromFixedPoint(b.Int32(24)),
		DerivedValues: core.DerivedValues{
			MultiplicationFactor:  derived.Uint16(0),
			NumberOfBeams:         derived.Uint16(2),
			ScanTime:              derived.Uint16(4),
			StartAngle:            core.FromFixedPoint(derived.Int32(8)),
			AngularBeamResolution: core.FromFixedPoint(derived.Int32(12)),
			InterbeamPeriod:       derived.Uint32(16),
		},
	}
}

// Field type values of protective fields.
const (
	fieldTypeProtective       = 1
	fieldTypeProtectiveSafety = 4
)

// parseFieldHeader fills the validity and identity of a field. A field
// whose header is not defined ends the enumeration.
func parseFieldHeader(b *core.Block, out *core.FieldData) {
	out.IsValid = b.Uint8(4) != 0
	ft := b.Uint8(5)
	out.IsProtectiveField = ft == fieldTypeProtective || ft == fieldTypeProtectiveSafety
	out.FieldSetIndex = b.Uint16(6)
}

// parseFieldGeometry reads the per-beam contour of a field.
func parseFieldGeometry(b *core.Block, out *core.FieldData) {
	n := int(b.Uint32(4))
	if b.Require(8+2*n) != nil {
		return
	}
	out.BeamDistances = make([]uint16, n)
	for i := range out.BeamDistances {
		out.BeamDistances[i] = b.Uint16(8 + 2*i)
	}
}

func parseMonitoringCase(b *core.Block) core.MonitoringCaseData {
	mc := core.MonitoringCaseData{
		IsValid:              b.Uint8(4) != 0,
		MonitoringCaseNumber: b.Uint16(6),
		FieldIndices:         make([]uint16, core.MonitoringCaseFieldCount),
		FieldsValid:          make([]bool, core.MonitoringCaseFieldCount),
	}
	for i := range core.MonitoringCaseFieldCount {
		off := 8 + 4*i
		mc.FieldIndices[i] = b.Uint16(off)
		mc.FieldsValid[i] = b.Uint8(off+2) != 0
	}
	return mc
}
