package core

import "fmt"

// InterfaceType is the fieldbus flavour encoded in the type code.
type InterfaceType uint8

const (
	InterfaceUnknown InterfaceType = iota
	InterfaceEFIPro
	InterfaceEtherNetIP
	InterfaceProfinet
	InterfaceNonSafeEthernet
)

func (t InterfaceType) String() string {
	switch t {
	case InterfaceEFIPro:
		return "EFI-pro"
	case InterfaceEtherNetIP:
		return "EtherNet/IP"
	case InterfaceProfinet:
		return "PROFINET"
	case InterfaceNonSafeEthernet:
		return "non-safe Ethernet"
	default:
		return "unknown"
	}
}

// TypeCode identifies the device variant, e.g. "MICS3-ABAZ55ZA1P01".
type TypeCode struct {
	Code          string        `yaml:"code" json:"code"`
	InterfaceType InterfaceType `yaml:"interface_type" json:"interface_type"`
	MaxRange      float64       `yaml:"max_range" json:"max_range"`
}

// Plain string variables of the device.
type (
	DeviceName      struct{ Name string }
	SerialNumber    struct{ SerialNumber string }
	OrderNumber     struct{ OrderNumber string }
	ApplicationName struct{ Name string }
	ProjectName     struct{ Name string }
	UserName        struct{ Name string }
)

// FirmwareVersion is the firmware release of the device.
type FirmwareVersion struct {
	VersionIndicator byte  `yaml:"version_indicator" json:"version_indicator"`
	Major            uint8 `yaml:"major" json:"major"`
	Minor            uint8 `yaml:"minor" json:"minor"`
	Release          uint8 `yaml:"release" json:"release"`
}

func (v FirmwareVersion) String() string {
	return fmt.Sprintf("%c%d.%d.%d", v.VersionIndicator, v.Major, v.Minor, v.Release)
}

// ConfigMetadata describes the configuration stored on the device.
type ConfigMetadata struct {
	VersionIndicator byte      `yaml:"version_indicator" json:"version_indicator"`
	VersionMajor     uint8     `yaml:"version_major" json:"version_major"`
	VersionMinor     uint8     `yaml:"version_minor" json:"version_minor"`
	VersionRelease   uint8     `yaml:"version_release" json:"version_release"`
	ModificationDate uint16    `yaml:"modification_date" json:"modification_date"`
	ModificationTime uint32    `yaml:"modification_time" json:"modification_time"`
	TransferDate     uint16    `yaml:"transfer_date" json:"transfer_date"`
	TransferTime     uint32    `yaml:"transfer_time" json:"transfer_time"`
	AppChecksum      uint32    `yaml:"app_checksum" json:"app_checksum"`
	OverallChecksum  uint32    `yaml:"overall_checksum" json:"overall_checksum"`
	IntegrityHash    [4]uint32 `yaml:"integrity_hash" json:"integrity_hash"`
}

// DeviceState is the top level state of the device.
type DeviceState uint8

const (
	DeviceStateNormal DeviceState = iota
	DeviceStateError
	DeviceStateInitialization
	DeviceStateShutdown
	DeviceStateOpticsCoverCalibration
)

func (s DeviceState) String() string {
	switch s {
	case DeviceStateNormal:
		return "NORMAL"
	case DeviceStateError:
		return "ERROR"
	case DeviceStateInitialization:
		return "INITIALIZATION"
	case DeviceStateShutdown:
		return "SHUTDOWN"
	case DeviceStateOpticsCoverCalibration:
		return "OPTICS_COVER_CALIBRATION"
	}
	return fmt.Sprintf("DeviceState(%d)", uint8(s))
}

// ConfigState is the verification state of the configuration.
type ConfigState uint8

const (
	ConfigStateUnknown ConfigState = iota
	ConfigStateConfigRequired
	ConfigStateConfigInProgress
	ConfigStateNotVerified
	ConfigStateRejected
	ConfigStateVerified
	ConfigStateInternalError
	ConfigStateVerificationInProgress
)

func (s ConfigState) String() string {
	switch s {
	case ConfigStateUnknown:
		return "UNKNOWN"
	case ConfigStateConfigRequired:
		return "CONFIG_REQUIRED"
	case ConfigStateConfigInProgress:
		return "CONFIG_IN_PROGRESS"
	case ConfigStateNotVerified:
		return "NOT_VERIFIED"
	case ConfigStateRejected:
		return "REJECTED"
	case ConfigStateVerified:
		return "VERIFIED"
	case ConfigStateInternalError:
		return "INTERNAL_ERROR"
	case ConfigStateVerificationInProgress:
		return "VERIFICATION_IN_PROGRESS"
	}
	return fmt.Sprintf("ConfigState(%d)", uint8(s))
}

// ApplicationState is the state of the safety application.
type ApplicationState uint8

const (
	ApplicationStateStopped ApplicationState = iota
	ApplicationStateStarting
	ApplicationStateWaitingForPartners
	ApplicationStateWaitingForInputs
	ApplicationStateStarted
	ApplicationStateSleepMode
)

func (s ApplicationState) String() string {
	switch s {
	case ApplicationStateStopped:
		return "STOPPED"
	case ApplicationStateStarting:
		return "STARTING"
	case ApplicationStateWaitingForPartners:
		return "WAITING_FOR_PARTNERS"
	case ApplicationStateWaitingForInputs:
		return "WAITING_FOR_INPUTS"
	case ApplicationStateStarted:
		return "STARTED"
	case ApplicationStateSleepMode:
		return "SLEEP_MODE"
	}
	return fmt.Sprintf("ApplicationState(%d)", uint8(s))
}

// StatusOverview summarises device, configuration and application state.
type StatusOverview struct {
	VersionIndicator        byte             `yaml:"version_indicator" json:"version_indicator"`
	VersionMajor            uint8            `yaml:"version_major" json:"version_major"`
	VersionMinor            uint8            `yaml:"version_minor" json:"version_minor"`
	VersionRelease          uint8            `yaml:"version_release" json:"version_release"`
	DeviceState             DeviceState      `yaml:"device_state" json:"device_state"`
	ConfigState             ConfigState      `yaml:"config_state" json:"config_state"`
	ApplicationState        ApplicationState `yaml:"application_state" json:"application_state"`
	CurrentTimePowerOnCount uint32           `yaml:"current_time_power_on_count" json:"current_time_power_on_count"`
	CurrentTimeTime         uint32           `yaml:"current_time_time" json:"current_time_time"`
	CurrentTimeDate         uint16           `yaml:"current_time_date" json:"current_time_date"`
	ErrorInfoCode           uint32           `yaml:"error_info_code" json:"error_info_code"`
	ErrorInfoTime           uint32           `yaml:"error_info_time" json:"error_info_time"`
	ErrorInfoDate           uint16           `yaml:"error_info_date" json:"error_info_date"`
}

// DeviceStatus is the coarse health indicator.
type DeviceStatus uint8

const (
	DeviceStatusOK DeviceStatus = iota
	DeviceStatusSafetyError
	DeviceStatusWarning
	DeviceStatusError
)

func (s DeviceStatus) String() string {
	switch s {
	case DeviceStatusOK:
		return "OK"
	case DeviceStatusSafetyError:
		return "SAFETY_ERROR"
	case DeviceStatusWarning:
		return "WARNING"
	case DeviceStatusError:
		return "ERROR"
	}
	return fmt.Sprintf("DeviceStatus(%d)", uint8(s))
}

// RequiredUserAction lists actions the operator has to take.
type RequiredUserAction struct {
	ConfirmConfiguration        bool `yaml:"confirm_configuration" json:"confirm_configuration"`
	CheckConfiguration          bool `yaml:"check_configuration" json:"check_configuration"`
	CheckApplicationInterfaces  bool `yaml:"check_application_interfaces" json:"check_application_interfaces"`
	CheckDuplicateChannels      bool `yaml:"check_duplicate_channels" json:"check_duplicate_channels"`
	InstallConfigurationFile    bool `yaml:"install_configuration_file" json:"install_configuration_file"`
	CheckFirmware               bool `yaml:"check_firmware" json:"check_firmware"`
	CheckFieldOfView            bool `yaml:"check_field_of_view" json:"check_field_of_view"`
	AcknowledgeConfiguration    bool `yaml:"acknowledge_configuration" json:"acknowledge_configuration"`
	ConfirmConfigurationPending bool `yaml:"confirm_configuration_pending" json:"confirm_configuration_pending"`
}

// FieldData is one protective or warning field.
type FieldData struct {
	IsValid               bool     `yaml:"is_valid" json:"is_valid"`
	FieldSetIndex         uint16   `yaml:"field_set_index" json:"field_set_index"`
	IsProtectiveField     bool     `yaml:"is_protective_field" json:"is_protective_field"`
	StartAngle            float64  `yaml:"start_angle" json:"start_angle"`
	AngularBeamResolution float64  `yaml:"angular_beam_resolution" json:"angular_beam_resolution"`
	BeamDistances         []uint16 `yaml:"beam_distances" json:"beam_distances"`
}

// MonitoringCaseFieldCount is the number of field slots per monitoring case.
const MonitoringCaseFieldCount = 8

// MonitoringCaseData assigns fields to one monitoring case.
type MonitoringCaseData struct {
	IsValid              bool     `yaml:"is_valid" json:"is_valid"`
	MonitoringCaseNumber uint16   `yaml:"monitoring_case_number" json:"monitoring_case_number"`
	FieldIndices         []uint16 `yaml:"field_indices" json:"field_indices"`
	FieldsValid          []bool   `yaml:"fields_valid" json:"fields_valid"`
}

// ConfigData is the measurement configuration of one output channel.
type ConfigData struct {
	VersionIndicator byte          `yaml:"version_indicator" json:"version_indicator"`
	VersionMajor     uint8         `yaml:"version_major" json:"version_major"`
	VersionMinor     uint8         `yaml:"version_minor" json:"version_minor"`
	VersionRelease   uint8         `yaml:"version_release" json:"version_release"`
	HostIP           string        `yaml:"host_ip" json:"host_ip"`
	HostUDPPort      uint16        `yaml:"host_udp_port" json:"host_udp_port"`
	Channel          uint8         `yaml:"channel" json:"channel"`
	Enabled          bool          `yaml:"enabled" json:"enabled"`
	InterfaceType    uint8         `yaml:"interface_type" json:"interface_type"`
	PublishingFreq   uint16        `yaml:"publishing_frequency" json:"publishing_frequency"`
	Features         Features      `yaml:"features" json:"features"`
	StartAngle       float64       `yaml:"start_angle" json:"start_angle"`
	EndAngle         float64       `yaml:"end_angle" json:"end_angle"`
	DerivedValues    DerivedValues `yaml:"derived_values" json:"derived_values"`
}
