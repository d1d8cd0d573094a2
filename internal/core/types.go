// Package core defines core types with zero external dependencies.
package core

import "math"

// AngleScale is the fixed-point scale of angles on the wire (2^22 per degree).
const AngleScale = 4194304.0

// ToFixedPoint converts degrees to the wire representation.
func ToFixedPoint(deg float64) int32 { return int32(math.Round(deg * AngleScale)) }

// FromFixedPoint converts a wire angle to degrees.
func FromFixedPoint(v int32) float64 { return float64(v) / AngleScale }

// BlockRef locates a block inside a data telegram. The zero value means the
// block is not published.
type BlockRef struct {
	Offset uint16 `yaml:"offset" json:"offset"`
	Size   uint16 `yaml:"size" json:"size"`
}

// Absent reports the (0,0) "not published" marker.
func (r BlockRef) Absent() bool { return r.Offset == 0 && r.Size == 0 }

// DataHeader is the fixed header of every data telegram.
type DataHeader struct {
	IsEmpty                  bool     `yaml:"is_empty" json:"is_empty"`
	VersionIndicator         byte     `yaml:"version_indicator" json:"version_indicator"`
	VersionMajor             uint8    `yaml:"version_major" json:"version_major"`
	VersionMinor             uint8    `yaml:"version_minor" json:"version_minor"`
	VersionRelease           uint8    `yaml:"version_release" json:"version_release"`
	SerialNumberOfDevice     uint32   `yaml:"serial_number_of_device" json:"serial_number_of_device"`
	SerialNumberOfSystemPlug uint32   `yaml:"serial_number_of_system_plug" json:"serial_number_of_system_plug"`
	ChannelNumber            uint8    `yaml:"channel_number" json:"channel_number"`
	SequenceNumber           uint32   `yaml:"sequence_number" json:"sequence_number"`
	ScanNumber               uint32   `yaml:"scan_number" json:"scan_number"`
	TimestampDate            uint16   `yaml:"timestamp_date" json:"timestamp_date"`
	TimestampTime            uint32   `yaml:"timestamp_time" json:"timestamp_time"`
	GeneralSystemStateBlock  BlockRef `yaml:"general_system_state_block" json:"general_system_state_block"`
	DerivedValuesBlock       BlockRef `yaml:"derived_values_block" json:"derived_values_block"`
	MeasurementDataBlock     BlockRef `yaml:"measurement_data_block" json:"measurement_data_block"`
	IntrusionDataBlock       BlockRef `yaml:"intrusion_data_block" json:"intrusion_data_block"`
	ApplicationDataBlock     BlockRef `yaml:"application_data_block" json:"application_data_block"`
}

// DerivedValues carries the scan geometry. Angles are in degrees.
type DerivedValues struct {
	IsEmpty               bool    `yaml:"is_empty" json:"is_empty"`
	MultiplicationFactor  uint16  `yaml:"multiplication_factor" json:"multiplication_factor"`
	NumberOfBeams         uint16  `yaml:"number_of_beams" json:"number_of_beams"`
	ScanTime              uint16  `yaml:"scan_time" json:"scan_time"`
	StartAngle            float64 `yaml:"start_angle" json:"start_angle"`
	AngularBeamResolution float64 `yaml:"angular_beam_resolution" json:"angular_beam_resolution"`
	InterbeamPeriod       uint32  `yaml:"interbeam_period" json:"interbeam_period"`
}

// ScanPoint is one beam of a measurement.
type ScanPoint struct {
	Index                int     `yaml:"index" json:"index"`
	Angle                float64 `yaml:"angle" json:"angle"`
	Distance             uint16  `yaml:"distance" json:"distance"`
	Reflectivity         uint8   `yaml:"reflectivity" json:"reflectivity"`
	Valid                bool    `yaml:"valid" json:"valid"`
	Infinite             bool    `yaml:"infinite" json:"infinite"`
	Glare                bool    `yaml:"glare" json:"glare"`
	Reflector            bool    `yaml:"reflector" json:"reflector"`
	Contamination        bool    `yaml:"contamination" json:"contamination"`
	ContaminationWarning bool    `yaml:"contamination_warning" json:"contamination_warning"`
}

// MeasurementData holds the scan points of one telegram.
type MeasurementData struct {
	IsEmpty       bool        `yaml:"is_empty" json:"is_empty"`
	NumberOfBeams uint32      `yaml:"number_of_beams" json:"number_of_beams"`
	ScanPoints    []ScanPoint `yaml:"scan_points" json:"scan_points"`
}

// CutOffPathBits is the width of the cut-off path bitsets.
const CutOffPathBits = 20

// GeneralSystemState is the safety status block.
type GeneralSystemState struct {
	IsEmpty                       bool   `yaml:"is_empty" json:"is_empty"`
	RunModeActive                 bool   `yaml:"run_mode_active" json:"run_mode_active"`
	StandbyModeActive             bool   `yaml:"standby_mode_active" json:"standby_mode_active"`
	ContaminationWarning          bool   `yaml:"contamination_warning" json:"contamination_warning"`
	ContaminationError            bool   `yaml:"contamination_error" json:"contamination_error"`
	ReferenceContourStatus        bool   `yaml:"reference_contour_status" json:"reference_contour_status"`
	ManipulationStatus            bool   `yaml:"manipulation_status" json:"manipulation_status"`
	SafeCutOffPath                []bool `yaml:"safe_cut_off_path" json:"safe_cut_off_path"`
	NonSafeCutOffPath             []bool `yaml:"non_safe_cut_off_path" json:"non_safe_cut_off_path"`
	ResetRequiredCutOffPath       []bool `yaml:"reset_required_cut_off_path" json:"reset_required_cut_off_path"`
	CurrentMonitoringCaseNoTable1 uint8  `yaml:"current_monitoring_case_no_table_1" json:"current_monitoring_case_no_table_1"`
	CurrentMonitoringCaseNoTable2 uint8  `yaml:"current_monitoring_case_no_table_2" json:"current_monitoring_case_no_table_2"`
	CurrentMonitoringCaseNoTable3 uint8  `yaml:"current_monitoring_case_no_table_3" json:"current_monitoring_case_no_table_3"`
	CurrentMonitoringCaseNoTable4 uint8  `yaml:"current_monitoring_case_no_table_4" json:"current_monitoring_case_no_table_4"`
	ApplicationError              bool   `yaml:"application_error" json:"application_error"`
	DeviceError                   bool   `yaml:"device_error" json:"device_error"`
}

// IntrusionDatum lists per-beam intrusion flags of one field.
type IntrusionDatum struct {
	Size  uint32 `yaml:"size" json:"size"`
	Flags []bool `yaml:"flags" json:"flags"`
}

// IntrusionFieldCount is the number of intrusion entries in a telegram.
const IntrusionFieldCount = 24

// IntrusionData holds one entry per field set.
type IntrusionData struct {
	IsEmpty bool             `yaml:"is_empty" json:"is_empty"`
	Data    []IntrusionDatum `yaml:"data" json:"data"`
}

// MonitoringCaseSlots is the number of monitoring case numbers per direction.
const MonitoringCaseSlots = 20

// ApplicationInputs are the values the device received from the machine.
type ApplicationInputs struct {
	UnsafeInputsSources              uint32   `yaml:"unsafe_inputs_sources" json:"unsafe_inputs_sources"`
	UnsafeInputsFlags                uint32   `yaml:"unsafe_inputs_flags" json:"unsafe_inputs_flags"`
	MonitoringCases                  []uint16 `yaml:"monitoring_cases" json:"monitoring_cases"`
	MonitoringCaseFlags              uint32   `yaml:"monitoring_case_flags" json:"monitoring_case_flags"`
	LinearVelocity0                  int16    `yaml:"linear_velocity_0" json:"linear_velocity_0"`
	LinearVelocity1                  int16    `yaml:"linear_velocity_1" json:"linear_velocity_1"`
	LinearVelocity0Valid             bool     `yaml:"linear_velocity_0_valid" json:"linear_velocity_0_valid"`
	LinearVelocity1Valid             bool     `yaml:"linear_velocity_1_valid" json:"linear_velocity_1_valid"`
	LinearVelocity0TransmittedSafely bool     `yaml:"linear_velocity_0_transmitted_safely" json:"linear_velocity_0_transmitted_safely"`
	LinearVelocity1TransmittedSafely bool     `yaml:"linear_velocity_1_transmitted_safely" json:"linear_velocity_1_transmitted_safely"`
	SleepModeInput                   uint8    `yaml:"sleep_mode_input" json:"sleep_mode_input"`
}

// ApplicationOutputs are the evaluation results the device publishes.
type ApplicationOutputs struct {
	EvalOut                               uint32   `yaml:"eval_out" json:"eval_out"`
	EvalOutIsSafe                         uint32   `yaml:"eval_out_is_safe" json:"eval_out_is_safe"`
	EvalOutIsValid                        uint32   `yaml:"eval_out_is_valid" json:"eval_out_is_valid"`
	MonitoringCases                       []uint16 `yaml:"monitoring_cases" json:"monitoring_cases"`
	MonitoringCaseFlags                   uint32   `yaml:"monitoring_case_flags" json:"monitoring_case_flags"`
	SleepModeOutput                       uint8    `yaml:"sleep_mode_output" json:"sleep_mode_output"`
	HostErrorFlagContaminationWarning     bool     `yaml:"host_error_flag_contamination_warning" json:"host_error_flag_contamination_warning"`
	HostErrorFlagContaminationError       bool     `yaml:"host_error_flag_contamination_error" json:"host_error_flag_contamination_error"`
	HostErrorFlagManipulationError        bool     `yaml:"host_error_flag_manipulation_error" json:"host_error_flag_manipulation_error"`
	HostErrorFlagGlare                    bool     `yaml:"host_error_flag_glare" json:"host_error_flag_glare"`
	HostErrorFlagReferenceContourIntruded bool     `yaml:"host_error_flag_reference_contour_intruded" json:"host_error_flag_reference_contour_intruded"`
	HostErrorFlagCriticalError            bool     `yaml:"host_error_flag_critical_error" json:"host_error_flag_critical_error"`
	HostErrorFlagsValid                   uint8    `yaml:"host_error_flags_valid" json:"host_error_flags_valid"`
	LinearVelocity0                       int16    `yaml:"linear_velocity_0" json:"linear_velocity_0"`
	LinearVelocity1                       int16    `yaml:"linear_velocity_1" json:"linear_velocity_1"`
	LinearVelocity0Valid                  bool     `yaml:"linear_velocity_0_valid" json:"linear_velocity_0_valid"`
	LinearVelocity1Valid                  bool     `yaml:"linear_velocity_1_valid" json:"linear_velocity_1_valid"`
	LinearVelocity0TransmittedSafely      bool     `yaml:"linear_velocity_0_transmitted_safely" json:"linear_velocity_0_transmitted_safely"`
	LinearVelocity1TransmittedSafely      bool     `yaml:"linear_velocity_1_transmitted_safely" json:"linear_velocity_1_transmitted_safely"`
	ResultingVelocities                   []int16  `yaml:"resulting_velocities" json:"resulting_velocities"`
	ResultingVelocityFlags                uint32   `yaml:"resulting_velocity_flags" json:"resulting_velocity_flags"`
}

// ApplicationData is the machine interface block.
type ApplicationData struct {
	IsEmpty bool               `yaml:"is_empty" json:"is_empty"`
	Inputs  ApplicationInputs  `yaml:"inputs" json:"inputs"`
	Outputs ApplicationOutputs `yaml:"outputs" json:"outputs"`
}

// Data is one fully decoded scan telegram.
type Data struct {
	Header             DataHeader         `yaml:"header" json:"header"`
	DerivedValues      DerivedValues      `yaml:"derived_values" json:"derived_values"`
	GeneralSystemState GeneralSystemState `yaml:"general_system_state" json:"general_system_state"`
	Measurement        MeasurementData    `yaml:"measurement" json:"measurement"`
	Intrusion          IntrusionData      `yaml:"intrusion" json:"intrusion"`
	Application        ApplicationData    `yaml:"application" json:"application"`
}
