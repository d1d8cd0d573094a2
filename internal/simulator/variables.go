package simulator

import (
	"encoding/binary"

	"firestige.xyz/safetyscanner/internal/cola2"
	"firestige.xyz/safetyscanner/internal/core"
)

// Geometry of the simulated device.
const (
	SimStartAngle = -47.5
	SimResolution = 0.5
	SimBeams      = 551
	SimSerial     = 21470001
)

// StringVariable encodes a length-prefixed string reply.
func StringVariable(s string) []byte {
	return append(binary.LittleEndian.AppendUint32(nil, uint32(len(s))), s...)
}

// ConfigVariable encodes a measurement configuration reply.
func ConfigVariable(c core.ConfigData, host core.CommSettings) []byte {
	p := make([]byte, 48)
	p[0], p[1], p[2], p[3] = c.VersionIndicator, c.VersionMajor, c.VersionMinor, c.VersionRelease
	binary.LittleEndian.PutUint32(p[4:], core.AddrToUint32(host.HostIP))
	binary.LittleEndian.PutUint16(p[8:], host.HostUDPPort)
	p[10] = host.Channel
	if host.Enabled {
		p[11] = 1
	}
	p[12] = host.EInterfaceType
	binary.LittleEndian.PutUint16(p[14:], host.PublishingFrequency)
	binary.LittleEndian.PutUint16(p[16:], uint16(host.Features))
	binary.LittleEndian.PutUint32(p[20:], uint32(core.ToFixedPoint(host.StartAngle)))
	binary.LittleEndian.PutUint32(p[24:], uint32(core.ToFixedPoint(host.EndAngle)))

	dv := c.DerivedValues
	binary.LittleEndian.PutUint16(p[28:], dv.MultiplicationFactor)
	binary.LittleEndian.PutUint16(p[30:], dv.NumberOfBeams)
	binary.LittleEndian.PutUint16(p[32:], dv.ScanTime)
	binary.LittleEndian.PutUint32(p[36:], uint32(core.ToFixedPoint(dv.StartAngle)))
	binary.LittleEndian.PutUint32(p[40:], uint32(core.ToFixedPoint(dv.AngularBeamResolution)))
	binary.LittleEndian.PutUint32(p[44:], dv.InterbeamPeriod)
	return p
}

// FieldHeaderVariable encodes a field header reply.
func FieldHeaderVariable(valid, protective bool, fieldSet uint16) []byte {
	p := make([]byte, 8)
	if valid {
		p[4] = 1
	}
	if protective {
		p[5] = 1
	} else {
		p[5] = 2
	}
	binary.LittleEndian.PutUint16(p[6:], fieldSet)
	return p
}

// FieldGeometryVariable encodes a field contour reply.
func FieldGeometryVariable(distances []uint16) []byte {
	p := binary.LittleEndian.AppendUint32(make([]byte, 4), uint32(len(distances)))
	for _, d := range distances {
		p = binary.LittleEndian.AppendUint16(p, d)
	}
	return p
}

// MonitoringCaseVariable encodes a monitoring case reply.
func MonitoringCaseVariable(valid bool, number uint16, fields ...uint16) []byte {
	p := make([]byte, 8+4*core.MonitoringCaseFieldCount)
	if valid {
		p[4] = 1
	}
	binary.LittleEndian.PutUint16(p[6:], number)
	for i, f := range fields[:min(len(fields), core.MonitoringCaseFieldCount)] {
		binary.LittleEndian.PutUint16(p[8+4*i:], f)
		p[10+4*i] = 1
	}
	return p
}

// DefaultVariables returns the variable table of a healthy device with two
// fields and one monitoring case.
func DefaultVariables() map[uint16][]byte {
	status := make([]byte, 30)
	status[0], status[1] = 'V', 1
	status[5] = uint8(core.ConfigStateVerified)
	status[6] = uint8(core.ApplicationStateStarted)

	cfg := core.ConfigData{
		VersionIndicator: 'V',
		VersionMajor:     1,
		DerivedValues: core.DerivedValues{
			MultiplicationFactor:  1,
			NumberOfBeams:         SimBeams,
			ScanTime:              40,
			StartAngle:            SimStartAngle,
			AngularBeamResolution: SimResolution,
			InterbeamPeriod:       72,
		},
	}
	host := core.DefaultCommSettings()
	host.StartAngle, host.EndAngle = SimStartAngle, SimStartAngle+SimResolution*SimBeams

	contour := make([]uint16, SimBeams)
	for i := range contour {
		contour[i] = 2000
	}

	latest := Frame{
		SerialNumber: SimSerial,
		Features:     core.FeaturesAll,
		StartAngle:   SimStartAngle,
		Resolution:   SimResolution,
		ScanTime:     40,
		Distances:    contour,
		RunMode:      true,
	}.Encode()

	return map[uint16][]byte{
		cola2.IndexTypeCode:           StringVariable("MICS3-ABAZ55ZA1P01"),
		cola2.IndexDeviceName:         StringVariable("microScan3 simulator"),
		cola2.IndexFirmwareVersion:    {'V', 1, 2, 0},
		cola2.IndexOrderNumber:        StringVariable("1075843"),
		cola2.IndexSerialNumber:       StringVariable("21470001"),
		cola2.IndexStatusOverview:     status,
		cola2.IndexConfigMetadata:     make([]byte, 44),
		cola2.IndexApplicationName:    append(make([]byte, 4), StringVariable("simulated application")...),
		cola2.IndexProjectName:        StringVariable("simulator"),
		cola2.IndexUserName:           StringVariable("Maintenance"),
		cola2.IndexDeviceStatus:       {uint8(core.DeviceStatusOK)},
		cola2.IndexRequiredUserAction: {0, 0},
		cola2.IndexPersistentConfig:   ConfigVariable(cfg, host),
		cola2.IndexCurrentConfig:      ConfigVariable(cfg, host),
		cola2.IndexLatestTelegram:     latest,
		cola2.IndexFieldHeader + 0:    FieldHeaderVariable(false, false, 0),
		cola2.IndexFieldGeometry + 0:  FieldGeometryVariable(nil),
		cola2.IndexFieldHeader + 1:    FieldHeaderVariable(true, true, 0),
		cola2.IndexFieldGeometry + 1:  FieldGeometryVariable(contour),
		cola2.IndexFieldHeader + 2:    FieldHeaderVariable(true, false, 0),
		cola2.IndexFieldGeometry + 2:  FieldGeometryVariable(contour),
		cola2.IndexFieldHeader + 3:    FieldHeaderVariable(false, false, 0),
		cola2.IndexMonitoringCase + 0: MonitoringCaseVariable(true, 1, 1, 2),
		cola2.IndexMonitoringCase + 1: MonitoringCaseVariable(false, 0),
	}
}
