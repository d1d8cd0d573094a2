package simulator

import (
	"encoding/binary"

	"firestige.xyz/safetyscanner/internal/core"
	"firestige.xyz/safetyscanner/internal/core/decoder"
)

// Frame describes one synthetic data telegram.
type Frame struct {
	SerialNumber   uint32
	Channel        uint8
	SequenceNumber uint32
	ScanNumber     uint32
	Features       core.Features
	StartAngle     float64 // degrees
	Resolution     float64 // degrees per beam
	ScanTime       uint16  // ms
	Distances      []uint16
	RunMode        bool
	MonitoringCase uint8
}

// Size of the intrusion block with all 24 fields present but empty.
const emptyIntrusionSize = 4 * core.IntrusionFieldCount

// Encode builds the telegram bytes. Blocks not selected by Features are
// published as (0,0) references.
func (f Frame) Encode() []byte {
	buf := make([]byte, decoder.DataHeaderSize)
	buf[0] = 'V'
	buf[1], buf[2], buf[3] = 1, 0, 0
	binary.LittleEndian.PutUint32(buf[4:], f.SerialNumber)
	buf[12] = f.Channel
	binary.LittleEndian.PutUint32(buf[16:], f.SequenceNumber)
	binary.LittleEndian.PutUint32(buf[20:], f.ScanNumber)

	add := func(slot int, block []byte) {
		binary.LittleEndian.PutUint16(buf[slot:], uint16(len(buf)))
		binary.LittleEndian.PutUint16(buf[slot+2:], uint16(len(block)))
		buf = append(buf, block...)
	}

	if f.Features.Has(core.FeatureGeneralSystemState) {
		s := make([]byte, decoder.GeneralSystemStateSize)
		if f.RunMode {
			s[0] |= 1
		}
		s[10] = f.MonitoringCase
		add(32, s)
	}
	if f.Features.Has(core.FeatureDerivedValues) {
		d := make([]byte, decoder.DerivedValuesSize)
		binary.LittleEndian.PutUint16(d[0:], 1)
		binary.LittleEndian.PutUint16(d[2:], uint16(len(f.Distances)))
		binary.LittleEndian.PutUint16(d[4:], f.ScanTime)
		binary.LittleEndian.PutUint32(d[8:], uint32(core.ToFixedPoint(f.StartAngle)))
		binary.LittleEndian.PutUint32(d[12:], uint32(core.ToFixedPoint(f.Resolution)))
		add(36, d)
	}
	if f.Features.Has(core.FeatureMeasurementData) {
		m := binary.LittleEndian.AppendUint32(nil, uint32(len(f.Distances)))
		for _, dist := range f.Distances {
			m = binary.LittleEndian.AppendUint16(m, dist)
			m = append(m, 0, 1) // reflectivity, valid
		}
		add(40, m)
	}
	if f.Features.Has(core.FeatureIntrusionData) {
		add(44, make([]byte, emptyIntrusionSize))
	}
	if f.Features.Has(core.FeatureApplicationData) {
		add(48, make([]byte, decoder.ApplicationDataSize))
	}
	return buf
}
