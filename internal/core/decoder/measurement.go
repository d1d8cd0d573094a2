package decoder

import "firestige.xyz/safetyscanner/internal/core"

// DerivedValuesSize is the fixed size of the derived values block.
const DerivedValuesSize = 20

// Scan point status bits.
const (
	statusValid = 1 << iota
	statusInfinite
	statusGlare
	statusReflector
	statusContamination
	statusContaminationWarning
)

// DecodeDerivedValues decodes the scan geometry block.
func DecodeDerivedValues(payload []byte, data *core.Data) (core.DerivedValues, error) {
	empty := core.DerivedValues{IsEmpty: true}
	if data.Header.IsEmpty {
		return empty, nil
	}
	b, err := block("derived values", payload, data.Header.DerivedValuesBlock)
	if b == nil {
		return empty, err
	}
	return decodeDerivedValues(b)
}

func decodeDerivedValues(b *core.Block) (core.DerivedValues, error) {
	if err := b.Require(DerivedValuesSize); err != nil {
		return core.DerivedValues{IsEmpty: true}, err
	}
	return core.DerivedValues{
		MultiplicationFactor:  b.Uint16(0),
		NumberOfBeams:         b.Uint16(2),
		ScanTime:              b.Uint16(4),
		StartAngle:            core.FromFixedPoint(b.Int32(8)),
		AngularBeamResolution: core.FromFixedPoint(b.Int32(12)),
		InterbeamPeriod:       b.Uint32(16),
	}, b.Err()
}

// DecodeMeasurementData decodes the scan points. The angle of each point is
// derived from the derived values block, which must already be decoded.
func DecodeMeasurementData(payload []byte, data *core.Data) (core.MeasurementData, error) {
	empty := core.MeasurementData{IsEmpty: true}
	if data.Header.IsEmpty || data.DerivedValues.IsEmpty {
		return empty, nil
	}
	b, err := block("measurement data", payload, data.Header.MeasurementDataBlock)
	if b == nil {
		return empty, err
	}

	n := b.Uint32(0)
	if err := b.Require(4 + 4*int(n)); err != nil {
		return empty, err
	}

	start := data.DerivedValues.StartAngle
	res := data.DerivedValues.AngularBeamResolution
	m := core.MeasurementData{
		NumberOfBeams: n,
		ScanPoints:    make([]core.ScanPoint, n),
	}
	for i := range m.ScanPoints {
		off := 4 + 4*i
		status := b.Uint8(off + 3)
		m.ScanPoints[i] = core.ScanPoint{
			Index:                i,
			Angle:                start + float64(i)*res,
			Distance:             b.Uint16(off),
			Reflectivity:         b.Uint8(off + 2),
			Valid:                status&statusValid != 0,
			Infinite:             status&statusInfinite != 0,
			Glare:                status&statusGlare != 0,
			Reflector:            status&statusReflector != 0,
			Contamination:        status&statusContamination != 0,
			ContaminationWarning: status&statusContaminationWarning != 0,
		}
	}
	return m, b.Err()
}
