package decoder

import "firestige.xyz/safetyscanner/internal/core"

// Application data layout: inputs at 0, outputs at 116.
const (
	ApplicationDataSize = 228
	applicationOutputs  = 116
)

// DecodeApplicationData decodes the machine interface block.
func DecodeApplicationData(payload []byte, data *core.Data) (core.ApplicationData, error) {
	empty := core.ApplicationData{IsEmpty: true}
	if data.Header.IsEmpty {
		return empty, nil
	}
	b, err := block("application data", payload, data.Header.ApplicationDataBlock)
	if b == nil {
		return empty, err
	}
	if err := b.Require(ApplicationDataSize); err != nil {
		return empty, err
	}

	in := b.Sub("application inputs", 0, applicationOutputs)
	out := b.Sub("application outputs", applicationOutputs, ApplicationDataSize-applicationOutputs)
	app := core.ApplicationData{
		Inputs:  decodeApplicationInputs(in),
		Outputs: decodeApplicationOutputs(out),
	}
	if err := in.Err(); err != nil {
		return empty, err
	}
	if err := out.Err(); err != nil {
		return empty, err
	}
	return app, nil
}

func decodeApplicationInputs(b *core.Block) core.ApplicationInputs {
	return core.ApplicationInputs{
		UnsafeInputsSources:              b.Uint32(0),
		UnsafeInputsFlags:                b.Uint32(4),
		MonitoringCases:                  readUint16s(b, 12, core.MonitoringCaseSlots),
		MonitoringCaseFlags:              b.Uint32(52),
		LinearVelocity0:                  b.Int16(56),
		LinearVelocity1:                  b.Int16(58),
		LinearVelocity0Valid:             b.Bit(60, 0),
		LinearVelocity1Valid:             b.Bit(60, 1),
		LinearVelocity0TransmittedSafely: b.Bit(60, 2),
		LinearVelocity1TransmittedSafely: b.Bit(60, 3),
		SleepModeInput:                   b.Uint8(64),
	}
}

func decodeApplicationOutputs(b *core.Block) core.ApplicationOutputs {
	return core.ApplicationOutputs{
		EvalOut:                               b.Uint32(0),
		EvalOutIsSafe:                         b.Uint32(4),
		EvalOutIsValid:                        b.Uint32(8),
		MonitoringCases:                       readUint16s(b, 12, core.MonitoringCaseSlots),
		MonitoringCaseFlags:                   b.Uint32(52),
		SleepModeOutput:                       b.Uint8(56),
		HostErrorFlagContaminationWarning:     b.Bit(58, 0),
		HostErrorFlagContaminationError:       b.Bit(58, 1),
		HostErrorFlagManipulationError:        b.Bit(58, 2),
		HostErrorFlagGlare:                    b.Bit(58, 3),
		HostErrorFlagReferenceContourIntruded: b.Bit(58, 4),
		HostErrorFlagCriticalError:            b.Bit(58, 5),
		HostErrorFlagsValid:                   b.Uint8(59),
		LinearVelocity0:                       b.Int16(60),
		LinearVelocity1:                       b.Int16(62),
		LinearVelocity0Valid:                  b.Bit(64, 0),
		LinearVelocity1Valid:                  b.Bit(64, 1),
		LinearVelocity0TransmittedSafely:      b.Bit(64, 2),
		LinearVelocity1TransmittedSafely:      b.Bit(64, 3),
		ResultingVelocities:                   readInt16s(b, 68, core.MonitoringCaseSlots),
		ResultingVelocityFlags:                b.Uint32(108),
	}
}

func readUint16s(b *core.Block, off, n int) []uint16 {
	out := make([]uint16, n)
	for i := range out {
		out[i] = b.Uint16(off + 2*i)
	}
	return out
}

func readInt16s(b *core.Block, off, n int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = b.Int16(off + 2*i)
	}
	return out
}
