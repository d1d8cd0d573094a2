package decoder

import "firestige.xyz/safetyscanner/internal/core"

// GeneralSystemStateSize is the fixed size of the system state block.
const GeneralSystemStateSize = 16

// DecodeGeneralSystemState decodes the safety status block.
func DecodeGeneralSystemState(payload []byte, data *core.Data) (core.GeneralSystemState, error) {
	empty := core.GeneralSystemState{IsEmpty: true}
	if data.Header.IsEmpty {
		return empty, nil
	}
	b, err := block("general system state", payload, data.Header.GeneralSystemStateBlock)
	if b == nil {
		return empty, err
	}
	if err := b.Require(GeneralSystemStateSize); err != nil {
		return empty, err
	}

	return core.GeneralSystemState{
		RunModeActive:                 b.Bit(0, 0),
		StandbyModeActive:             b.Bit(0, 1),
		ContaminationWarning:          b.Bit(0, 2),
		ContaminationError:            b.Bit(0, 3),
		ReferenceContourStatus:        b.Bit(0, 4),
		ManipulationStatus:            b.Bit(0, 5),
		SafeCutOffPath:                unpackFlags(b, 1, 3, core.CutOffPathBits),
		NonSafeCutOffPath:             unpackFlags(b, 4, 3, core.CutOffPathBits),
		ResetRequiredCutOffPath:       unpackFlags(b, 7, 3, core.CutOffPathBits),
		CurrentMonitoringCaseNoTable1: b.Uint8(10),
		CurrentMonitoringCaseNoTable2: b.Uint8(11),
		CurrentMonitoringCaseNoTable3: b.Uint8(12),
		CurrentMonitoringCaseNoTable4: b.Uint8(13),
		ApplicationError:              b.Bit(15, 0),
		DeviceError:                   b.Bit(15, 1),
	}, b.Err()
}
