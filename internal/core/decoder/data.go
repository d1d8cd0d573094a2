package decoder

import (
	"errors"

	"firestige.xyz/safetyscanner/internal/core"
	"firestige.xyz/safetyscanner/internal/metrics"
)

// DataHeaderSize is the fixed size of the data telegram header.
const DataHeaderSize = 52

// DecodeData decodes a reassembled telegram. Blocks are decoded in
// dependency order: header, derived values, then the blocks that use them.
func DecodeData(buf core.Buffer) (core.Data, error) {
	payload := buf.Bytes()
	var data core.Data

	header, err := DecodeDataHeader(payload)
	if err != nil {
		return data, countDecodeError("header", err)
	}
	data.Header = header

	if data.DerivedValues, err = DecodeDerivedValues(payload, &data); err != nil {
		return data, countDecodeError("derived_values", err)
	}
	if data.Measurement, err = DecodeMeasurementData(payload, &data); err != nil {
		return data, countDecodeError("measurement_data", err)
	}
	if data.GeneralSystemState, err = DecodeGeneralSystemState(payload, &data); err != nil {
		return data, countDecodeError("general_system_state", err)
	}
	if data.Intrusion, err = DecodeIntrusionData(payload, &data); err != nil {
		return data, countDecodeError("intrusion_data", err)
	}
	if data.Application, err = DecodeApplicationData(payload, &data); err != nil {
		return data, countDecodeError("application_data", err)
	}
	return data, nil
}

func countDecodeError(block string, err error) error {
	if errors.Is(err, core.ErrDecode) {
		metrics.DecodeErrorsTotal.WithLabelValues(block).Inc()
	}
	return err
}

// DecodeDataHeader decodes the 52-byte header at the start of the telegram.
func DecodeDataHeader(payload []byte) (core.DataHeader, error) {
	b, err := core.NewBlock("data header", payload, 0, DataHeaderSize)
	if err != nil {
		return core.DataHeader{IsEmpty: true}, err
	}
	ref := func(off int) core.BlockRef {
		return core.BlockRef{Offset: b.Uint16(off), Size: b.Uint16(off + 2)}
	}
	h := core.DataHeader{
		VersionIndicator:         b.Uint8(0),
		VersionMajor:             b.Uint8(1),
		VersionMinor:             b.Uint8(2),
		VersionRelease:           b.Uint8(3),
		SerialNumberOfDevice:     b.Uint32(4),
		SerialNumberOfSystemPlug: b.Uint32(8),
		ChannelNumber:            b.Uint8(12),
		SequenceNumber:           b.Uint32(16),
		ScanNumber:               b.Uint32(20),
		TimestampDate:            b.Uint16(24),
		TimestampTime:            b.Uint32(28),
		GeneralSystemStateBlock:  ref(32),
		DerivedValuesBlock:       ref(36),
		MeasurementDataBlock:     ref(40),
		IntrusionDataBlock:       ref(44),
		ApplicationDataBlock:     ref(48),
	}
	return h, b.Err()
}

// block resolves ref inside payload. It returns nil without error when the
// block is not published.
func block(name string, payload []byte, ref core.BlockRef) (*core.Block, error) {
	if ref.Absent() {
		return nil, nil
	}
	return core.NewBlock(name, payload, int(ref.Offset), int(ref.Size))
}
