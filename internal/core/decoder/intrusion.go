package decoder

import "firestige.xyz/safetyscanner/internal/core"

// DecodeIntrusionData decodes the 24 per-field intrusion bitsets. The flag
// count of each entry is capped at the number of beams from the derived
// values block.
func DecodeIntrusionData(payload []byte, data *core.Data) (core.IntrusionData, error) {
	empty := core.IntrusionData{IsEmpty: true}
	if data.Header.IsEmpty || data.DerivedValues.IsEmpty {
		return empty, nil
	}
	b, err := block("intrusion data", payload, data.Header.IntrusionDataBlock)
	if b == nil {
		return empty, err
	}

	beams := int(data.DerivedValues.NumberOfBeams)
	out := core.IntrusionData{Data: make([]core.IntrusionDatum, 0, core.IntrusionFieldCount)}
	off := 0
	for range core.IntrusionFieldCount {
		size := b.Uint32(off)
		off += 4
		if err := b.Require(off + int(size)); err != nil {
			return empty, err
		}
		out.Data = append(out.Data, core.IntrusionDatum{
			Size:  size,
			Flags: unpackFlags(b, off, int(size), beams),
		})
		off += int(size)
	}
	return out, b.Err()
}

// unpackFlags reads up to limit flags from n bytes at off, least significant
// bit first.
func unpackFlags(b *core.Block, off, n, limit int) []bool {
	count := min(n*8, limit)
	flags := make([]bool, count)
	for i := range flags {
		flags[i] = b.Bit(off+i/8, uint(i%8))
	}
	return flags
}
