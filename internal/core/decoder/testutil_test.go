package decoder

import (
	"encoding/binary"

	"firestige.xyz/safetyscanner/internal/core"
)

// telegramBuilder lays out a data telegram block by block after the 52-byte
// header and patches the header's (offset, size) pairs.
type telegramBuilder struct {
	buf []byte
}

func newTelegramBuilder() *telegramBuilder {
	b := &telegramBuilder{buf: make([]byte, DataHeaderSize)}
	b.buf[0] = 'R'
	b.buf[1] = 1
	b.buf[2] = 2
	b.buf[3] = 3
	binary.LittleEndian.PutUint32(b.buf[4:], 0x11223344)
	binary.LittleEndian.PutUint32(b.buf[8:], 0x55667788)
	b.buf[12] = 1
	binary.LittleEndian.PutUint32(b.buf[16:], 42)
	binary.LittleEndian.PutUint32(b.buf[20:], 7)
	binary.LittleEndian.PutUint16(b.buf[24:], 1000)
	binary.LittleEndian.PutUint32(b.buf[28:], 123456)
	return b
}

// Header slots of the block references.
const (
	slotSystemState = 32
	slotDerived     = 36
	slotMeasurement = 40
	slotIntrusion   = 44
	slotApplication = 48
)

func (b *telegramBuilder) add(slot int, block []byte) *telegramBuilder {
	binary.LittleEndian.PutUint16(b.buf[slot:], uint16(len(b.buf)))
	binary.LittleEndian.PutUint16(b.buf[slot+2:], uint16(len(block)))
	b.buf = append(b.buf, block...)
	return b
}

// ref sets a block reference without appending data.
func (b *telegramBuilder) ref(slot int, offset, size uint16) *telegramBuilder {
	binary.LittleEndian.PutUint16(b.buf[slot:], offset)
	binary.LittleEndian.PutUint16(b.buf[slot+2:], size)
	return b
}

func (b *telegramBuilder) bytes() []byte { return b.buf }

func derivedBlock(beams uint16, startDeg, resDeg float64) []byte {
	d := make([]byte, DerivedValuesSize)
	binary.LittleEndian.PutUint16(d[0:], 1)
	binary.LittleEndian.PutUint16(d[2:], beams)
	binary.LittleEndian.PutUint16(d[4:], 40)
	binary.LittleEndian.PutUint32(d[8:], uint32(core.ToFixedPoint(startDeg)))
	binary.LittleEndian.PutUint32(d[12:], uint32(core.ToFixedPoint(resDeg)))
	binary.LittleEndian.PutUint32(d[16:], 25)
	return d
}

type beam struct {
	distance     uint16
	reflectivity uint8
	status       uint8
}

func measurementBlock(beams ...beam) []byte {
	m := make([]byte, 4+4*len(beams))
	binary.LittleEndian.PutUint32(m[0:], uint32(len(beams)))
	for i, bm := range beams {
		binary.LittleEndian.PutUint16(m[4+4*i:], bm.distance)
		m[6+4*i] = bm.reflectivity
		m[7+4*i] = bm.status
	}
	return m
}

// intrusionBlock writes 24 entries; entry i gets flags[i] if present,
// otherwise a zero-size entry.
func intrusionBlock(flags map[int][]byte) []byte {
	var out []byte
	for i := range core.IntrusionFieldCount {
		f := flags[i]
		out = binary.LittleEndian.AppendUint32(out, uint32(len(f)))
		out = append(out, f...)
	}
	return out
}
