package core

import (
	"encoding/binary"
	"strings"
)

// Buffer is an immutable byte sequence produced by a single transport read
// or by a reassembler. The slice returned by Bytes must not be modified.
type Buffer struct {
	data []byte
}

// NewBuffer copies b into a new Buffer.
func NewBuffer(b []byte) Buffer {
	data := make([]byte, len(b))
	copy(data, b)
	return Buffer{data: data}
}

// WrapBuffer adopts b without copying. The caller gives up ownership of b.
func WrapBuffer(b []byte) Buffer {
	return Buffer{data: b}
}

// Bytes returns the underlying read-only view.
func (b Buffer) Bytes() []byte { return b.data }

// Len returns the number of bytes held.
func (b Buffer) Len() int { return len(b.data) }

// Block is a bounds-checked little-endian view into a payload. A read outside
// the block records a DecodeError (first one wins) and yields zero, so
// decoders read all fields and check Err once.
type Block struct {
	name string
	base int
	data []byte
	err  error
}

// NewBlock returns the view buf[offset:offset+size] after checking that it
// lies within buf.
func NewBlock(name string, buf []byte, offset, size int) (*Block, error) {
	if offset < 0 || size < 0 || offset+size > len(buf) {
		return nil, &DecodeError{Block: name, Offset: offset, Need: size, Have: max(len(buf)-offset, 0)}
	}
	return &Block{name: name, base: offset, data: buf[offset : offset+size]}, nil
}

// WholeBlock views all of buf.
func WholeBlock(name string, buf []byte) *Block {
	return &Block{name: name, data: buf}
}

// Name returns the block name used in errors.
func (b *Block) Name() string { return b.name }

// Len returns the block size.
func (b *Block) Len() int { return len(b.data) }

// Err returns the first out-of-bounds read, if any.
func (b *Block) Err() error { return b.err }

// Require fails the block unless at least n bytes are present.
func (b *Block) Require(n int) error {
	b.check(0, n)
	return b.err
}

func (b *Block) check(off, n int) bool {
	if off >= 0 && n >= 0 && off+n <= len(b.data) {
		return true
	}
	if b.err == nil {
		b.err = &DecodeError{Block: b.name, Offset: b.base + off, Need: n, Have: max(len(b.data)-off, 0)}
	}
	return false
}

func (b *Block) Uint8(off int) uint8 {
	if !b.check(off, 1) {
		return 0
	}
	return b.data[off]
}

func (b *Block) Uint16(off int) uint16 {
	if !b.check(off, 2) {
		return 0
	}
	return binary.LittleEndian.Uint16(b.data[off:])
}

func (b *Block) Uint32(off int) uint32 {
	if !b.check(off, 4) {
		return 0
	}
	return binary.LittleEndian.Uint32(b.data[off:])
}

func (b *Block) Int16(off int) int16 { return int16(b.Uint16(off)) }

func (b *Block) Int32(off int) int32 { return int32(b.Uint32(off)) }

// Bit reports bit n of the byte at off.
func (b *Block) Bit(off int, n uint) bool {
	return b.Uint8(off)&(1<<n) != 0
}

// Bytes returns a copy of n bytes at off.
func (b *Block) Bytes(off, n int) []byte {
	if !b.check(off, n) {
		return nil
	}
	out := make([]byte, n)
	copy(out, b.data[off:off+n])
	return out
}

// String returns n bytes at off as text with trailing NULs removed.
func (b *Block) String(off, n int) string {
	if !b.check(off, n) {
		return ""
	}
	return strings.TrimRight(string(b.data[off:off+n]), "\x00")
}

// Sub returns a nested view. Failures are recorded on the parent as well.
func (b *Block) Sub(name string, off, n int) *Block {
	if !b.check(off, n) {
		return &Block{name: name, base: b.base + off, err: b.err}
	}
	return &Block{name: name, base: b.base + off, data: b.data[off : off+n]}
}
