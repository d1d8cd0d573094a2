// Package decoder implements protocol decoding.
package decoder

import (
	"encoding/binary"
	"fmt"

	"firestige.xyz/safetyscanner/internal/core"
)

// Datagram header layout (24 bytes). The marker and protocol are big endian
// ASCII, all counters little endian.
const (
	DatagramHeaderSize = 24
	DatagramMarker     = 0x4D533320 // "MS3 "
)

// DatagramHeader prefixes every UDP datagram of the data stream.
type DatagramHeader struct {
	Marker         uint32
	Protocol       uint16
	MajorVersion   uint8
	MinorVersion   uint8
	TotalLength    uint32
	Identification uint32
	FragmentOffset uint32
}

// ParseDatagramHeader decodes the header at the start of a raw datagram.
func ParseDatagramHeader(data []byte) (DatagramHeader, error) {
	if len(data) < DatagramHeaderSize {
		return DatagramHeader{}, &core.DecodeError{Block: "datagram header", Need: DatagramHeaderSize, Have: len(data)}
	}
	h := DatagramHeader{
		Marker:         binary.BigEndian.Uint32(data[0:4]),
		Protocol:       binary.BigEndian.Uint16(data[4:6]),
		MajorVersion:   data[6],
		MinorVersion:   data[7],
		TotalLength:    binary.LittleEndian.Uint32(data[8:12]),
		Identification: binary.LittleEndian.Uint32(data[12:16]),
		FragmentOffset: binary.LittleEndian.Uint32(data[16:20]),
	}
	if h.Marker != DatagramMarker {
		return h, &core.ProtocolError{Op: "datagram header", Reason: fmt.Sprintf("unexpected marker 0x%08x", h.Marker)}
	}
	return h, nil
}

// AppendDatagramHeader writes h in wire format. Used by replay tooling and
// tests to synthesise streams.
func AppendDatagramHeader(dst []byte, h DatagramHeader) []byte {
	var b [DatagramHeaderSize]byte
	marker := h.Marker
	if marker == 0 {
		marker = DatagramMarker
	}
	binary.BigEndian.PutUint32(b[0:4], marker)
	binary.BigEndian.PutUint16(b[4:6], h.Protocol)
	b[6] = h.MajorVersion
	b[7] = h.MinorVersion
	binary.LittleEndian.PutUint32(b[8:12], h.TotalLength)
	binary.LittleEndian.PutUint32(b[12:16], h.Identification)
	binary.LittleEndian.PutUint32(b[16:20], h.FragmentOffset)
	return append(dst, b[:]...)
}

// Fragment splits telegram into datagrams of at most maxPayload bytes each,
// all carrying identification id.
func Fragment(telegram []byte, id uint32, maxPayload int) [][]byte {
	if maxPayload <= 0 {
		maxPayload = len(telegram)
	}
	var out [][]byte
	off := 0
	for {
		end := min(off+maxPayload, len(telegram))
		d := AppendDatagramHeader(make([]byte, 0, DatagramHeaderSize+end-off), DatagramHeader{
			Protocol:       0x4D53, // "MS"
			MajorVersion:   1,
			TotalLength:    uint32(len(telegram)),
			Identification: id,
			FragmentOffset: uint32(off),
		})
		out = append(out, append(d, telegram[off:end]...))
		off = end
		if off >= len(telegram) {
			return out
		}
	}
}
