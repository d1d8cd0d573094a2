// Package cola2 implements the COLA2 request/reply protocol spoken over TCP.
package cola2

import (
	"encoding/binary"
	"fmt"

	"firestige.xyz/safetyscanner/internal/core"
)

// Telegram layout. Header integers are big endian; the leading 8 bytes are
// the marker and the length of everything after them.
const (
	STx               = 0x02020202
	LengthPrefixSize  = 8
	RequestHeaderSize = 18
	ReplyHeaderSize   = 20
)

// Command type and mode bytes.
const (
	TypeCreateSession = 'O'
	TypeCloseSession  = 'C'
	TypeRead          = 'R'
	TypeMethod        = 'M'
	TypeMethodReply   = 'A'
	TypeFailure       = 'F'

	ModeRequest = 'I'
	ModeOpen    = 'X'
	ModeReply   = 'A'
)

// Reply is a decoded reply header. Payload aliases the telegram buffer.
type Reply struct {
	SessionID  uint32
	RequestID  uint16
	HubCounter uint8
	NumChunks  uint8
	Type       byte
	Mode       byte
	// ErrorCode is set on failure replies.
	ErrorCode uint16
	// Index echoes the variable or method index on read and method replies.
	Index   uint16
	Payload []byte
}

// Failed reports a failure reply.
func (r Reply) Failed() bool { return r.Type == TypeFailure }

// EncodeRequest frames cmd with the given correlation ids.
func EncodeRequest(cmd Command, sessionID uint32, requestID uint16) []byte {
	payload := cmd.EncodePayload()
	buf := make([]byte, RequestHeaderSize, RequestHeaderSize+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], STx)
	// buf[8] hub counter and buf[9] number of chunks stay zero
	binary.BigEndian.PutUint32(buf[10:14], sessionID)
	binary.BigEndian.PutUint16(buf[14:16], requestID)
	buf[16], buf[17] = cmd.RequestType()
	buf = append(buf, payload...)
	binary.BigEndian.PutUint32(buf[4:8], uint32(len(buf)-LengthPrefixSize))
	return buf
}

// ExpectedLength returns the total telegram size announced by the first
// bytes of a reply, or false if fewer than 8 bytes are available.
func ExpectedLength(first []byte) (int, bool) {
	if len(first) < LengthPrefixSize {
		return 0, false
	}
	return int(binary.BigEndian.Uint32(first[4:8])) + LengthPrefixSize, true
}

// DecodeReply parses the header of a complete reply telegram.
func DecodeReply(buf core.Buffer) (Reply, error) {
	data := buf.Bytes()
	if len(data) < RequestHeaderSize {
		return Reply{}, &core.DecodeError{Block: "cola2 header", Need: RequestHeaderSize, Have: len(data)}
	}
	if m := binary.BigEndian.Uint32(data[0:4]); m != STx {
		return Reply{}, &core.ProtocolError{Op: "decode reply", Reason: fmt.Sprintf("unexpected marker 0x%08x", m)}
	}
	if n, _ := ExpectedLength(data); n != len(data) {
		return Reply{}, &core.ProtocolError{Op: "decode reply",
			Reason: fmt.Sprintf("length field announces %d bytes, telegram has %d", n, len(data))}
	}

	r := Reply{
		HubCounter: data[8],
		NumChunks:  data[9],
		SessionID:  binary.BigEndian.Uint32(data[10:14]),
		RequestID:  binary.BigEndian.Uint16(data[14:16]),
		Type:       data[16],
		Mode:       data[17],
	}
	if len(data) >= ReplyHeaderSize {
		if r.Failed() {
			r.ErrorCode = binary.BigEndian.Uint16(data[18:20])
		} else {
			r.Index = binary.LittleEndian.Uint16(data[18:20])
		}
		r.Payload = data[ReplyHeaderSize:]
	}
	return r, nil
}

// EncodeReply frames a reply telegram. Device simulators and tests use it.
func EncodeReply(r Reply) []byte {
	buf := make([]byte, ReplyHeaderSize, ReplyHeaderSize+len(r.Payload))
	binary.BigEndian.PutUint32(buf[0:4], STx)
	buf[8], buf[9] = r.HubCounter, r.NumChunks
	binary.BigEndian.PutUint32(buf[10:14], r.SessionID)
	binary.BigEndian.PutUint16(buf[14:16], r.RequestID)
	buf[16], buf[17] = r.Type, r.Mode
	if r.Failed() {
		binary.BigEndian.PutUint16(buf[18:20], r.ErrorCode)
	} else {
		binary.LittleEndian.PutUint16(buf[18:20], r.Index)
	}
	buf = append(buf, r.Payload...)
	binary.BigEndian.PutUint32(buf[4:8], uint32(len(buf)-LengthPrefixSize))
	return buf
}

// Request is a decoded request telegram as a device receives it.
type Request struct {
	SessionID uint32
	RequestID uint16
	Type      byte
	Mode      byte
	// Index is the variable or method index of read and method requests.
	Index   uint16
	Payload []byte
}

// DecodeRequest parses a complete request telegram. Payload holds the bytes
// after the index for read and method requests, and after the header
// otherwise.
func DecodeRequest(buf core.Buffer) (Request, error) {
	data := buf.Bytes()
	if len(data) < RequestHeaderSize {
		return Request{}, &core.DecodeError{Block: "cola2 header", Need: RequestHeaderSize, Have: len(data)}
	}
	if m := binary.BigEndian.Uint32(data[0:4]); m != STx {
		return Request{}, &core.ProtocolError{Op: "decode request", Reason: fmt.Sprintf("unexpected marker 0x%08x", m)}
	}
	if n, _ := ExpectedLength(data); n != len(data) {
		return Request{}, &core.ProtocolError{Op: "decode request",
			Reason: fmt.Sprintf("length field announces %d bytes, telegram has %d", n, len(data))}
	}
	r := Request{
		SessionID: binary.BigEndian.Uint32(data[10:14]),
		RequestID: binary.BigEndian.Uint16(data[14:16]),
		Type:      data[16],
		Mode:      data[17],
		Payload:   data[RequestHeaderSize:],
	}
	if r.Type == TypeRead || r.Type == TypeMethod {
		if len(r.Payload) < 2 {
			return Request{}, &core.DecodeError{Block: "cola2 index", Offset: RequestHeaderSize, Need: 2, Have: len(r.Payload)}
		}
		r.Index = binary.LittleEndian.Uint16(r.Payload)
		r.Payload = r.Payload[2:]
	}
	return r, nil
}
