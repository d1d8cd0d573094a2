package cola2

import (
	"context"
	"encoding/binary"
	"time"

	"firestige.xyz/safetyscanner/internal/core"
)

// request is a decoded request header as the device sees it.
type request struct {
	SessionID uint32
	RequestID uint16
	Type      byte
	Mode      byte
	Payload   []byte
}

func parseRequest(b []byte) request {
	return request{
		SessionID: binary.BigEndian.Uint32(b[10:14]),
		RequestID: binary.BigEndian.Uint16(b[14:16]),
		Type:      b[16],
		Mode:      b[17],
		Payload:   append([]byte(nil), b[RequestHeaderSize:]...),
	}
}

// fakeDevice is an in-memory StreamClient that answers like a device.
type fakeDevice struct {
	connected   bool
	connects    int
	connectErr  error
	nextSession uint32
	variables   map[uint16][]byte
	requests    []request
	pending     [][]byte
	chunkSize   int

	// handler overrides the default replies when it returns non-nil. An
	// empty non-nil reply swallows the request.
	handler func(req request) []byte
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{nextSession: 0x1000, variables: map[uint16][]byte{}}
}

func (d *fakeDevice) Connect(ctx context.Context, timeout time.Duration) error {
	if d.connectErr != nil {
		return d.connectErr
	}
	d.connected = true
	d.connects++
	return nil
}

func (d *fakeDevice) Disconnect() error {
	d.connected = false
	d.pending = nil
	return nil
}

func (d *fakeDevice) IsConnected() bool { return d.connected }

func (d *fakeDevice) Send(ctx context.Context, data []byte) error {
	if !d.connected {
		return core.TransportError("send", core.ErrNotConnected)
	}
	req := parseRequest(data)
	d.requests = append(d.requests, req)

	var reply []byte
	if d.handler != nil {
		reply = d.handler(req)
	}
	if reply == nil {
		reply = d.defaultReply(req)
	}
	if len(reply) == 0 {
		return nil
	}
	if d.chunkSize <= 0 {
		d.pending = append(d.pending, reply)
		return nil
	}
	for len(reply) > 0 {
		n := min(d.chunkSize, len(reply))
		d.pending = append(d.pending, reply[:n])
		reply = reply[n:]
	}
	return nil
}

func (d *fakeDevice) Receive(ctx context.Context, timeout time.Duration) (core.Buffer, error) {
	if len(d.pending) == 0 {
		d.connected = false
		return core.Buffer{}, &core.TimeoutError{Op: "receive", Timeout: timeout}
	}
	chunk := d.pending[0]
	d.pending = d.pending[1:]
	return core.NewBuffer(chunk), nil
}

func (d *fakeDevice) defaultReply(req request) []byte {
	r := Reply{SessionID: req.SessionID, RequestID: req.RequestID}
	switch {
	case req.Type == TypeCreateSession:
		d.nextSession++
		r.SessionID = d.nextSession
		r.Type, r.Mode = TypeCreateSession, ModeReply
	case req.Type == TypeCloseSession:
		r.Type, r.Mode = TypeCloseSession, ModeReply
	case req.Type == TypeRead:
		idx := binary.LittleEndian.Uint16(req.Payload)
		r.Type, r.Mode, r.Index = TypeRead, ModeReply, idx
		r.Payload = d.variables[idx]
	case req.Type == TypeMethod:
		r.Type, r.Mode, r.Index = TypeMethodReply, ModeRequest, binary.LittleEndian.Uint16(req.Payload)
	default:
		return nil
	}
	return EncodeReply(r)
}

func (d *fakeDevice) last() request { return d.requests[len(d.requests)-1] }

// lpString encodes a length-prefixed string.
func lpString(s string) []byte {
	return append(binary.LittleEndian.AppendUint32(nil, uint32(len(s))), s...)
}
