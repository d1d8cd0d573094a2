// Package simulator emulates a safety laser scanner: a COLA2 command server
// and a UDP data publisher. It backs the simulate command and end-to-end
// tests.
package simulator

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"firestige.xyz/safetyscanner/internal/cola2"
	"firestige.xyz/safetyscanner/internal/core"
)

// Device error codes sent in failure replies.
const (
	ErrorUnknownCommand uint16 = 0x0001
	ErrorInvalidSession uint16 = 0x0002
	ErrorUnknownIndex   uint16 = 0x0005
	ErrorInvalidArgs    uint16 = 0x0006
)

// MethodCall records one method invocation.
type MethodCall struct {
	Index uint16
	Args  []byte
}

// Device answers COLA2 requests from a variable table.
type Device struct {
	logger *slog.Logger

	mu          sync.Mutex
	variables   map[uint16][]byte
	sessions    map[uint32]struct{}
	nextSession uint32
	calls       []MethodCall
	settings    map[uint8]core.CommSettings
	wg          sync.WaitGroup
}

// NewDevice creates a device preloaded with the variables of a typical
// scanner.
func NewDevice(logger *slog.Logger) *Device {
	if logger == nil {
		logger = slog.Default()
	}
	return &Device{
		logger:      logger.With("component", "simulator"),
		variables:   DefaultVariables(),
		sessions:    make(map[uint32]struct{}),
		nextSession: 0x2A000001,
		settings:    make(map[uint8]core.CommSettings),
	}
}

// SetVariable replaces the reply payload of a variable.
func (d *Device) SetVariable(index uint16, payload []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if payload == nil {
		delete(d.variables, index)
		return
	}
	d.variables[index] = payload
}

// Calls returns the recorded method calls.
func (d *Device) Calls() []MethodCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]MethodCall(nil), d.calls...)
}

// CommSettings returns the settings last applied to channel.
func (d *Device) CommSettings(channel uint8) (core.CommSettings, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.settings[channel]
	return s, ok
}

// Serve answers connections on ln until ctx is done. It closes ln and waits
// for open connections before returning.
func (d *Device) Serve(ctx context.Context, ln net.Listener) error {
	d.logger.Info("simulator listening", "addr", ln.Addr().String())
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			stopped := ctx.Err() != nil
			cancel()
			d.wg.Wait()
			if stopped {
				return nil
			}
			return err
		}
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.handle(ctx, conn)
		}()
	}
}

func (d *Device) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.SetDeadline(time.Unix(1, 0)) })
	defer stop()

	remote := conn.RemoteAddr().String()
	d.logger.Debug("client connected", "remote", remote)
	buf := make([]byte, 4096)
	var pending []byte
	for {
		n, err := conn.Read(buf)
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				d.logger.Debug("client read failed", "remote", remote, "error", err)
			}
			return
		}
		pending = append(pending, buf[:n]...)
		for {
			size, ok := cola2.ExpectedLength(pending)
			if !ok || len(pending) < size {
				break
			}
			reply := d.Handle(pending[:size])
			pending = pending[size:]
			if reply == nil {
				continue
			}
			if _, err := conn.Write(reply); err != nil {
				return
			}
		}
	}
}

// Handle answers one complete request telegram. It returns nil for input
// that cannot be answered at all.
func (d *Device) Handle(telegram []byte) []byte {
	req, err := cola2.DecodeRequest(core.NewBuffer(telegram))
	if err != nil {
		d.logger.Warn("bad request", "error", err)
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	fail := func(code uint16) []byte {
		return cola2.EncodeReply(cola2.Reply{SessionID: req.SessionID, RequestID: req.RequestID,
			Type: cola2.TypeFailure, Mode: cola2.ModeReply, ErrorCode: code})
	}
	ok := func(typ, mode byte, index uint16, payload []byte) []byte {
		return cola2.EncodeReply(cola2.Reply{SessionID: req.SessionID, RequestID: req.RequestID,
			Type: typ, Mode: mode, Index: index, Payload: payload})
	}
	_, validSession := d.sessions[req.SessionID]

	switch {
	case req.Type == cola2.TypeCreateSession && req.Mode == cola2.ModeOpen:
		id := d.nextSession
		d.nextSession++
		d.sessions[id] = struct{}{}
		d.logger.Debug("session created", "session_id", id)
		return cola2.EncodeReply(cola2.Reply{SessionID: id, RequestID: req.RequestID,
			Type: cola2.TypeCreateSession, Mode: cola2.ModeReply})

	case req.Type == cola2.TypeCloseSession && req.Mode == cola2.ModeOpen:
		delete(d.sessions, req.SessionID)
		return ok(cola2.TypeCloseSession, cola2.ModeReply, 0, nil)

	case req.Type == cola2.TypeRead && req.Mode == cola2.ModeRequest:
		if !validSession {
			return fail(ErrorInvalidSession)
		}
		payload, found := d.variables[req.Index]
		if !found {
			return fail(ErrorUnknownIndex)
		}
		return ok(cola2.TypeRead, cola2.ModeReply, req.Index, payload)

	case req.Type == cola2.TypeMethod && req.Mode == cola2.ModeRequest:
		if !validSession && req.Index != cola2.MethodFindMe {
			return fail(ErrorInvalidSession)
		}
		d.calls = append(d.calls, MethodCall{Index: req.Index, Args: append([]byte(nil), req.Payload...)})
		switch req.Index {
		case cola2.MethodChangeCommSettings:
			s, err := core.ParseCommSettings(req.Payload)
			if err != nil {
				return fail(ErrorInvalidArgs)
			}
			d.settings[s.Channel] = s
			d.logger.Info("comm settings changed", "channel", s.Channel,
				"host", s.HostIP.String(), "port", s.HostUDPPort, "enabled", s.Enabled)
		case cola2.MethodFindMe:
			if len(req.Payload) >= 2 {
				d.logger.Info("find me", "seconds", binary.LittleEndian.Uint16(req.Payload))
			}
		default:
			return fail(ErrorUnknownIndex)
		}
		return ok(cola2.TypeMethodReply, cola2.ModeRequest, req.Index, nil)
	}
	return fail(ErrorUnknownCommand)
}
