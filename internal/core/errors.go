// Package core defines sentinel errors.
package core

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors. Concrete errors wrap one of these so callers can branch
// with errors.Is regardless of where the failure was detected.
var (
	// ErrTimeout reports an I/O deadline that expired before completion.
	ErrTimeout = errors.New("safetyscanner: timeout")
	// ErrTransport reports a socket level failure (refused, reset, closed).
	ErrTransport = errors.New("safetyscanner: transport error")
	// ErrProtocol reports a well-formed but semantically wrong reply.
	ErrProtocol = errors.New("safetyscanner: protocol error")
	// ErrDecode reports a payload shorter than its declared layout.
	ErrDecode = errors.New("safetyscanner: decode error")

	// Configuration errors
	ErrConfigInvalid = errors.New("safetyscanner: invalid configuration")

	// Lifecycle errors
	ErrNotConnected = errors.New("safetyscanner: not connected")
	ErrStopped      = errors.New("safetyscanner: stopped")
)

// TimeoutError carries the deadline that expired.
type TimeoutError struct {
	Op      string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("safetyscanner: %s timed out after %s", e.Op, e.Timeout)
}

// Is matches ErrTimeout.
func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// ProtocolError describes a reply the device sent that cannot be accepted.
// Code is the device error code of failure replies, zero otherwise.
type ProtocolError struct {
	Op     string
	Code   uint16
	Reason string
}

func (e *ProtocolError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("safetyscanner: %s: %s (device error 0x%04x)", e.Op, e.Reason, e.Code)
	}
	return fmt.Sprintf("safetyscanner: %s: %s", e.Op, e.Reason)
}

// Is matches ErrProtocol.
func (e *ProtocolError) Is(target error) bool { return target == ErrProtocol }

// DecodeError reports a read outside of a named block.
type DecodeError struct {
	Block  string
	Offset int
	Need   int
	Have   int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("safetyscanner: decode %s: need %d bytes at offset %d, have %d",
		e.Block, e.Need, e.Offset, e.Have)
}

// Is matches ErrDecode.
func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// TransportError wraps a socket error.
func TransportError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrTransport, op, err)
}
