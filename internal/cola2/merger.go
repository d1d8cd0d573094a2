package cola2

import (
	"fmt"
	"log/slog"

	"firestige.xyz/safetyscanner/internal/core"
)

// StreamMerger accumulates TCP reads until one reply telegram is complete.
// A merger serves exactly one request.
type StreamMerger struct {
	declared int // -1 until the length prefix has been seen
	buf      []byte
}

// NewStreamMerger returns an empty merger.
func NewStreamMerger() *StreamMerger {
	return &StreamMerger{declared: -1}
}

// Add appends chunk and reports whether the telegram is complete. Bytes
// past the announced length are dropped.
func (m *StreamMerger) Add(chunk core.Buffer) bool {
	m.buf = append(m.buf, chunk.Bytes()...)
	if m.declared < 0 {
		if n, ok := ExpectedLength(m.buf); ok {
			m.declared = n
		}
	}
	if m.declared >= 0 && len(m.buf) > m.declared {
		slog.Debug("dropping bytes past reply telegram", "declared", m.declared, "received", len(m.buf))
		m.buf = m.buf[:m.declared]
	}
	return m.IsComplete()
}

// IsComplete reports whether the announced number of bytes is present.
func (m *StreamMerger) IsComplete() bool {
	return m.declared >= 0 && len(m.buf) == m.declared
}

// IsEmpty reports whether nothing has been added yet.
func (m *StreamMerger) IsEmpty() bool { return len(m.buf) == 0 }

// Deploy hands over the telegram and empties the merger.
func (m *StreamMerger) Deploy() (core.Buffer, error) {
	if !m.IsComplete() {
		return core.Buffer{}, &core.ProtocolError{Op: "deploy",
			Reason: fmt.Sprintf("reply incomplete: %d of %d bytes", len(m.buf), m.declared)}
	}
	b := core.WrapBuffer(m.buf)
	m.buf = nil
	m.declared = -1
	return b, nil
}
