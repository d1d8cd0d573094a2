package decoder

import (
	"container/list"
	"fmt"
	"log/slog"

	"firestige.xyz/safetyscanner/internal/core"
	"firestige.xyz/safetyscanner/internal/metrics"
)

const (
	defaultMaxTelegramSize = 1 << 20 // far above the largest telegram a device publishes
	defaultMaxFragments    = 1024
)

// ReassemblyConfig contains configuration for datagram reassembly.
type ReassemblyConfig struct {
	MaxTelegramSize int // Maximum declared total length accepted (default 1 MiB)
	MaxFragments    int // Maximum datagrams held for one telegram (default 1024)
}

// fragment is one datagram payload and its position in the telegram.
type fragment struct {
	offset  uint32
	length  uint32
	payload []byte
}

// fragmentList keeps fragments sorted by offset. On overlap the data that
// arrived first is kept and the newcomer is trimmed, so current always
// counts unique bytes.
type fragmentList struct {
	list    list.List // list of *fragment, sorted by offset ascending
	current uint32    // total unique bytes accumulated
}

func (fl *fragmentList) insert(frag *fragment) {
	start, end := frag.offset, frag.offset+frag.length

	for start < end {
		// First element with offset >= start; the list never overlaps so
		// only the element before it can cover start.
		var next *list.Element
		for e := fl.list.Front(); e != nil; e = e.Next() {
			if e.Value.(*fragment).offset >= start {
				next = e
				break
			}
		}
		prev := fl.list.Back()
		if next != nil {
			prev = next.Prev()
		}
		if prev != nil {
			p := prev.Value.(*fragment)
			if pEnd := p.offset + p.length; pEnd > start {
				start = pEnd
				if start >= end {
					return
				}
			}
		}

		pieceEnd, resume := end, end
		if next != nil {
			if n := next.Value.(*fragment); n.offset < end {
				pieceEnd = n.offset
				resume = n.offset + n.length
			}
		}

		if start < pieceEnd {
			piece := &fragment{
				offset:  start,
				length:  pieceEnd - start,
				payload: frag.payload[start-frag.offset : pieceEnd-frag.offset],
			}
			if next != nil {
				fl.list.InsertBefore(piece, next)
			} else {
				fl.list.PushBack(piece)
			}
			fl.current += piece.length
			metrics.ReassemblyActiveFragments.Inc()
		}
		start = resume
	}
}

func (fl *fragmentList) reset() {
	metrics.ReassemblyActiveFragments.Sub(float64(fl.list.Len()))
	fl.list.Init()
	fl.current = 0
}

// Reassembler rebuilds one data telegram from its datagrams. It tracks a
// single identification at a time: a datagram with a different
// identification discards the partial telegram and starts a new one.
// Not safe for concurrent use.
type Reassembler struct {
	config     ReassemblyConfig
	inProgress bool
	id         uint32
	total      uint32
	frags      fragmentList
}

// NewReassembler creates a new datagram reassembler.
func NewReassembler(cfg ReassemblyConfig) *Reassembler {
	if cfg.MaxTelegramSize <= 0 {
		cfg.MaxTelegramSize = defaultMaxTelegramSize
	}
	if cfg.MaxFragments <= 0 {
		cfg.MaxFragments = defaultMaxFragments
	}
	return &Reassembler{config: cfg}
}

// Add processes one raw datagram including its header. It returns true once
// every byte of the current telegram has been received. Datagrams that fail
// validation are rejected with an error and leave the partial telegram
// untouched unless the error says otherwise.
func (r *Reassembler) Add(datagram core.Buffer) (bool, error) {
	data := datagram.Bytes()
	h, err := ParseDatagramHeader(data)
	if err != nil {
		metrics.ReassemblyDiscardedTotal.WithLabelValues("invalid_header").Inc()
		return false, err
	}
	payload := data[DatagramHeaderSize:]

	if r.inProgress && h.Identification != r.id {
		if !r.IsComplete() {
			slog.Debug("discarding partial telegram", "identification", r.id,
				"received", r.frags.current, "total", r.total, "next", h.Identification)
			metrics.ReassemblyDiscardedTotal.WithLabelValues("superseded").Inc()
		}
		r.Reset()
	}

	if !r.inProgress {
		if int64(h.TotalLength) > int64(r.config.MaxTelegramSize) {
			metrics.ReassemblyDiscardedTotal.WithLabelValues("too_large").Inc()
			return false, &core.ProtocolError{Op: "reassemble",
				Reason: fmt.Sprintf("total length %d exceeds limit %d", h.TotalLength, r.config.MaxTelegramSize)}
		}
		r.inProgress = true
		r.id = h.Identification
		r.total = h.TotalLength
	} else if h.TotalLength != r.total {
		metrics.ReassemblyDiscardedTotal.WithLabelValues("inconsistent").Inc()
		r.Reset()
		return false, &core.ProtocolError{Op: "reassemble",
			Reason: fmt.Sprintf("identification %d changed total length from %d to %d", h.Identification, r.total, h.TotalLength)}
	}

	if uint64(h.FragmentOffset)+uint64(len(payload)) > uint64(r.total) {
		metrics.ReassemblyDiscardedTotal.WithLabelValues("out_of_range").Inc()
		return r.IsComplete(), &core.ProtocolError{Op: "reassemble",
			Reason: fmt.Sprintf("fragment [%d,%d) beyond total length %d", h.FragmentOffset, uint64(h.FragmentOffset)+uint64(len(payload)), r.total)}
	}

	if r.frags.list.Len() >= r.config.MaxFragments {
		metrics.ReassemblyDiscardedTotal.WithLabelValues("too_many_fragments").Inc()
		r.Reset()
		return false, &core.ProtocolError{Op: "reassemble",
			Reason: fmt.Sprintf("fragment count exceeded limit %d", r.config.MaxFragments)}
	}

	if len(payload) > 0 {
		// The datagram buffer may be reused by the socket reader.
		p := make([]byte, len(payload))
		copy(p, payload)
		r.frags.insert(&fragment{offset: h.FragmentOffset, length: uint32(len(p)), payload: p})
	}

	return r.IsComplete(), nil
}

// IsComplete reports whether the current telegram is fully received.
func (r *Reassembler) IsComplete() bool {
	return r.inProgress && r.frags.current == r.total
}

// IsEmpty reports whether no telegram is in progress.
func (r *Reassembler) IsEmpty() bool { return !r.inProgress }

// Identification returns the identification being reassembled.
func (r *Reassembler) Identification() (uint32, bool) { return r.id, r.inProgress }

// Deploy returns the reassembled telegram without datagram headers and
// resets the reassembler.
func (r *Reassembler) Deploy() (core.Buffer, error) {
	if !r.IsComplete() {
		return core.Buffer{}, &core.ProtocolError{Op: "deploy",
			Reason: fmt.Sprintf("telegram incomplete: %d of %d bytes", r.frags.current, r.total)}
	}
	result := make([]byte, r.total)
	for e := r.frags.list.Front(); e != nil; e = e.Next() {
		frag := e.Value.(*fragment)
		copy(result[frag.offset:frag.offset+frag.length], frag.payload)
	}
	r.Reset()
	metrics.TelegramsReassembledTotal.Inc()
	return core.WrapBuffer(result), nil
}

// Reset drops any partial telegram.
func (r *Reassembler) Reset() {
	r.frags.reset()
	r.inProgress = false
	r.id = 0
	r.total = 0
}
