package pipeline

import (
	"sync/atomic"
)

// Metrics contains per-pipeline counters. The process-wide Prometheus
// metrics aggregate over all pipelines; these answer for one run.
type Metrics struct {
	Datagrams         atomic.Uint64
	RejectedDatagrams atomic.Uint64
	Telegrams         atomic.Uint64
	DecodeErrors      atomic.Uint64
	Delivered         atomic.Uint64
	Dropped           atomic.Uint64
}

// Stats is a point-in-time copy of Metrics.
type Stats struct {
	Datagrams         uint64 `yaml:"datagrams" json:"datagrams"`
	RejectedDatagrams uint64 `yaml:"rejected_datagrams" json:"rejected_datagrams"`
	Telegrams         uint64 `yaml:"telegrams" json:"telegrams"`
	DecodeErrors      uint64 `yaml:"decode_errors" json:"decode_errors"`
	Delivered         uint64 `yaml:"delivered" json:"delivered"`
	Dropped           uint64 `yaml:"dropped" json:"dropped"`
}

// Snapshot copies the counters.
func (m *Metrics) Snapshot() Stats {
	return Stats{
		Datagrams:         m.Datagrams.Load(),
		RejectedDatagrams: m.RejectedDatagrams.Load(),
		Telegrams:         m.Telegrams.Load(),
		DecodeErrors:      m.DecodeErrors.Load(),
		Delivered:         m.Delivered.Load(),
		Dropped:           m.Dropped.Load(),
	}
}

// Reset resets all counters to zero.
func (m *Metrics) Reset() {
	m.Datagrams.Store(0)
	m.RejectedDatagrams.Store(0)
	m.Telegrams.Store(0)
	m.DecodeErrors.Store(0)
	m.Delivered.Store(0)
	m.Dropped.Store(0)
}
