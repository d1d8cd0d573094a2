// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DatagramsReceivedTotal counts UDP datagrams read from the data socket
	DatagramsReceivedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "safetyscanner_datagrams_received_total",
			Help: "Total number of UDP datagrams received",
		},
	)

	// DatagramBytesTotal counts UDP payload bytes read from the data socket
	DatagramBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "safetyscanner_datagram_bytes_total",
			Help: "Total number of UDP payload bytes received",
		},
	)

	// TelegramsReassembledTotal counts complete data telegrams
	TelegramsReassembledTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "safetyscanner_telegrams_reassembled_total",
			Help: "Total number of data telegrams reassembled from datagrams",
		},
	)

	// ReassemblyDiscardedTotal counts partial telegrams and datagrams thrown away
	ReassemblyDiscardedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safetyscanner_reassembly_discarded_total",
			Help: "Total number of datagrams or partial telegrams discarded",
		},
		[]string{"reason"},
	)

	// ReassemblyActiveFragments tracks fragments of the telegram in progress
	ReassemblyActiveFragments = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "safetyscanner_reassembly_active_fragments",
			Help: "Number of fragments held for the telegram being reassembled",
		},
	)

	// DecodeErrorsTotal counts data telegrams rejected by the decoders
	DecodeErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safetyscanner_decode_errors_total",
			Help: "Total number of data telegram decode failures",
		},
		[]string{"block"},
	)

	// TelegramsDroppedTotal counts decoded telegrams the consumer did not keep up with
	TelegramsDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "safetyscanner_telegrams_dropped_total",
			Help: "Total number of decoded telegrams dropped because the consumer was slow",
		},
	)

	// CommandsTotal counts COLA2 commands by name and result
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safetyscanner_cola2_commands_total",
			Help: "Total number of COLA2 commands executed",
		},
		[]string{"command", "result"},
	)

	// CommandLatencySeconds measures COLA2 request/reply round trips
	CommandLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "safetyscanner_cola2_command_latency_seconds",
			Help:    "Latency of COLA2 request/reply round trips in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
		},
		[]string{"command"},
	)

	// SessionState tracks the COLA2 session state
	SessionState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "safetyscanner_cola2_session_state",
			Help: "Current COLA2 session state (0=closed, 1=open)",
		},
	)
)

// SessionStateValue represents session state as a numeric value for Prometheus gauge
const (
	SessionStateClosed = 0
	SessionStateOpen   = 1
)

// Command result label values
const (
	ResultOK       = "ok"
	ResultTimeout  = "timeout"
	ResultError    = "error"
	ResultRejected = "rejected"
)
