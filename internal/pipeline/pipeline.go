// Package pipeline turns a stream of raw datagrams into decoded telegrams.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"firestige.xyz/safetyscanner/internal/core"
	"firestige.xyz/safetyscanner/internal/core/decoder"
	"firestige.xyz/safetyscanner/internal/metrics"
)

// DefaultBufferSize is the default capacity of the telegram channel.
const DefaultBufferSize = 64

// Source yields raw datagrams, one onDatagram call per datagram, until ctx
// is done or the source is exhausted or stopped.
type Source interface {
	Run(ctx context.Context, onDatagram func(core.Buffer)) error
}

// Config contains pipeline configuration.
type Config struct {
	BufferSize int // telegram channel capacity
	Reassembly decoder.ReassemblyConfig
	WarnLimit  WarnLimitConfig
	Logger     *slog.Logger
}

// Pipeline reassembles and decodes datagrams. Run pushes telegrams into a
// bounded channel; when the consumer falls behind, new telegrams are dropped
// rather than stalling the socket reader.
type Pipeline struct {
	source    Source
	assembler *decoder.Reassembler
	logger    *slog.Logger
	warnings  *WarnLimiter
	metrics   *Metrics
	out       chan core.Data
}

// New creates a pipeline reading from src.
func New(src Source, cfg Config) *Pipeline {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Pipeline{
		source:    src,
		assembler: decoder.NewReassembler(cfg.Reassembly),
		logger:    cfg.Logger.With("component", "pipeline"),
		warnings:  NewWarnLimiter(cfg.WarnLimit),
		metrics:   &Metrics{},
		out:       make(chan core.Data, cfg.BufferSize),
	}
}

// Telegrams returns the channel Run delivers to. It is closed when Run
// returns.
func (p *Pipeline) Telegrams() <-chan core.Data { return p.out }

// Metrics returns the pipeline counters.
func (p *Pipeline) Metrics() *Metrics { return p.metrics }

// Run reads the source until it ends.
func (p *Pipeline) Run(ctx context.Context) error {
	defer close(p.out)

	start := time.Now()
	p.logger.Info("pipeline starting")
	err := p.source.Run(ctx, p.deliver)
	stats := p.metrics.Snapshot()
	p.logger.Info("pipeline stopped",
		"duration", time.Since(start),
		"datagrams", stats.Datagrams,
		"telegrams", stats.Telegrams,
		"dropped", stats.Dropped,
		"suppressed_warnings", p.warnings.Suppressed())
	return err
}

func (p *Pipeline) deliver(datagram core.Buffer) {
	data, ok, err := p.Feed(datagram)
	if err != nil {
		p.ReportError(err)
		return
	}
	if !ok {
		return
	}
	select {
	case p.out <- data:
		p.metrics.Delivered.Add(1)
	default:
		p.metrics.Dropped.Add(1)
		metrics.TelegramsDroppedTotal.Inc()
		p.logger.Debug("telegram dropped, consumer too slow", "scan_number", data.Header.ScanNumber)
	}
}

// ReportError logs a Feed error, subject to the warning limit.
func (p *Pipeline) ReportError(err error) {
	kind := "datagram"
	if errors.Is(err, core.ErrDecode) {
		kind = "decode"
	}
	if !p.warnings.Allow(kind, time.Now()) {
		return
	}
	p.logger.Warn("datagram rejected", "kind", kind, "error", err)
}

// Feed adds one datagram and returns the decoded telegram once it is
// complete. A decode error is returned together with whatever blocks were
// decoded before it. Feed must not be called while Run is running.
func (p *Pipeline) Feed(datagram core.Buffer) (core.Data, bool, error) {
	p.metrics.Datagrams.Add(1)
	complete, err := p.assembler.Add(datagram)
	if err != nil {
		p.metrics.RejectedDatagrams.Add(1)
		return core.Data{}, false, err
	}
	if !complete {
		return core.Data{}, false, nil
	}

	telegram, err := p.assembler.Deploy()
	if err != nil {
		return core.Data{}, false, err
	}
	p.metrics.Telegrams.Add(1)

	data, err := decoder.DecodeData(telegram)
	if err != nil {
		if errors.Is(err, core.ErrDecode) {
			p.metrics.DecodeErrors.Add(1)
		}
		return data, false, err
	}
	return data, true, nil
}
