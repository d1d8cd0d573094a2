package scanner

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"firestige.xyz/safetyscanner/internal/core"
	"firestige.xyz/safetyscanner/internal/core/decoder"
	"firestige.xyz/safetyscanner/internal/pipeline"
)

// DatagramClient is the UDP side of the device. transport.UDPClient
// implements it.
type DatagramClient interface {
	pipeline.Source
	Receive(ctx context.Context, timeout time.Duration) (core.Buffer, error)
	IsDataAvailable() bool
	Stop() error
}

// StreamerConfig configures a Streamer.
type StreamerConfig struct {
	BufferSize int
	Reassembly decoder.ReassemblyConfig
	WarnLimit  pipeline.WarnLimitConfig
	Logger     *slog.Logger
}

// Streamer delivers decoded data telegrams from one datagram client, either
// continuously through Run or by polling with Receive. The two modes must
// not be mixed.
type Streamer struct {
	client   DatagramClient
	pipeline *pipeline.Pipeline
	logger   *slog.Logger
	running  atomic.Bool
}

// NewStreamer creates a streamer that owns client.
func NewStreamer(client DatagramClient, cfg StreamerConfig) *Streamer {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Streamer{
		client: client,
		pipeline: pipeline.New(client, pipeline.Config{
			BufferSize: cfg.BufferSize,
			Reassembly: cfg.Reassembly,
			WarnLimit:  cfg.WarnLimit,
			Logger:     cfg.Logger,
		}),
		logger: cfg.Logger.With("component", "streamer"),
	}
}

// Telegrams returns the channel Run delivers to when no handler is given.
func (s *Streamer) Telegrams() <-chan core.Data { return s.pipeline.Telegrams() }

// Stats returns the pipeline counters.
func (s *Streamer) Stats() pipeline.Stats { return s.pipeline.Metrics().Snapshot() }

// Run receives until ctx is done or Stop is called. With a handler, a
// dispatch goroutine calls it for every telegram so a slow handler never
// blocks the socket; telegrams that do not fit the buffer are dropped. With
// a nil handler the caller reads Telegrams instead. Run may be called once.
func (s *Streamer) Run(ctx context.Context, handler func(core.Data)) error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("streamer already running")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.pipeline.Run(gctx)
	})
	if handler != nil {
		g.Go(func() error {
			for data := range s.pipeline.Telegrams() {
				handler(data)
			}
			return nil
		})
	}
	err := g.Wait()
	if ctx.Err() != nil {
		s.client.Stop()
	}
	return err
}

// Receive blocks until one telegram is complete and returns it decoded.
// timeout bounds the whole wait. Rejected datagrams and decode failures are
// returned as errors.
func (s *Streamer) Receive(ctx context.Context, timeout time.Duration) (core.Data, error) {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return core.Data{}, &core.TimeoutError{Op: "receive telegram", Timeout: timeout}
		}
		datagram, err := s.client.Receive(ctx, remaining)
		if err != nil {
			if errors.Is(err, core.ErrTimeout) {
				return core.Data{}, &core.TimeoutError{Op: "receive telegram", Timeout: timeout}
			}
			return core.Data{}, err
		}
		data, ok, err := s.pipeline.Feed(datagram)
		if err != nil {
			return data, err
		}
		if ok {
			return data, nil
		}
	}
}

// IsDataAvailable reports whether a datagram is waiting to be received.
func (s *Streamer) IsDataAvailable() bool { return s.client.IsDataAvailable() }

// Stop ends Run and any pending Receive.
func (s *Streamer) Stop() error {
	s.logger.Info("stopping streamer")
	return s.client.Stop()
}
