package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"firestige.xyz/safetyscanner/internal/config"
	"firestige.xyz/safetyscanner/internal/core"
	"firestige.xyz/safetyscanner/internal/core/decoder"
	"firestige.xyz/safetyscanner/internal/scanner"
	"firestige.xyz/safetyscanner/internal/transport"
)

var (
	streamCount   int
	keepOnExit    bool
	streamPolling bool
)

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Receive and print measurement telegrams",
	Long: `Bind the UDP port, point the configured channel of the scanner at it and
print one line per received telegram until interrupted or --count telegrams
have arrived. The channel is disabled again on exit unless --keep is given.

Examples:
  safetyscanner stream -c scanner.yml
  safetyscanner stream --count 100 -o json
  safetyscanner stream --poll`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		stopMetrics, err := startMetrics(ctx, cfg.Metrics)
		if err != nil {
			return err
		}
		defer stopMetrics()

		opts := streamOptions{
			Count:   streamCount,
			Keep:    keepOnExit,
			Polling: streamPolling,
		}
		return runStream(ctx, cfg, opts, cmd.OutOrStdout(), outputFormat, slog.Default())
	},
}

func init() {
	streamCmd.Flags().IntVarP(&streamCount, "count", "n", 0, "stop after this many telegrams (0 = unlimited)")
	streamCmd.Flags().BoolVar(&keepOnExit, "keep", false, "leave the channel enabled on exit")
	streamCmd.Flags().BoolVar(&streamPolling, "poll", false, "receive synchronously instead of with a dispatch goroutine")
	rootCmd.AddCommand(streamCmd)
}

type streamOptions struct {
	Count   int
	Keep    bool
	Polling bool
}

func runStream(ctx context.Context, c *config.Config, opts streamOptions, w io.Writer, format string, logger *slog.Logger) error {
	client, err := transport.ListenUDP(c.Host.ListenAddress(),
		transport.WithUDPLogger(logger),
		transport.WithBatchSize(c.Stream.BatchSize),
		transport.WithReadBuffer(c.Stream.ReadBufferBytes),
		transport.WithMarkerFilter(c.Stream.MarkerFilter),
	)
	if err != nil {
		return err
	}
	defer client.Stop()

	settings, err := c.CommSettings(client.LocalPort())
	if err != nil {
		return err
	}

	s := newScanner(c, logger)
	defer s.Close(context.Background())

	if err := s.ChangeSensorSettings(ctx, settings); err != nil {
		return fmt.Errorf("failed to configure channel %d: %w", settings.Channel, err)
	}
	logger.Info("streaming", "channel", settings.Channel, "port", settings.HostUDPPort,
		"features", settings.Features.String())

	if !opts.Keep {
		defer func() {
			settings.Enabled = false
			dctx, cancel := context.WithTimeout(context.Background(), c.Sensor.CommandTimeout+c.Sensor.ConnectTimeout)
			defer cancel()
			if err := s.ChangeSensorSettings(dctx, settings); err != nil {
				logger.Warn("failed to disable channel", "channel", settings.Channel, "error", err)
			}
		}()
	}

	st := scanner.NewStreamer(client, scanner.StreamerConfig{
		BufferSize: c.Stream.BufferSize,
		Reassembly: decoder.ReassemblyConfig{
			MaxTelegramSize: c.Stream.MaxTelegramSize,
			MaxFragments:    c.Stream.MaxFragments,
		},
		WarnLimit: c.Stream.WarnLimit(),
		Logger:    logger,
	})

	if opts.Polling {
		err = pollTelegrams(ctx, st, opts.Count, c.Stream.ReceiveTimeout, w, format, logger)
	} else {
		err = dispatchTelegrams(ctx, st, opts.Count, w, format, logger)
	}

	stats := st.Stats()
	logger.Info("stream finished",
		"datagrams", stats.Datagrams,
		"telegrams", stats.Telegrams,
		"rejected", stats.RejectedDatagrams,
		"decode_errors", stats.DecodeErrors,
		"dropped", stats.Dropped)
	return err
}

func dispatchTelegrams(ctx context.Context, st *scanner.Streamer, count int, w io.Writer, format string, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var n atomic.Int64
	return st.Run(ctx, func(d core.Data) {
		k := n.Add(1)
		if count > 0 && k > int64(count) {
			return // buffered after the limit
		}
		if err := writeSummary(w, format, d); err != nil {
			logger.Warn("failed to write telegram", "error", err)
		}
		if count > 0 && k == int64(count) {
			cancel()
		}
	})
}

func pollTelegrams(ctx context.Context, st *scanner.Streamer, count int, timeout time.Duration, w io.Writer, format string, logger *slog.Logger) error {
	for n := 0; count == 0 || n < count; {
		if ctx.Err() != nil {
			return nil
		}
		d, err := st.Receive(ctx, timeout)
		switch {
		case err == nil:
			n++
			if err := writeSummary(w, format, d); err != nil {
				return err
			}
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, core.ErrTimeout):
			logger.Debug("no telegram", "timeout", timeout)
		case errors.Is(err, core.ErrDecode), errors.Is(err, core.ErrProtocol):
			logger.Warn("discarding datagram", "error", err)
		default:
			return err
		}
	}
	return nil
}
