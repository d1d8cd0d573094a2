package cmd

import (
	"context"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"firestige.xyz/safetyscanner/internal/config"
	"firestige.xyz/safetyscanner/internal/core"
	"firestige.xyz/safetyscanner/internal/core/decoder"
	"firestige.xyz/safetyscanner/internal/pipeline"
	"firestige.xyz/safetyscanner/internal/replay"
)

var (
	replayPort  uint16
	replaySpeed float64
)

var replayCmd = &cobra.Command{
	Use:   "replay <capture>",
	Short: "Decode telegrams from a pcap or pcapng capture",
	Long: `Read UDP datagrams from a capture file, reassemble and decode them the same
way a live stream is handled, and print one line per telegram followed by the
pipeline statistics.

Examples:
  safetyscanner replay scan.pcapng
  safetyscanner replay scan.pcap --port 6060 --speed 1`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		if cmd.Flags().Changed("port") {
			cfg.Replay.Port = replayPort
		}
		if cmd.Flags().Changed("speed") {
			cfg.Replay.Speed = replaySpeed
		}
		stats, err := runReplay(ctx, cfg, args[0], cmd.OutOrStdout(), outputFormat, slog.Default())
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), outputFormat, stats)
	},
}

func init() {
	replayCmd.Flags().Uint16Var(&replayPort, "port", 0, "UDP destination port to keep (default replay.port)")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 0, "replay at capture timing scaled by this factor (0 = as fast as possible)")
	rootCmd.AddCommand(replayCmd)
}

// runReplay feeds the capture synchronously so no telegram is dropped.
func runReplay(ctx context.Context, c *config.Config, path string, w io.Writer, format string, logger *slog.Logger) (pipeline.Stats, error) {
	src, err := replay.NewSource(replay.Config{
		Path:   path,
		Port:   c.Replay.Port,
		Speed:  c.Replay.Speed,
		Logger: logger,
	})
	if err != nil {
		return pipeline.Stats{}, err
	}

	p := pipeline.New(src, pipeline.Config{
		Reassembly: decoder.ReassemblyConfig{
			MaxTelegramSize: c.Stream.MaxTelegramSize,
			MaxFragments:    c.Stream.MaxFragments,
		},
		WarnLimit: c.Stream.WarnLimit(),
		Logger:    logger,
	})

	var writeErr error
	err = src.Run(ctx, func(b core.Buffer) {
		d, ok, err := p.Feed(b)
		if err != nil {
			p.ReportError(err)
			return
		}
		if ok && writeErr == nil {
			writeErr = writeSummary(w, format, d)
		}
	})
	if err == nil {
		err = writeErr
	}
	return p.Metrics().Snapshot(), err
}
