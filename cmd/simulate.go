package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"firestige.xyz/safetyscanner/internal/config"
	"firestige.xyz/safetyscanner/internal/simulator"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a simulated scanner",
	Long: `Serve the COLA2 command interface of a simulated scanner and publish
synthetic scans to whatever host the last configure call selected.

Examples:
  safetyscanner simulate
  SCANNER_SIMULATOR_LISTEN=0.0.0.0:2122 safetyscanner simulate`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		stopMetrics, err := startMetrics(ctx, cfg.Metrics)
		if err != nil {
			return err
		}
		defer stopMetrics()

		ln, err := net.Listen("tcp", cfg.Simulator.Listen)
		if err != nil {
			return fmt.Errorf("simulator listen %s: %w", cfg.Simulator.Listen, err)
		}
		return runSimulate(ctx, cfg.Simulator, ln, cmd.OutOrStdout(), slog.Default())
	},
}

func init() {
	rootCmd.AddCommand(simulateCmd)
}

// runSimulate serves ln until ctx is done. The listener is closed on return.
func runSimulate(ctx context.Context, c config.SimulatorConfig, ln net.Listener, w io.Writer, logger *slog.Logger) error {
	dev := simulator.NewDevice(logger)
	fmt.Fprintf(w, "simulated scanner listening on %s (channel %d, every %s)\n", ln.Addr(), c.Channel, c.Interval)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return dev.Serve(gctx, ln)
	})
	g.Go(func() error {
		return dev.Stream(gctx, c.Channel, c.Interval, c.MaxPayload)
	})
	return g.Wait()
}
