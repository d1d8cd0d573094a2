// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"firestige.xyz/safetyscanner/internal/cola2"
	"firestige.xyz/safetyscanner/internal/config"
	"firestige.xyz/safetyscanner/internal/log"
	"firestige.xyz/safetyscanner/internal/metrics"
	"firestige.xyz/safetyscanner/internal/scanner"
	"firestige.xyz/safetyscanner/internal/transport"
)

var (
	// Global flags
	configFile   string
	logLevel     string
	outputFormat string

	// cfg is loaded once before any subcommand runs.
	cfg *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "safetyscanner",
	Short: "Host-side driver for SICK safety laser scanners",
	Long: `safetyscanner talks to a safety laser scanner over its COLA2 command
interface (TCP) and receives its measurement telegrams over UDP.

Features:
  - Device queries: identification, status, configuration, fields, monitoring cases
  - Channel configuration: host address, sector, published blocks
  - Streaming: fragment reassembly and decoding of data telegrams
  - Offline replay of pcap/pcapng captures
  - Built-in device simulator for bench testing`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		log.Close()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path (defaults plus SCANNER_* environment when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"override log.level (debug/info/warn/error)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "yaml",
		"output format (yaml/json)")
}

func loadConfig(cmd *cobra.Command, args []string) error {
	if cmd.Name() == versionCmd.Name() {
		return nil
	}
	c, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		c.Log.Level = logLevel
	}
	if err := log.Init(c.Log); err != nil {
		return err
	}
	cfg = c
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// newScanner builds a command client for the configured sensor.
func newScanner(c *config.Config, logger *slog.Logger) *scanner.Scanner {
	client := transport.NewTCPClient(c.Sensor.Address(), transport.WithTCPLogger(logger))
	return scanner.New(client,
		scanner.WithLogger(logger),
		scanner.WithCommandTimeout(c.Sensor.CommandTimeout),
		scanner.WithSessionOptions(
			cola2.WithLogger(logger),
			cola2.WithConnectTimeout(c.Sensor.ConnectTimeout),
			cola2.WithHeartbeat(c.Sensor.Heartbeat),
			cola2.WithClientID(c.Sensor.ClientID),
		),
	)
}

// startMetrics serves metrics when enabled. The returned stop function is
// always safe to call.
func startMetrics(ctx context.Context, c config.MetricsConfig) (func(), error) {
	if !c.Enabled {
		return func() {}, nil
	}
	srv := metrics.NewServer(c.Listen, c.Path)
	if err := srv.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start metrics server: %w", err)
	}
	return func() { srv.Stop(context.Background()) }, nil
}
