package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"firestige.xyz/safetyscanner/internal/config"
	"firestige.xyz/safetyscanner/internal/core"
	"firestige.xyz/safetyscanner/internal/scanner"
)

var (
	channelFile    string
	disableChannel bool
	findMeSeconds  uint16
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Configure a UDP output channel of the scanner",
	Long: `Send the channel settings to the scanner: destination host and port,
sector, publishing frequency and the data blocks to publish.

The settings come from the channel section of the configuration, or from a
standalone channel file (YAML or JSON) given with -f.

Examples:
  safetyscanner configure -c scanner.yml
  safetyscanner configure -f channel1.yaml
  safetyscanner configure --disable`,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := channelSettings()
		if err != nil {
			return err
		}
		if disableChannel {
			settings.Enabled = false
		}

		ctx, cancel := signalContext()
		defer cancel()

		s := newScanner(cfg, slog.Default())
		defer s.Close(context.Background())

		return runConfigure(ctx, s, settings, cmd.OutOrStdout(), outputFormat)
	},
}

var findMeCmd = &cobra.Command{
	Use:   "find-me",
	Short: "Make the scanner blink to identify it",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		s := newScanner(cfg, slog.Default())
		defer s.Close(context.Background())

		if err := s.FindSensor(ctx, findMeSeconds); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %s blinks for %ds\n", cfg.Sensor.Address(), findMeSeconds)
		return nil
	},
}

func init() {
	configureCmd.Flags().StringVarP(&channelFile, "file", "f", "", "channel configuration file")
	configureCmd.Flags().BoolVar(&disableChannel, "disable", false, "disable the channel")
	findMeCmd.Flags().Uint16Var(&findMeSeconds, "seconds", 5, "blink duration in seconds")
	rootCmd.AddCommand(configureCmd)
	rootCmd.AddCommand(findMeCmd)
}

func channelSettings() (core.CommSettings, error) {
	if channelFile == "" {
		return cfg.CommSettings(0)
	}
	data, err := os.ReadFile(channelFile)
	if err != nil {
		return core.CommSettings{}, fmt.Errorf("failed to read file %s: %w", channelFile, err)
	}
	ch, err := config.ParseChannelConfig(data)
	if err != nil {
		return core.CommSettings{}, err
	}
	return ch.CommSettings(cfg.Host.IP, cfg.Host.UDPPort)
}

// commSettingsView is the printable form of CommSettings.
type commSettingsView struct {
	Channel             uint8   `yaml:"channel" json:"channel"`
	Enabled             bool    `yaml:"enabled" json:"enabled"`
	Host                string  `yaml:"host" json:"host"`
	PublishingFrequency uint16  `yaml:"publishing_frequency" json:"publishing_frequency"`
	StartAngle          float64 `yaml:"start_angle" json:"start_angle"`
	EndAngle            float64 `yaml:"end_angle" json:"end_angle"`
	Features            string  `yaml:"features" json:"features"`
}

func viewCommSettings(s core.CommSettings) commSettingsView {
	return commSettingsView{
		Channel:             s.Channel,
		Enabled:             s.Enabled,
		Host:                fmt.Sprintf("%s:%d", s.HostIP, s.HostUDPPort),
		PublishingFrequency: s.PublishingFrequency,
		StartAngle:          s.StartAngle,
		EndAngle:            s.EndAngle,
		Features:            s.Features.String(),
	}
}

func runConfigure(ctx context.Context, s *scanner.Scanner, settings core.CommSettings, w io.Writer, format string) error {
	if err := s.ChangeSensorSettings(ctx, settings); err != nil {
		return err
	}
	return render(w, format, viewCommSettings(settings))
}
