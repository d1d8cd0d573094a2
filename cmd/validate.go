// Package cmd implements CLI commands.
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"firestige.xyz/safetyscanner/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and an optional channel file",
	Long: `Validate the configuration given with -c (it is loaded before any command
runs) and, with -f, a standalone channel file (JSON or YAML) without
contacting the scanner.

Examples:
  safetyscanner validate -c scanner.yml
  safetyscanner validate -f channel1.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(cfg, validateChannelFile, cmd.OutOrStdout())
	},
}

var validateChannelFile string

func init() {
	validateCmd.Flags().StringVarP(&validateChannelFile, "file", "f", "",
		"channel configuration file to validate")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(c *config.Config, channelPath string, w io.Writer) error {
	settings, err := c.CommSettings(0)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "VALID: sensor %s, channel %d → %s:%d (%s)\n",
		c.Sensor.Address(), settings.Channel, settings.HostIP, settings.HostUDPPort, settings.Features)

	if channelPath == "" {
		return nil
	}
	data, err := os.ReadFile(channelPath)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", channelPath, err)
	}
	ch, err := config.ParseChannelConfig(data)
	if err != nil {
		return fmt.Errorf("INVALID: %s: %w", channelPath, err)
	}
	fmt.Fprintf(w, "VALID: channel file %s, channel %d, sector %.2f..%.2f, features %v\n",
		channelPath, ch.Number, ch.StartAngle, ch.EndAngle, ch.Features)
	return nil
}
