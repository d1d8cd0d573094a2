package config

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"firestige.xyz/safetyscanner/internal/core"
)

// configRoot is the top-level wrapper matching the YAML structure `scanner: ...`.
type configRoot struct {
	Scanner Config `mapstructure:"scanner"`
}

// Load loads configuration from file. An empty path loads the defaults,
// still subject to environment overrides.
// The YAML file uses `scanner:` as root key; env vars use the SCANNER_ prefix
// (e.g., SCANNER_SENSOR_IP).
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variable overrides.
	// The `scanner.` key prefix maps to `SCANNER_` via the key replacer
	// (e.g., key "scanner.sensor.ip" → env "SCANNER_SENSOR_IP").
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root, viper.DecodeHook(decodeHook())); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal config: %w", core.ErrConfigInvalid, err)
	}
	cfg := root.Scanner

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.StringToNetIPAddrHookFunc(),
	)
}

// setDefaults sets default values for configuration.
// All keys use "scanner." prefix to match the YAML root wrapper.
// Every key needs a default so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	// Sensor defaults
	v.SetDefault("scanner.sensor.ip", "192.168.1.11")
	v.SetDefault("scanner.sensor.tcp_port", 2122)
	v.SetDefault("scanner.sensor.connect_timeout", "5s")
	v.SetDefault("scanner.sensor.command_timeout", "2s")
	v.SetDefault("scanner.sensor.heartbeat", 60)
	v.SetDefault("scanner.sensor.client_id", 1)

	// Host defaults
	v.SetDefault("scanner.host.ip", "192.168.1.100")
	v.SetDefault("scanner.host.bind_ip", "0.0.0.0")
	v.SetDefault("scanner.host.udp_port", 6060)

	// Channel defaults
	v.SetDefault("scanner.channel.number", 0)
	v.SetDefault("scanner.channel.enabled", true)
	v.SetDefault("scanner.channel.interface_type", 0)
	v.SetDefault("scanner.channel.publishing_frequency", 1)
	v.SetDefault("scanner.channel.start_angle", 0.0)
	v.SetDefault("scanner.channel.end_angle", 0.0)
	v.SetDefault("scanner.channel.features", []string{"all"})

	// Stream defaults
	v.SetDefault("scanner.stream.buffer_size", 64)
	v.SetDefault("scanner.stream.batch_size", 16)
	v.SetDefault("scanner.stream.read_buffer", 4<<20)
	v.SetDefault("scanner.stream.marker_filter", true)
	v.SetDefault("scanner.stream.receive_timeout", "1s")
	v.SetDefault("scanner.stream.max_telegram_size", 1<<20)
	v.SetDefault("scanner.stream.max_fragments", 1024)
	v.SetDefault("scanner.stream.max_warnings", 10)
	v.SetDefault("scanner.stream.warning_window", "10s")

	// Replay defaults
	v.SetDefault("scanner.replay.port", 0)
	v.SetDefault("scanner.replay.speed", 0.0)

	// Simulator defaults
	v.SetDefault("scanner.simulator.listen", "127.0.0.1:2122")
	v.SetDefault("scanner.simulator.channel", 0)
	v.SetDefault("scanner.simulator.interval", "40ms")
	v.SetDefault("scanner.simulator.max_payload", 0)

	// Metrics defaults
	v.SetDefault("scanner.metrics.enabled", false)
	v.SetDefault("scanner.metrics.listen", ":9091")
	v.SetDefault("scanner.metrics.path", "/metrics")

	// Log defaults
	v.SetDefault("scanner.log.level", "info")
	v.SetDefault("scanner.log.format", "text")
	v.SetDefault("scanner.log.file.enabled", false)
	v.SetDefault("scanner.log.file.path", "/var/log/safetyscanner/safetyscanner.log")
	v.SetDefault("scanner.log.file.rotation.max_size_mb", 100)
	v.SetDefault("scanner.log.file.rotation.max_age_days", 30)
	v.SetDefault("scanner.log.file.rotation.max_backups", 5)
	v.SetDefault("scanner.log.file.rotation.compress", true)
}
