// Package config handles global configuration loading using viper.
package config

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"firestige.xyz/safetyscanner/internal/core"
	"firestige.xyz/safetyscanner/internal/pipeline"
)

// Config represents the top-level configuration.
// Maps to the `scanner:` root key in YAML.
type Config struct {
	Sensor    SensorConfig    `mapstructure:"sensor"`
	Host      HostConfig      `mapstructure:"host"`
	Channel   ChannelConfig   `mapstructure:"channel"`
	Stream    StreamConfig    `mapstructure:"stream"`
	Replay    ReplayConfig    `mapstructure:"replay"`
	Simulator SimulatorConfig `mapstructure:"simulator"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Log       LogConfig       `mapstructure:"log"`
}

// ─── Sensor ───

// SensorConfig addresses the command interface of the device.
type SensorConfig struct {
	IP             netip.Addr    `mapstructure:"ip"`
	TCPPort        uint16        `mapstructure:"tcp_port"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	CommandTimeout time.Duration `mapstructure:"command_timeout"`
	Heartbeat      uint8         `mapstructure:"heartbeat"` // session heartbeat, seconds
	ClientID       uint32        `mapstructure:"client_id"`
}

// Address returns ip:port of the command interface.
func (s SensorConfig) Address() string {
	return netip.AddrPortFrom(s.IP, s.TCPPort).String()
}

// ─── Host ───

// HostConfig describes where the device publishes data telegrams.
type HostConfig struct {
	IP      netip.Addr `mapstructure:"ip"`       // announced to the device
	BindIP  netip.Addr `mapstructure:"bind_ip"`  // local listen address
	UDPPort uint16     `mapstructure:"udp_port"` // 0 = pick a free port
}

// ListenAddress returns the local UDP listen address.
func (h HostConfig) ListenAddress() string {
	return netip.AddrPortFrom(h.BindIP, h.UDPPort).String()
}

// ─── Streaming ───

// StreamConfig tunes the datagram receive path.
type StreamConfig struct {
	BufferSize      int           `mapstructure:"buffer_size"`   // telegram channel capacity
	BatchSize       int           `mapstructure:"batch_size"`    // datagrams per batched read
	ReadBufferBytes int           `mapstructure:"read_buffer"`   // socket receive buffer
	MarkerFilter    bool          `mapstructure:"marker_filter"` // attach the BPF marker filter
	ReceiveTimeout  time.Duration `mapstructure:"receive_timeout"`
	MaxTelegramSize int           `mapstructure:"max_telegram_size"`
	MaxFragments    int           `mapstructure:"max_fragments"`
	MaxWarnings     int           `mapstructure:"max_warnings"` // rejected-datagram warnings per window (0 = all)
	WarningWindow   time.Duration `mapstructure:"warning_window"`
}

// WarnLimit returns the pipeline warning limit.
func (s StreamConfig) WarnLimit() pipeline.WarnLimitConfig {
	return pipeline.WarnLimitConfig{MaxPerWindow: s.MaxWarnings, Window: s.WarningWindow}
}

// ─── Replay ───

// ReplayConfig controls capture file replay.
type ReplayConfig struct {
	Port  uint16  `mapstructure:"port"`  // 0 = every UDP datagram
	Speed float64 `mapstructure:"speed"` // 0 = as fast as possible
}

// ─── Simulator ───

// SimulatorConfig configures the built-in device simulator.
type SimulatorConfig struct {
	Listen     string        `mapstructure:"listen"`
	Channel    uint8         `mapstructure:"channel"`
	Interval   time.Duration `mapstructure:"interval"`
	MaxPayload int           `mapstructure:"max_payload"`
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// ─── Log ───

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string           `mapstructure:"level"`  // debug / info / warn / error
	Format string           `mapstructure:"format"` // json / text
	File   FileOutputConfig `mapstructure:"file"`
}

// FileOutputConfig configures file log output.
type FileOutputConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Path     string         `mapstructure:"path"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	MaxBackups int  `mapstructure:"max_backups"`
	Compress   bool `mapstructure:"compress"`
}

// ValidateAndApplyDefaults validates configuration and applies runtime
// defaults that depend on other fields.
func (cfg *Config) ValidateAndApplyDefaults() error {
	// ── Log validation ──
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("%w: invalid log level: %s (must be debug/info/warn/error)", core.ErrConfigInvalid, cfg.Log.Level)
	}
	if cfg.Log.Format != "json" && cfg.Log.Format != "text" {
		return fmt.Errorf("%w: invalid log format: %s (must be json/text)", core.ErrConfigInvalid, cfg.Log.Format)
	}
	if cfg.Log.File.Enabled && cfg.Log.File.Path == "" {
		return fmt.Errorf("%w: log.file.path is required when log.file.enabled=true", core.ErrConfigInvalid)
	}

	// ── Sensor ──
	if !cfg.Sensor.IP.IsValid() || !cfg.Sensor.IP.Is4() {
		return fmt.Errorf("%w: sensor.ip must be an IPv4 address", core.ErrConfigInvalid)
	}
	if cfg.Sensor.TCPPort == 0 {
		return fmt.Errorf("%w: sensor.tcp_port is required", core.ErrConfigInvalid)
	}
	if cfg.Sensor.ConnectTimeout <= 0 || cfg.Sensor.CommandTimeout <= 0 {
		return fmt.Errorf("%w: sensor timeouts must be positive", core.ErrConfigInvalid)
	}

	// ── Host ──
	if !cfg.Host.IP.IsValid() || !cfg.Host.IP.Is4() {
		return fmt.Errorf("%w: host.ip must be an IPv4 address", core.ErrConfigInvalid)
	}
	if !cfg.Host.BindIP.IsValid() {
		cfg.Host.BindIP = netip.IPv4Unspecified()
	}

	// ── Channel ──
	if err := cfg.Channel.Validate(); err != nil {
		return err
	}

	// ── Stream ──
	if cfg.Stream.BufferSize < 1 || cfg.Stream.BatchSize < 1 {
		return fmt.Errorf("%w: stream.buffer_size and stream.batch_size must be at least 1", core.ErrConfigInvalid)
	}
	if cfg.Stream.ReceiveTimeout <= 0 {
		return fmt.Errorf("%w: stream.receive_timeout must be positive", core.ErrConfigInvalid)
	}

	// ── Replay ──
	if cfg.Replay.Speed < 0 {
		return fmt.Errorf("%w: replay.speed must not be negative", core.ErrConfigInvalid)
	}
	if cfg.Replay.Port == 0 {
		cfg.Replay.Port = cfg.Host.UDPPort
	}

	// ── Simulator ──
	if cfg.Simulator.Interval <= 0 {
		return fmt.Errorf("%w: simulator.interval must be positive", core.ErrConfigInvalid)
	}

	// ── Metrics ──
	if cfg.Metrics.Enabled && cfg.Metrics.Listen == "" {
		return fmt.Errorf("%w: metrics.listen is required when metrics.enabled=true", core.ErrConfigInvalid)
	}
	return nil
}

// CommSettings returns the channel settings announced to the device. port
// overrides the configured UDP port when the listener picked one itself.
func (cfg *Config) CommSettings(port uint16) (core.CommSettings, error) {
	if port == 0 {
		port = cfg.Host.UDPPort
	}
	return cfg.Channel.CommSettings(cfg.Host.IP, port)
}
