package log

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"firestige.xyz/safetyscanner/internal/config"
)

func TestParseLevelValid(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := parseLevel(tt.input)
			if err != nil {
				t.Errorf("parseLevel(%q) returned error: %v", tt.input, err)
			}
			if level != tt.expected {
				t.Errorf("parseLevel(%q) = %v, expected %v", tt.input, level, tt.expected)
			}
		})
	}
}

func TestParseLevelInvalid(t *testing.T) {
	for _, input := range []string{"invalid", "trace", ""} {
		t.Run(input, func(t *testing.T) {
			if _, err := parseLevel(input); err == nil {
				t.Errorf("parseLevel(%q) should return error, got nil", input)
			}
		})
	}
}

func TestNewLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, file, err := New(config.LogConfig{Level: "warn", Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if file != nil {
		t.Error("Expected no file writer")
	}

	logger.Info("info message")
	logger.Warn("warn message", "channel", 2)

	output := buf.String()
	if strings.Contains(output, "info message") {
		t.Error("Info message should be filtered out")
	}
	if !strings.Contains(output, `"msg":"warn message"`) || !strings.Contains(output, `"channel":2`) {
		t.Errorf("Unexpected JSON output: %s", output)
	}
}

func TestNewTextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := New(config.LogConfig{Level: "info", Format: "text"}, &buf)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	logger.With("component", "session").Info("session opened", "session_id", 7)

	output := buf.String()
	if !strings.Contains(output, "component=session") || !strings.Contains(output, "session_id=7") {
		t.Errorf("Unexpected text output: %s", output)
	}
}

func TestInitWithFileOutput(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "scanner.log")

	cfg := config.LogConfig{
		Level:  "debug",
		Format: "text",
		File: config.FileOutputConfig{
			Enabled: true,
			Path:    logPath,
			Rotation: config.RotationConfig{
				MaxSizeMB:  10,
				MaxBackups: 3,
				MaxAgeDays: 7,
			},
		},
	}

	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	if err := Init(cfg); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	slog.Info("test message", "key", "value")
	if err := Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("Log file was not created at %s: %v", logPath, err)
	}
	if !strings.Contains(string(data), "key=value") {
		t.Errorf("Log file misses the message: %s", data)
	}
	if err := Close(); err != nil {
		t.Errorf("Second Close failed: %v", err)
	}
}

func TestInitErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.LogConfig
		want string
	}{
		{"level", config.LogConfig{Level: "invalid", Format: "json"}, "invalid log level"},
		{"format", config.LogConfig{Level: "info", Format: "xml"}, "unsupported log format"},
		{"file path", config.LogConfig{Level: "info", Format: "json", File: config.FileOutputConfig{Enabled: true}}, "requires 'path'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Init(tt.cfg)
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got: %v", tt.want, err)
			}
		})
	}
}
