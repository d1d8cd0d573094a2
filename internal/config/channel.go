package config

import (
	"fmt"
	"net/netip"

	"gopkg.in/yaml.v3"

	"firestige.xyz/safetyscanner/internal/cola2"
	"firestige.xyz/safetyscanner/internal/core"
)

// ChannelConfig is the output configuration of one UDP channel. It is part
// of the global configuration and can also be loaded on its own for the
// configure command.
type ChannelConfig struct {
	Number              uint8    `mapstructure:"number" yaml:"number"`
	Enabled             bool     `mapstructure:"enabled" yaml:"enabled"`
	InterfaceType       uint8    `mapstructure:"interface_type" yaml:"interface_type"`
	PublishingFrequency uint16   `mapstructure:"publishing_frequency" yaml:"publishing_frequency"` // every nth scan
	StartAngle          float64  `mapstructure:"start_angle" yaml:"start_angle"`                   // degrees
	EndAngle            float64  `mapstructure:"end_angle" yaml:"end_angle"`                       // degrees
	Features            []string `mapstructure:"features" yaml:"features"`
}

// DefaultChannelConfig publishes every block of channel 0 for each scan
// over the full device range.
func DefaultChannelConfig() ChannelConfig {
	return ChannelConfig{
		Enabled:             true,
		PublishingFrequency: 1,
		Features:            []string{"all"},
	}
}

// Validate validates the channel configuration.
func (c *ChannelConfig) Validate() error {
	if c.Number >= cola2.MaxChannels {
		return fmt.Errorf("%w: channel number %d out of range (0-%d)", core.ErrConfigInvalid, c.Number, cola2.MaxChannels-1)
	}
	if c.PublishingFrequency == 0 {
		c.PublishingFrequency = 1 // Default to every scan
	}
	// 0/0 leaves the sector to the device.
	if (c.StartAngle != 0 || c.EndAngle != 0) && c.StartAngle >= c.EndAngle {
		return fmt.Errorf("%w: start_angle %.2f must be below end_angle %.2f", core.ErrConfigInvalid, c.StartAngle, c.EndAngle)
	}
	if len(c.Features) == 0 {
		c.Features = []string{"all"}
	}
	if _, err := core.ParseFeatures(c.Features); err != nil {
		return err
	}
	return nil
}

// CommSettings converts the channel configuration for a host address.
func (c ChannelConfig) CommSettings(host netip.Addr, port uint16) (core.CommSettings, error) {
	features, err := core.ParseFeatures(c.Features)
	if err != nil {
		return core.CommSettings{}, err
	}
	return core.CommSettings{
		Channel:             c.Number,
		Enabled:             c.Enabled,
		EInterfaceType:      c.InterfaceType,
		HostIP:              host,
		HostUDPPort:         port,
		PublishingFrequency: c.PublishingFrequency,
		StartAngle:          c.StartAngle,
		EndAngle:            c.EndAngle,
		Features:            features,
	}, nil
}

// ParseChannelConfig parses a channel configuration from YAML or JSON.
// Omitted fields keep their DefaultChannelConfig values.
func ParseChannelConfig(data []byte) (*ChannelConfig, error) {
	c := DefaultChannelConfig()
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse channel config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &c, nil
}
