package core

import (
	"encoding/binary"
	"fmt"
	"math"
	"net/netip"
	"strings"
)

// Features selects the blocks published on a UDP channel.
type Features uint16

const (
	FeatureGeneralSystemState Features = 1 << iota
	FeatureDerivedValues
	FeatureMeasurementData
	FeatureIntrusionData
	FeatureApplicationData

	FeaturesAll = FeatureGeneralSystemState | FeatureDerivedValues | FeatureMeasurementData |
		FeatureIntrusionData | FeatureApplicationData
)

// Has reports whether every bit of f2 is set.
func (f Features) Has(f2 Features) bool { return f&f2 == f2 }

var featureNames = []struct {
	bit  Features
	name string
}{
	{FeatureGeneralSystemState, "general_system_state"},
	{FeatureDerivedValues, "derived_values"},
	{FeatureMeasurementData, "measurement_data"},
	{FeatureIntrusionData, "intrusion_data"},
	{FeatureApplicationData, "application_data"},
}

func (f Features) String() string {
	if f == 0 {
		return "none"
	}
	var names []string
	for _, e := range featureNames {
		if f.Has(e.bit) {
			names = append(names, e.name)
		}
	}
	return strings.Join(names, "|")
}

// ParseFeatures accepts the block names printed by String, and "all".
func ParseFeatures(names []string) (Features, error) {
	var f Features
next:
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "all" {
			f |= FeaturesAll
			continue
		}
		for _, e := range featureNames {
			if e.name == n {
				f |= e.bit
				continue next
			}
		}
		return 0, fmt.Errorf("%w: unknown feature %q", ErrConfigInvalid, n)
	}
	return f, nil
}

// CommSettingsSize is the encoded size of CommSettings.
const CommSettingsSize = 28

// CommSettings configures one UDP output channel of the device.
type CommSettings struct {
	Channel             uint8
	Enabled             bool
	EInterfaceType      uint8
	HostIP              netip.Addr
	HostUDPPort         uint16
	PublishingFrequency uint16
	StartAngle          float64 // degrees
	EndAngle            float64 // degrees
	Features            Features
}

// DefaultCommSettings returns channel 0, enabled, every block, frequency 1.
func DefaultCommSettings() CommSettings {
	return CommSettings{
		Channel:             0,
		Enabled:             true,
		HostIP:              netip.AddrFrom4([4]byte{192, 168, 1, 100}),
		PublishingFrequency: 1,
		Features:            FeaturesAll,
	}
}

// Encode returns the little-endian method payload. The start angle rounds
// down and the end angle rounds up so the requested sector is always covered.
func (s CommSettings) Encode() []byte {
	buf := make([]byte, CommSettingsSize)
	buf[0] = s.Channel
	if s.Enabled {
		buf[4] = 1
	}
	buf[5] = s.EInterfaceType
	binary.LittleEndian.PutUint32(buf[8:], AddrToUint32(s.HostIP))
	binary.LittleEndian.PutUint16(buf[12:], s.HostUDPPort)
	binary.LittleEndian.PutUint16(buf[14:], s.PublishingFrequency)
	binary.LittleEndian.PutUint32(buf[16:], uint32(int32(math.Floor(s.StartAngle*AngleScale))))
	binary.LittleEndian.PutUint32(buf[20:], uint32(int32(math.Ceil(s.EndAngle*AngleScale))))
	binary.LittleEndian.PutUint16(buf[24:], uint16(s.Features))
	return buf
}

// AddrToUint32 packs an IPv4 address with the first octet most significant.
// Non IPv4 addresses yield zero.
func AddrToUint32(a netip.Addr) uint32 {
	if !a.Is4() {
		return 0
	}
	b := a.As4()
	return binary.BigEndian.Uint32(b[:])
}

// AddrFromUint32 is the inverse of AddrToUint32.
func AddrFromUint32(v uint32) netip.Addr {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return netip.AddrFrom4(b)
}

// ParseCommSettings decodes the method payload produced by Encode.
func ParseCommSettings(b []byte) (CommSettings, error) {
	blk, err := NewBlock("comm settings", b, 0, CommSettingsSize)
	if err != nil {
		return CommSettings{}, err
	}
	return CommSettings{
		Channel:             blk.Uint8(0),
		Enabled:             blk.Uint8(4) != 0,
		EInterfaceType:      blk.Uint8(5),
		HostIP:              AddrFromUint32(blk.Uint32(8)),
		HostUDPPort:         blk.Uint16(12),
		PublishingFrequency: blk.Uint16(14),
		StartAngle:          FromFixedPoint(blk.Int32(16)),
		EndAngle:            FromFixedPoint(blk.Int32(20)),
		Features:            Features(blk.Uint16(24)),
	}, blk.Err()
}
