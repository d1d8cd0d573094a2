package simulator

import (
	"context"
	"math"
	"net"
	"net/netip"
	"time"

	"firestige.xyz/safetyscanner/internal/core"
	"firestige.xyz/safetyscanner/internal/core/decoder"
)

// DefaultMaxPayload keeps fragments below a typical Ethernet MTU.
const DefaultMaxPayload = 1460 - decoder.DatagramHeaderSize

// Publisher sends telegrams as fragmented datagrams to one host.
type Publisher struct {
	conn       *net.UDPConn
	maxPayload int
	nextID     uint32
}

// NewPublisher dials addr (host:port).
func NewPublisher(addr string, maxPayload int) (*Publisher, error) {
	raddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.DialUDP("udp4", nil, raddr)
	if err != nil {
		return nil, core.TransportError("dial "+addr, err)
	}
	if maxPayload <= 0 {
		maxPayload = DefaultMaxPayload
	}
	return &Publisher{conn: conn, maxPayload: maxPayload, nextID: 1}, nil
}

// Send fragments telegram under a fresh identification and sends every
// fragment.
func (p *Publisher) Send(telegram []byte) error {
	id := p.nextID
	p.nextID++
	for _, d := range decoder.Fragment(telegram, id, p.maxPayload) {
		if _, err := p.conn.Write(d); err != nil {
			return core.TransportError("publish", err)
		}
	}
	return nil
}

// Close releases the socket.
func (p *Publisher) Close() error { return p.conn.Close() }

// Stream publishes a synthetic scan every interval to the host configured
// for channel by the last ChangeCommSettings call. Nothing is sent while the
// channel is unconfigured or disabled.
func (d *Device) Stream(ctx context.Context, channel uint8, interval time.Duration, maxPayload int) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pub *Publisher
	var target netip.AddrPort
	defer func() {
		if pub != nil {
			pub.Close()
		}
	}()

	for scan := uint32(1); ; {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		s, ok := d.CommSettings(channel)
		if !ok || !s.Enabled {
			continue
		}
		dst := netip.AddrPortFrom(s.HostIP, s.HostUDPPort)
		if pub == nil || dst != target {
			if pub != nil {
				pub.Close()
			}
			var err error
			if pub, err = NewPublisher(dst.String(), maxPayload); err != nil {
				return err
			}
			target = dst
			d.logger.Info("publishing scans", "target", dst.String(), "features", s.Features.String())
		}

		if err := pub.Send(SyntheticFrame(s, scan).Encode()); err != nil {
			d.logger.Debug("publish failed", "error", err)
		}
		scan++
	}
}

// SyntheticFrame builds scan number n of a slowly breathing circular
// contour covering the configured sector.
func SyntheticFrame(s core.CommSettings, n uint32) Frame {
	beams := SimBeams
	if span := s.EndAngle - s.StartAngle; span > 0 {
		beams = min(int(math.Ceil(span/SimResolution)), SimBeams)
	}
	distances := make([]uint16, beams)
	base := 3000 + 500*math.Sin(float64(n)/10)
	for i := range distances {
		distances[i] = uint16(base + 200*math.Sin(float64(i)/20))
	}
	return Frame{
		SerialNumber:   SimSerial,
		Channel:        s.Channel,
		SequenceNumber: n,
		ScanNumber:     n,
		Features:       s.Features,
		StartAngle:     s.StartAngle,
		Resolution:     SimResolution,
		ScanTime:       40,
		Distances:      distances,
		RunMode:        true,
		MonitoringCase: 1,
	}
}
