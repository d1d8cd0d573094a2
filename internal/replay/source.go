// Package replay feeds captured scanner traffic back through the telegram
// pipeline.
package replay

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/safetyscanner/internal/core"
)

// pcapng section header block type, read as the first four file bytes.
var ngMagic = []byte{0x0a, 0x0d, 0x0d, 0x0a}

// Config selects a capture file and the datagrams to replay from it.
type Config struct {
	Path string
	// Port keeps only UDP datagrams sent to this port. Zero keeps all.
	Port uint16
	// Speed replays with the capture timing scaled by this factor. Zero
	// replays as fast as possible.
	Speed  float64
	Logger *slog.Logger
}

type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// FileSource reads UDP payloads from a pcap or pcapng file.
type FileSource struct {
	cfg    Config
	logger *slog.Logger

	file   *os.File
	reader packetReader
}

// NewSource validates cfg. The file is opened by Start.
func NewSource(cfg Config) (*FileSource, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("%w: replay file path is required", core.ErrConfigInvalid)
	}
	if cfg.Speed < 0 {
		return nil, fmt.Errorf("%w: replay speed must not be negative", core.ErrConfigInvalid)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSource{cfg: cfg, logger: logger.With("component", "replay")}, nil
}

// Start opens the capture file and detects its format.
func (fs *FileSource) Start() error {
	f, err := os.Open(fs.cfg.Path)
	if err != nil {
		return fmt.Errorf("failed to open capture file %s: %w", fs.cfg.Path, err)
	}
	br := bufio.NewReader(f)
	magic, err := br.Peek(4)
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to read capture file %s: %w", fs.cfg.Path, err)
	}

	var r packetReader
	if bytes.Equal(magic, ngMagic) {
		r, err = pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
	} else {
		r, err = pcapgo.NewReader(br)
	}
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to parse capture file %s: %w", fs.cfg.Path, err)
	}
	fs.file, fs.reader = f, r
	fs.logger.Info("capture opened", "path", fs.cfg.Path, "link_type", r.LinkType().String())
	return nil
}

// ReadPacket returns the next raw packet, io.EOF at the end of the file.
func (fs *FileSource) ReadPacket() ([]byte, gopacket.CaptureInfo, error) {
	if fs.reader == nil {
		return nil, gopacket.CaptureInfo{}, fmt.Errorf("file source not started")
	}
	data, ci, err := fs.reader.ReadPacketData()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, gopacket.CaptureInfo{}, io.EOF
		}
		return nil, gopacket.CaptureInfo{}, fmt.Errorf("failed to read packet: %w", err)
	}
	return data, ci, nil
}

// LinkType is the link layer of the open capture.
func (fs *FileSource) LinkType() layers.LinkType {
	if fs.reader == nil {
		return layers.LinkTypeEthernet
	}
	return fs.reader.LinkType()
}

// Stop closes the capture file.
func (fs *FileSource) Stop() error {
	if fs.file == nil {
		return nil
	}
	err := fs.file.Close()
	fs.file, fs.reader = nil, nil
	return err
}

// Run replays every matching UDP payload to onDatagram and returns nil at
// the end of the file or when ctx is done. Packets that are not UDP, and
// IP fragments, are skipped.
func (fs *FileSource) Run(ctx context.Context, onDatagram func(core.Buffer)) error {
	if fs.reader == nil {
		if err := fs.Start(); err != nil {
			return err
		}
	}
	defer fs.Stop()

	var (
		eth     layers.Ethernet
		loop    layers.Loopback
		ip4     layers.IPv4
		ip6     layers.IPv6
		udp     layers.UDP
		payload gopacket.Payload
	)
	first := layers.LayerTypeEthernet
	switch fs.LinkType() {
	case layers.LinkTypeNull, layers.LinkTypeLoop:
		first = layers.LayerTypeLoopback
	case layers.LinkTypeRaw, layers.LinkTypeIPv4:
		first = layers.LayerTypeIPv4
	}
	parser := gopacket.NewDecodingLayerParser(first, &eth, &loop, &ip4, &ip6, &udp, &payload)
	parser.IgnoreUnsupported = true
	decoded := make([]gopacket.LayerType, 0, 6)

	var packets, replayed int
	var prev time.Time
	for {
		if ctx.Err() != nil {
			break
		}
		data, ci, err := fs.ReadPacket()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		packets++

		if err := parser.DecodeLayers(data, &decoded); err != nil {
			fs.logger.Debug("skipping undecodable packet", "packet", packets, "error", err)
			continue
		}
		if !hasLayer(decoded, layers.LayerTypeUDP) {
			continue
		}
		if fs.cfg.Port != 0 && uint16(udp.DstPort) != fs.cfg.Port {
			continue
		}

		if fs.cfg.Speed > 0 && !prev.IsZero() {
			if gap := ci.Timestamp.Sub(prev); gap > 0 {
				if !sleep(ctx, time.Duration(float64(gap)/fs.cfg.Speed)) {
					break
				}
			}
		}
		prev = ci.Timestamp

		onDatagram(core.NewBuffer(append([]byte(nil), udp.Payload...)))
		replayed++
	}
	fs.logger.Info("replay finished", "packets", packets, "datagrams", replayed)
	return nil
}

func hasLayer(decoded []gopacket.LayerType, t gopacket.LayerType) bool {
	for _, l := range decoded {
		if l == t {
			return true
		}
	}
	return false
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
