package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/ipv4"

	"firestige.xyz/safetyscanner/internal/core"
	"firestige.xyz/safetyscanner/internal/core/decoder"
	"firestige.xyz/safetyscanner/internal/metrics"
	"firestige.xyz/safetyscanner/internal/utils"
)

// UDP receive defaults.
const (
	DefaultBatchSize   = 16
	DefaultReadBuffer  = 4 * 1024 * 1024
	maxDatagramSize    = 65535
	runPollInterval    = 100 * time.Millisecond
	availablePollDelay = time.Millisecond
)

// UDPClient receives data datagrams on a bound socket. Run and the polling
// methods Receive and IsDataAvailable must not be used at the same time.
type UDPClient struct {
	logger       *slog.Logger
	batchSize    int
	readBuffer   int
	markerFilter bool

	conn *net.UDPConn
	pc   *ipv4.PacketConn
	msgs []ipv4.Message

	mu      sync.Mutex
	stash   []core.Buffer
	stopped atomic.Bool
}

// UDPOption configures a UDPClient.
type UDPOption func(*UDPClient)

// WithUDPLogger sets the logger.
func WithUDPLogger(l *slog.Logger) UDPOption {
	return func(c *UDPClient) { c.logger = l }
}

// WithBatchSize sets how many datagrams one system call may return.
func WithBatchSize(n int) UDPOption {
	return func(c *UDPClient) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithReadBuffer sets the socket receive buffer in bytes.
func WithReadBuffer(n int) UDPOption {
	return func(c *UDPClient) { c.readBuffer = n }
}

// WithMarkerFilter attaches a socket filter that drops datagrams without the
// data telegram marker before they reach user space.
func WithMarkerFilter(on bool) UDPOption {
	return func(c *UDPClient) { c.markerFilter = on }
}

// ListenUDP binds addr (host:port, port 0 picks a free one).
func ListenUDP(addr string, opts ...UDPOption) (*UDPClient, error) {
	c := &UDPClient{logger: slog.Default(), batchSize: DefaultBatchSize, readBuffer: DefaultReadBuffer}
	for _, opt := range opts {
		opt(c)
	}

	laddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: udp address %q: %w", core.ErrConfigInvalid, addr, err)
	}
	conn, err := net.ListenUDP("udp4", laddr)
	if err != nil {
		return nil, core.TransportError("listen "+addr, err)
	}
	c.conn = conn
	c.pc = ipv4.NewPacketConn(conn)
	c.logger = c.logger.With("component", "udp", "addr", conn.LocalAddr().String())

	if c.readBuffer > 0 {
		if err := conn.SetReadBuffer(c.readBuffer); err != nil {
			c.logger.Warn("failed to set receive buffer", "bytes", c.readBuffer, "error", err)
		}
	}
	if c.markerFilter {
		if err := c.attachFilter(); err != nil {
			c.logger.Warn("marker filter not attached", "error", err)
		}
	}

	c.msgs = make([]ipv4.Message, c.batchSize)
	for i := range c.msgs {
		c.msgs[i].Buffers = [][]byte{make([]byte, maxDatagramSize)}
	}
	c.logger.Info("udp listener started", "batch_size", c.batchSize)
	return c, nil
}

func (c *UDPClient) attachFilter() error {
	prog, err := utils.MarkerFilter(decoder.DatagramMarker)
	if err != nil {
		return err
	}
	return c.pc.SetBPF(prog)
}

// LocalAddr returns the bound address.
func (c *UDPClient) LocalAddr() netip.AddrPort {
	ap := c.conn.LocalAddr().(*net.UDPAddr).AddrPort()
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
}

// LocalPort returns the bound port.
func (c *UDPClient) LocalPort() uint16 { return c.LocalAddr().Port() }

// Run delivers every received datagram to onDatagram until ctx is done or
// Stop is called. It returns nil in both cases.
func (c *UDPClient) Run(ctx context.Context, onDatagram func(core.Buffer)) error {
	for d, ok := c.pop(); ok; d, ok = c.pop() {
		onDatagram(d)
	}
	for {
		if ctx.Err() != nil || c.stopped.Load() {
			return nil
		}
		batch, err := c.readBatch(time.Now().Add(runPollInterval))
		if err != nil {
			if isTimeout(err) {
				continue
			}
			if c.stopped.Load() {
				return nil
			}
			return core.TransportError("udp read", err)
		}
		for _, d := range batch {
			onDatagram(d)
		}
	}
}

// Receive returns the next datagram, waiting at most timeout. On timeout the
// socket stays bound so polling can continue.
func (c *UDPClient) Receive(ctx context.Context, timeout time.Duration) (core.Buffer, error) {
	if d, ok := c.pop(); ok {
		return d, nil
	}
	if c.stopped.Load() {
		return core.Buffer{}, core.ErrStopped
	}

	stop := context.AfterFunc(ctx, func() { c.pc.SetReadDeadline(aLongTimeAgo) })
	defer stop()

	batch, err := c.readBatch(time.Now().Add(timeout))
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return core.Buffer{}, ctx.Err()
		case isTimeout(err):
			return core.Buffer{}, &core.TimeoutError{Op: "udp receive", Timeout: timeout}
		case c.stopped.Load():
			return core.Buffer{}, core.ErrStopped
		default:
			return core.Buffer{}, core.TransportError("udp receive", err)
		}
	}
	c.push(batch[1:])
	return batch[0], nil
}

// IsDataAvailable reports whether a datagram can be received without
// blocking. A datagram read to answer the question is kept for Receive.
func (c *UDPClient) IsDataAvailable() bool {
	c.mu.Lock()
	n := len(c.stash)
	c.mu.Unlock()
	if n > 0 {
		return true
	}
	if c.stopped.Load() {
		return false
	}
	batch, err := c.readBatch(time.Now().Add(availablePollDelay))
	if err != nil {
		return false
	}
	c.push(batch)
	return true
}

// Stop closes the socket and ends Run.
func (c *UDPClient) Stop() error {
	if c.stopped.Swap(true) {
		return nil
	}
	c.logger.Info("udp listener stopped")
	return c.conn.Close()
}

func (c *UDPClient) readBatch(deadline time.Time) ([]core.Buffer, error) {
	if err := c.pc.SetReadDeadline(deadline); err != nil {
		return nil, err
	}
	n, err := c.pc.ReadBatch(c.msgs, 0)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, errors.New("empty batch")
	}
	out := make([]core.Buffer, n)
	for i := range n {
		size := c.msgs[i].N
		out[i] = core.NewBuffer(c.msgs[i].Buffers[0][:size])
		metrics.DatagramsReceivedTotal.Inc()
		metrics.DatagramBytesTotal.Add(float64(size))
	}
	return out, nil
}

func (c *UDPClient) pop() (core.Buffer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.stash) == 0 {
		return core.Buffer{}, false
	}
	d := c.stash[0]
	c.stash = c.stash[1:]
	return d, true
}

func (c *UDPClient) push(ds []core.Buffer) {
	if len(ds) == 0 {
		return
	}
	c.mu.Lock()
	c.stash = append(c.stash, ds...)
	c.mu.Unlock()
}
