// Package transport provides the TCP and UDP sockets the scanner driver
// talks over.
package transport

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"firestige.xyz/safetyscanner/internal/core"
)

// DefaultTCPReadSize is the size of one TCP read.
const DefaultTCPReadSize = 64 * 1024

// aLongTimeAgo is a deadline that interrupts blocked I/O immediately.
var aLongTimeAgo = time.Unix(1, 0)

// TCPClient is a stream client for the COLA2 command channel.
type TCPClient struct {
	addr     string
	logger   *slog.Logger
	readSize int

	mu   sync.Mutex
	conn net.Conn
	buf  []byte
}

// TCPOption configures a TCPClient.
type TCPOption func(*TCPClient)

// WithTCPLogger sets the logger.
func WithTCPLogger(l *slog.Logger) TCPOption {
	return func(c *TCPClient) { c.logger = l }
}

// WithReadSize sets the buffer size of a single read.
func WithReadSize(n int) TCPOption {
	return func(c *TCPClient) {
		if n > 0 {
			c.readSize = n
		}
	}
}

// NewTCPClient creates an unconnected client for addr (host:port).
func NewTCPClient(addr string, opts ...TCPOption) *TCPClient {
	c := &TCPClient{addr: addr, logger: slog.Default(), readSize: DefaultTCPReadSize}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "tcp", "addr", addr)
	return c
}

// Connect dials the device. It is a no-op when already connected.
func (c *TCPClient) Connect(ctx context.Context, timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}

	dctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	var d net.Dialer
	conn, err := d.DialContext(dctx, "tcp", c.addr)
	if err != nil {
		if ctx.Err() == nil && (errors.Is(err, context.DeadlineExceeded) || isTimeout(err)) {
			return &core.TimeoutError{Op: "connect " + c.addr, Timeout: timeout}
		}
		return core.TransportError("connect "+c.addr, err)
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		tcp.SetNoDelay(true)
	}
	c.conn = conn
	c.buf = make([]byte, c.readSize)
	c.logger.Debug("connected", "local", conn.LocalAddr().String())
	return nil
}

// Disconnect closes the connection. Closing a closed client is a no-op.
func (c *TCPClient) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.logger.Debug("disconnected")
	if err != nil {
		return core.TransportError("close", err)
	}
	return nil
}

// IsConnected reports whether a connection is established.
func (c *TCPClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

func (c *TCPClient) current() net.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// Send writes data completely. Any failure closes the connection.
func (c *TCPClient) Send(ctx context.Context, data []byte) error {
	conn := c.current()
	if conn == nil {
		return core.TransportError("send", core.ErrNotConnected)
	}
	stop := context.AfterFunc(ctx, func() { conn.SetWriteDeadline(aLongTimeAgo) })
	defer stop()

	if _, err := conn.Write(data); err != nil {
		c.Disconnect()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return core.TransportError("send", err)
	}
	return nil
}

// Receive returns the bytes of one read, which may hold any part of a
// telegram. When nothing arrives within timeout the connection is closed and
// a TimeoutError is returned.
func (c *TCPClient) Receive(ctx context.Context, timeout time.Duration) (core.Buffer, error) {
	c.mu.Lock()
	conn, buf := c.conn, c.buf
	c.mu.Unlock()
	if conn == nil {
		return core.Buffer{}, core.TransportError("receive", core.ErrNotConnected)
	}

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		c.Disconnect()
		return core.Buffer{}, core.TransportError("receive", err)
	}
	stop := context.AfterFunc(ctx, func() { conn.SetReadDeadline(aLongTimeAgo) })
	defer stop()

	n, err := conn.Read(buf)
	if err != nil {
		c.Disconnect()
		switch {
		case ctx.Err() != nil:
			return core.Buffer{}, ctx.Err()
		case isTimeout(err):
			return core.Buffer{}, &core.TimeoutError{Op: "receive", Timeout: timeout}
		default:
			return core.Buffer{}, core.TransportError("receive", err)
		}
	}
	return core.NewBuffer(buf[:n]), nil
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
