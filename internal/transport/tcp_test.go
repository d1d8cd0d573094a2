package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/safetyscanner/internal/core"
)

// echoServer accepts one connection and echoes everything back.
func echoServer(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		io.Copy(conn, conn)
	}()
	return ln
}

func TestTCPClientRoundTrip(t *testing.T) {
	ln := echoServer(t)
	c := NewTCPClient(ln.Addr().String())
	ctx := context.Background()

	require.NoError(t, c.Connect(ctx, time.Second))
	assert.True(t, c.IsConnected())
	// connecting again keeps the connection
	require.NoError(t, c.Connect(ctx, time.Second))

	require.NoError(t, c.Send(ctx, []byte("hello")))
	var got []byte
	for len(got) < 5 {
		buf, err := c.Receive(ctx, time.Second)
		require.NoError(t, err)
		got = append(got, buf.Bytes()...)
	}
	assert.Equal(t, "hello", string(got))

	require.NoError(t, c.Disconnect())
	assert.False(t, c.IsConnected())
	require.NoError(t, c.Disconnect())
}

func TestTCPClientReceiveTimeoutCloses(t *testing.T) {
	ln := echoServer(t)
	c := NewTCPClient(ln.Addr().String())
	ctx := context.Background()
	require.NoError(t, c.Connect(ctx, time.Second))

	_, err := c.Receive(ctx, 50*time.Millisecond)
	require.Error(t, err)
	var terr *core.TimeoutError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, 50*time.Millisecond, terr.Timeout)
	assert.False(t, c.IsConnected())
}

func TestTCPClientContextCancel(t *testing.T) {
	ln := echoServer(t)
	c := NewTCPClient(ln.Addr().String())
	require.NoError(t, c.Connect(context.Background(), time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)
	_, err := c.Receive(ctx, 5*time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTCPClientConnectRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	c := NewTCPClient(addr)
	err = c.Connect(context.Background(), time.Second)
	assert.ErrorIs(t, err, core.ErrTransport)
	assert.False(t, c.IsConnected())
}

func TestTCPClientNotConnected(t *testing.T) {
	c := NewTCPClient("127.0.0.1:1")
	ctx := context.Background()
	assert.ErrorIs(t, c.Send(ctx, []byte{1}), core.ErrNotConnected)
	_, err := c.Receive(ctx, time.Millisecond)
	assert.ErrorIs(t, err, core.ErrNotConnected)
}

func TestTCPClientPeerClose(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			conn.Close()
		}
	}()

	c := NewTCPClient(ln.Addr().String())
	require.NoError(t, c.Connect(context.Background(), time.Second))
	_, err = c.Receive(context.Background(), time.Second)
	assert.ErrorIs(t, err, core.ErrTransport)
	assert.False(t, c.IsConnected())
}
