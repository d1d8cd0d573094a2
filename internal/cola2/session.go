package cola2

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"firestige.xyz/safetyscanner/internal/core"
	"firestige.xyz/safetyscanner/internal/metrics"
)

// StreamClient is the byte transport a session runs on.
type StreamClient interface {
	Connect(ctx context.Context, timeout time.Duration) error
	Disconnect() error
	Send(ctx context.Context, data []byte) error
	Receive(ctx context.Context, timeout time.Duration) (core.Buffer, error)
	IsConnected() bool
}

// State is the session lifecycle state.
type State int

const (
	StateClosed State = iota
	StateOpen
)

func (s State) String() string {
	if s == StateOpen {
		return "open"
	}
	return "closed"
}

// Default timeouts.
const (
	DefaultConnectTimeout = 5 * time.Second
	DefaultCommandTimeout = 2 * time.Second
)

// Session runs COLA2 commands over one stream client. Commands are executed
// one at a time: callers must not invoke Execute, Open or Close concurrently.
//
// Request ids increase for the lifetime of the Session value and are not
// reset when the session is closed and reopened.
type Session struct {
	client         StreamClient
	logger         *slog.Logger
	connectTimeout time.Duration
	openTimeout    time.Duration
	heartbeat      uint8
	clientID       uint32

	state     State
	sessionID uint32
	requestID uint16
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithConnectTimeout bounds the TCP connect.
func WithConnectTimeout(d time.Duration) Option {
	return func(s *Session) { s.connectTimeout = d }
}

// WithOpenTimeout bounds the create and close session exchanges.
func WithOpenTimeout(d time.Duration) Option {
	return func(s *Session) { s.openTimeout = d }
}

// WithHeartbeat sets the session timeout, in seconds, the device enforces.
func WithHeartbeat(seconds uint8) Option {
	return func(s *Session) { s.heartbeat = seconds }
}

// WithClientID sets the client id sent when creating a session.
func WithClientID(id uint32) Option {
	return func(s *Session) { s.clientID = id }
}

// NewSession creates a closed session.
func NewSession(client StreamClient, opts ...Option) *Session {
	s := &Session{
		client:         client,
		logger:         slog.Default(),
		connectTimeout: DefaultConnectTimeout,
		openTimeout:    DefaultCommandTimeout,
		heartbeat:      DefaultHeartbeatTimeout,
		clientID:       DefaultClientID,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "cola2")
	return s
}

// State returns the current state.
func (s *Session) State() State { return s.state }

// SessionID returns the id assigned by the device, if a session is open.
func (s *Session) SessionID() (uint32, bool) { return s.sessionID, s.state == StateOpen }

// Open connects if needed and creates a session. It is a no-op on an open
// session whose transport is still connected.
func (s *Session) Open(ctx context.Context) error {
	if s.state == StateOpen && s.client.IsConnected() {
		return nil
	}
	s.setClosed()

	if !s.client.IsConnected() {
		if err := s.client.Connect(ctx, s.connectTimeout); err != nil {
			return err
		}
	}

	var id uint32
	if err := s.exec(ctx, NewCreateSession(s.heartbeat, s.clientID, &id), s.openTimeout); err != nil {
		s.client.Disconnect()
		return fmt.Errorf("create session: %w", err)
	}

	s.sessionID = id
	s.state = StateOpen
	metrics.SessionState.Set(metrics.SessionStateOpen)
	s.logger.Info("session opened", "session_id", id)
	return nil
}

// Execute runs cmd, opening the session first if necessary. timeout bounds
// the wait for the complete reply.
func (s *Session) Execute(ctx context.Context, cmd Command, timeout time.Duration) error {
	if s.state != StateOpen || !s.client.IsConnected() {
		if err := s.Open(ctx); err != nil {
			return err
		}
	}
	return s.exec(ctx, cmd, timeout)
}

// Close ends the session and disconnects. The close exchange is best effort:
// its failure is logged and the session is closed anyway.
func (s *Session) Close(ctx context.Context) error {
	if !s.client.IsConnected() {
		s.setClosed()
		return nil
	}
	if s.state == StateOpen {
		if err := s.exec(ctx, NewCloseSession(), s.openTimeout); err != nil {
			s.logger.Warn("close session failed", "session_id", s.sessionID, "error", err)
		}
	}
	id := s.sessionID
	s.setClosed()
	if err := s.client.Disconnect(); err != nil {
		return err
	}
	s.logger.Info("session closed", "session_id", id)
	return nil
}

func (s *Session) setClosed() {
	s.state = StateClosed
	s.sessionID = 0
	metrics.SessionState.Set(metrics.SessionStateClosed)
}

// drop abandons the session after a transport level failure.
func (s *Session) drop(err error) {
	s.logger.Warn("dropping session", "session_id", s.sessionID, "error", err)
	s.setClosed()
	if s.client.IsConnected() {
		s.client.Disconnect()
	}
}

func (s *Session) exec(ctx context.Context, cmd Command, timeout time.Duration) (err error) {
	start := time.Now()
	defer func() {
		metrics.CommandsTotal.WithLabelValues(cmd.Name(), resultLabel(err)).Inc()
		metrics.CommandLatencySeconds.WithLabelValues(cmd.Name()).Observe(time.Since(start).Seconds())
	}()

	var sessionID uint32
	if s.state == StateOpen {
		sessionID = s.sessionID
	} else if !cmd.CanExecuteWithoutSessionID() {
		return fmt.Errorf("%s: %w", cmd.Name(), core.ErrNotConnected)
	}

	s.requestID++
	requestID := s.requestID
	s.logger.Debug("executing command", "command", cmd.Name(), "index", cmd.Index(),
		"session_id", sessionID, "request_id", requestID)

	if err := s.client.Send(ctx, EncodeRequest(cmd, sessionID, requestID)); err != nil {
		s.drop(err)
		return err
	}

	buf, err := s.receive(ctx, timeout)
	if err != nil {
		s.drop(err)
		return err
	}

	reply, err := DecodeReply(buf)
	if err != nil {
		s.drop(err)
		return err
	}
	if reply.RequestID != requestID {
		err := &core.ProtocolError{Op: cmd.Name(),
			Reason: fmt.Sprintf("reply to request %d, want %d", reply.RequestID, requestID)}
		s.drop(err)
		return err
	}
	if s.state == StateOpen && reply.SessionID != sessionID {
		err := &core.ProtocolError{Op: cmd.Name(),
			Reason: fmt.Sprintf("reply for session %d, want %d", reply.SessionID, sessionID)}
		s.drop(err)
		return err
	}
	if reply.Failed() {
		return &core.ProtocolError{Op: cmd.Name(), Code: reply.ErrorCode, Reason: "rejected by device"}
	}
	return cmd.DecodeReply(reply)
}

// receive reads until one reply telegram is complete or timeout elapses.
func (s *Session) receive(ctx context.Context, timeout time.Duration) (core.Buffer, error) {
	deadline := time.Now().Add(timeout)
	m := NewStreamMerger()
	for !m.IsComplete() {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return core.Buffer{}, &core.TimeoutError{Op: "receive reply", Timeout: timeout}
		}
		chunk, err := s.client.Receive(ctx, remaining)
		if err != nil {
			if errors.Is(err, core.ErrTimeout) {
				return core.Buffer{}, &core.TimeoutError{Op: "receive reply", Timeout: timeout}
			}
			return core.Buffer{}, err
		}
		m.Add(chunk)
	}
	return m.Deploy()
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return metrics.ResultOK
	case errors.Is(err, core.ErrTimeout):
		return metrics.ResultTimeout
	case errors.Is(err, core.ErrProtocol):
		return metrics.ResultRejected
	default:
		return metrics.ResultError
	}
}
