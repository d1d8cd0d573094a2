package pipeline

import (
	"sync"
	"sync/atomic"
	"time"
)

// WarnLimitConfig bounds how often rejected datagrams are logged.
type WarnLimitConfig struct {
	MaxPerWindow int           // warnings per kind per window (0 = unlimited)
	Window       time.Duration // window size (default 10s)
}

// WarnLimiter counts events per kind in fixed windows. A device sending
// garbage at scan rate would otherwise flood the log with one warning per
// datagram.
type WarnLimiter struct {
	mu           sync.Mutex
	current      map[string]*atomic.Int64 // kind → events in current window
	windowStart  time.Time
	windowSize   time.Duration
	maxPerWindow int64

	suppressed atomic.Int64
}

// NewWarnLimiter creates a limiter. Returns nil if disabled (MaxPerWindow <= 0);
// a nil limiter allows everything.
func NewWarnLimiter(cfg WarnLimitConfig) *WarnLimiter {
	if cfg.MaxPerWindow <= 0 {
		return nil
	}
	if cfg.Window <= 0 {
		cfg.Window = 10 * time.Second
	}
	return &WarnLimiter{
		current:      make(map[string]*atomic.Int64),
		windowStart:  time.Now(),
		windowSize:   cfg.Window,
		maxPerWindow: int64(cfg.MaxPerWindow),
	}
}

// Allow reports whether an event of kind may be logged at now.
func (l *WarnLimiter) Allow(kind string, now time.Time) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	if now.Sub(l.windowStart) >= l.windowSize {
		l.current = make(map[string]*atomic.Int64)
		l.windowStart = now
	}
	counter, exists := l.current[kind]
	if !exists {
		counter = &atomic.Int64{}
		l.current[kind] = counter
	}
	l.mu.Unlock()

	if counter.Add(1) > l.maxPerWindow {
		l.suppressed.Add(1)
		return false
	}
	return true
}

// Suppressed returns the total number of events not allowed.
func (l *WarnLimiter) Suppressed() int64 {
	if l == nil {
		return 0
	}
	return l.suppressed.Load()
}
