package command

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Publisher is a live broker connection.
// *mqtt.Client satisfies it.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
	Close() error
}

// Dialer opens a new broker connection.
type Dialer func() (Publisher, error)

// Backoff bounds reconnect attempts.
type Backoff struct {
	Initial     time.Duration
	Max         time.Duration
	MaxAttempts int
}

// Default backoff values, used for zero fields.
const (
	DefaultInitialDelay = time.Second
	DefaultMaxDelay     = 30 * time.Second
	DefaultMaxAttempts  = 3
)

func (b Backoff) withDefaults() Backoff {
	if b.Initial <= 0 {
		b.Initial = DefaultInitialDelay
	}
	if b.Max < b.Initial {
		b.Max = max(DefaultMaxDelay, b.Initial)
	}
	if b.MaxAttempts <= 0 {
		b.MaxAttempts = DefaultMaxAttempts
	}
	return b
}

// Delay returns the wait before the given retry (1-based): Initial doubled
// per retry and capped at Max.
func (b Backoff) Delay(retry int) time.Duration {
	d := b.Initial
	for i := 1; i < retry && d < b.Max; i++ {
		d *= 2
	}
	return min(d, b.Max)
}

// ConnectionManager owns the single shared broker connection.
//
// It is safe for concurrent use. Only one goroutine dials at a time; the
// others wait for it and share the result.
type ConnectionManager struct {
	dial    Dialer
	backoff Backoff
	sleep   func(ctx context.Context, d time.Duration) error
	logger  Logger

	mu   sync.Mutex
	conn Publisher
}

// NewConnectionManager creates a manager that dials lazily on first Acquire.
func NewConnectionManager(dial Dialer, backoff Backoff) *ConnectionManager {
	return &ConnectionManager{
		dial:    dial,
		backoff: backoff.withDefaults(),
		sleep:   sleepContext,
		logger:  noopLogger{},
	}
}

// NewConnectionManagerWith creates a manager around an already-connected
// publisher. dial is used only after that connection is released.
func NewConnectionManagerWith(conn Publisher, dial Dialer, backoff Backoff) *ConnectionManager {
	m := NewConnectionManager(dial, backoff)
	m.conn = conn
	return m
}

// SetLogger sets the logger for reconnect events.
func (m *ConnectionManager) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	m.logger = logger
}

// Backoff returns the effective backoff settings.
func (m *ConnectionManager) Backoff() Backoff {
	return m.backoff
}

// Acquire returns the shared connection, dialing a new one if there is
// none. It makes a single dial attempt; retry policy belongs to the caller.
func (m *ConnectionManager) Acquire() (Publisher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn != nil {
		return m.conn, nil
	}

	conn, err := m.dial()
	if err != nil {
		return nil, fmt.Errorf("dialing broker: %w", err)
	}
	m.conn = conn
	m.logger.Info("command bus connected")
	return conn, nil
}

// ReleaseOnError discards conn after a failed publish so the next Acquire
// redials. A conn that has already been replaced is left alone.
func (m *ConnectionManager) ReleaseOnError(conn Publisher, cause error) {
	m.mu.Lock()
	if m.conn != conn || conn == nil {
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.mu.Unlock()

	m.logger.Warn("command bus connection released", "error", cause)
	if err := conn.Close(); err != nil {
		m.logger.Warn("closing command bus connection", "error", err)
	}
}

// Wait sleeps for the backoff delay before the given retry, returning early
// with ctx's error if it is cancelled.
func (m *ConnectionManager) Wait(ctx context.Context, retry int) error {
	return m.sleep(ctx, m.backoff.Delay(retry))
}

// Close closes the current connection, if any.
func (m *ConnectionManager) Close() error {
	m.mu.Lock()
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
