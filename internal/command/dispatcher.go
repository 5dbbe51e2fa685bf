package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/roomwatch-core/internal/audit"
	"github.com/nerrad567/roomwatch-core/internal/infrastructure/mqtt"
)

// commandQoS is at-least-once; devices must tolerate duplicates.
const commandQoS = 1

// Logger is the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// AuditWriter records dispatched commands.
type AuditWriter interface {
	Create(ctx context.Context, log *audit.AuditLog) error
}

// Dispatcher publishes commands through a ConnectionManager.
type Dispatcher struct {
	conns  *ConnectionManager
	topics mqtt.Topics
	audit  AuditWriter
	logger Logger
	now    func() time.Time
}

// NewDispatcher creates a dispatcher. auditor may be nil.
func NewDispatcher(conns *ConnectionManager, topics mqtt.Topics, auditor AuditWriter) *Dispatcher {
	return &Dispatcher{
		conns:  conns,
		topics: topics,
		audit:  auditor,
		logger: noopLogger{},
		now:    time.Now,
	}
}

// SetLogger sets the logger.
func (d *Dispatcher) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	d.logger = logger
}

// WithClock replaces the clock used for issued_at.
func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	cp := *d
	cp.now = now
	return &cp
}

// Dispatch publishes cmd once to the device's command topic. It does not
// check that the device exists.
//
// A failed publish releases the connection and is retried after a backoff
// wait, up to the manager's attempt budget. ctx bounds only those waits;
// a publish already in flight runs to completion.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command) (*Receipt, error) {
	if cmd.DeviceID == "" || cmd.Kind == "" {
		return nil, ErrInvalidCommand
	}

	msg := message{
		CommandID: uuid.NewString(),
		DeviceID:  cmd.DeviceID,
		Kind:      cmd.Kind,
		Payload:   cmd.Payload,
		IssuedAt:  d.now().UTC(),
	}
	if msg.Payload == nil {
		msg.Payload = map[string]any{}
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encoding command: %w", err)
	}

	topic := d.topics.DeviceCommand(cmd.DeviceID)
	if err := d.publish(ctx, topic, body); err != nil {
		return nil, err
	}

	d.logger.Info("command dispatched",
		"command_id", msg.CommandID,
		"device_id", cmd.DeviceID,
		"command_kind", cmd.Kind,
	)
	d.record(ctx, cmd, msg.CommandID)

	return &Receipt{CommandID: msg.CommandID, Status: StatusQueued}, nil
}

func (d *Dispatcher) publish(ctx context.Context, topic string, body []byte) error {
	attempts := d.conns.Backoff().MaxAttempts

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := d.conns.Wait(ctx, attempt-1); err != nil {
				return fmt.Errorf("%w: %w", ErrBusUnavailable, errors.Join(lastErr, err))
			}
		}

		conn, err := d.conns.Acquire()
		if err != nil {
			lastErr = err
			d.logger.Warn("command bus acquire failed", "attempt", attempt, "error", err)
			continue
		}

		if err := conn.Publish(topic, body, commandQoS, false); err != nil {
			lastErr = err
			d.logger.Warn("command publish failed", "attempt", attempt, "topic", topic, "error", err)
			d.conns.ReleaseOnError(conn, err)
			continue
		}
		return nil
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrBusUnavailable, attempts, lastErr)
}

// record writes the audit entry. A failure is logged, not returned: the
// command has already left.
func (d *Dispatcher) record(ctx context.Context, cmd Command, commandID string) {
	if d.audit == nil {
		return
	}
	entry := &audit.AuditLog{
		Action:     audit.ActionCommand,
		EntityType: audit.EntityDevice,
		EntityID:   cmd.DeviceID,
		UserID:     cmd.IssuedBy,
		Source:     audit.SourceAPI,
		Details: map[string]any{
			"command_id":   commandID,
			"command_kind": cmd.Kind,
		},
	}
	if err := d.audit.Create(context.WithoutCancel(ctx), entry); err != nil {
		d.logger.Warn("recording command audit", "command_id", commandID, "error", err)
	}
}
