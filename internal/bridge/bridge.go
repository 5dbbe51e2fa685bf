package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nerrad567/roomwatch-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/roomwatch-core/internal/ingest"
	"github.com/nerrad567/roomwatch-core/internal/telemetry"
)

// telemetryQoS matches the at-least-once guarantee devices publish with.
const telemetryQoS = 1

// Logger is the logging interface used by the bridge.
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

// Subscriber is the MQTT side of the bridge. *mqtt.Client satisfies it.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Ingester accepts normalised submissions. *ingest.Gateway satisfies it.
type Ingester interface {
	Ingest(ctx context.Context, sub ingest.Submission) (*telemetry.Record, error)
}

// message is the device wire format, including legacy field aliases.
type message struct {
	DeviceID   string          `json:"device_id"`
	Credential string          `json:"credential"`
	APIKey     string          `json:"api_key"`
	MetricKind string          `json:"metric_kind"`
	MetricType string          `json:"metric_type"`
	Value      json.RawMessage `json:"value"`
	Payload    map[string]any  `json:"payload"`
}

// Bridge subscribes to device telemetry and forwards it to an Ingester.
type Bridge struct {
	sub    Subscriber
	ingest Ingester
	topics mqtt.Topics
	logger Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a bridge. Call Start to subscribe.
func New(sub Subscriber, ing Ingester, topics mqtt.Topics) *Bridge {
	return &Bridge{
		sub:    sub,
		ingest: ing,
		topics: topics,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger.
func (b *Bridge) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	b.logger = logger
}

// Start subscribes to all device telemetry. Ingestion runs under a context
// derived from ctx, cancelled by Stop.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	b.ctx, b.cancel = context.WithCancel(ctx)
	b.mu.Unlock()

	topic := b.topics.AllDeviceTelemetry()
	if err := b.sub.Subscribe(topic, telemetryQoS, b.onMessage); err != nil {
		b.Stop()
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	b.logger.Info("telemetry bridge started", "topic", topic)
	return nil
}

// Stop unsubscribes and cancels in-flight ingestion.
func (b *Bridge) Stop() {
	b.mu.Lock()
	cancel := b.cancel
	b.cancel = nil
	b.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if err := b.sub.Unsubscribe(b.topics.AllDeviceTelemetry()); err != nil {
		b.logger.Warn("unsubscribing telemetry bridge", "error", err)
	}
	b.logger.Info("telemetry bridge stopped")
}

func (b *Bridge) context() context.Context {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ctx == nil {
		return context.Background()
	}
	return b.ctx
}

func (b *Bridge) onMessage(topic string, payload []byte) error {
	rec, err := b.Handle(b.context(), topic, payload)
	if err != nil {
		b.logger.Warn("dropping telemetry message", "topic", topic, "error", err)
		return nil
	}
	b.logger.Debug("bridged telemetry", "device_id", rec.DeviceID, "metric_kind", rec.MetricKind, "id", rec.ID)
	return nil
}

// Handle decodes one MQTT message and ingests it.
func (b *Bridge) Handle(ctx context.Context, topic string, payload []byte) (*telemetry.Record, error) {
	sub, err := b.Decode(topic, payload)
	if err != nil {
		return nil, err
	}
	rec, err := b.ingest.Ingest(ctx, sub)
	if err != nil {
		return nil, fmt.Errorf("ingesting from %s: %w", sub.DeviceID, err)
	}
	return rec, nil
}

// Decode normalises an MQTT message into a Submission. The metric kind is
// not checked here; the gateway owns that rule.
func (b *Bridge) Decode(topic string, payload []byte) (ingest.Submission, error) {
	var msg message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return ingest.Submission{}, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}

	deviceID := msg.DeviceID
	if deviceID == "" {
		deviceID, _, _ = b.topics.ParseDeviceTopic(topic)
	}
	if deviceID == "" {
		return ingest.Submission{}, ErrNoDeviceID
	}

	credential := firstNonEmpty(msg.Credential, msg.APIKey)
	if credential == "" {
		return ingest.Submission{}, ErrNoCredential
	}

	return ingest.Submission{
		DeviceID:   deviceID,
		Credential: credential,
		MetricKind: firstNonEmpty(msg.MetricKind, msg.MetricType),
		Value:      msg.Value,
		Payload:    msg.Payload,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
