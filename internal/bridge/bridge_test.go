package bridge_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/roomwatch-core/internal/bridge"
	"github.com/nerrad567/roomwatch-core/internal/device"
	"github.com/nerrad567/roomwatch-core/internal/infrastructure/database/dbtest"
	"github.com/nerrad567/roomwatch-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/roomwatch-core/internal/ingest"
	"github.com/nerrad567/roomwatch-core/internal/location"
	"github.com/nerrad567/roomwatch-core/internal/telemetry"
)

// fakeBroker records subscriptions and lets tests deliver messages.
type fakeBroker struct {
	mu       sync.Mutex
	handlers map[string]mqtt.MessageHandler
	subErr   error
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{handlers: map[string]mqtt.MessageHandler{}}
}

func (f *fakeBroker) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	if f.subErr != nil {
		return f.subErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[topic] = handler
	return nil
}

func (f *fakeBroker) Unsubscribe(topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.handlers, topic)
	return nil
}

func (f *fakeBroker) deliver(t *testing.T, filter, topic, payload string) {
	t.Helper()
	f.mu.Lock()
	h, ok := f.handlers[filter]
	f.mu.Unlock()
	require.True(t, ok, "no subscription for %s", filter)
	require.NoError(t, h(topic, []byte(payload)))
}

type fakeIngester struct {
	mu   sync.Mutex
	subs []ingest.Submission
	err  error
}

func (f *fakeIngester) Ingest(_ context.Context, sub ingest.Submission) (*telemetry.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.subs = append(f.subs, sub)
	return &telemetry.Record{ID: int64(len(f.subs)), DeviceID: sub.DeviceID, MetricKind: sub.MetricKind}, nil
}

var topics = mqtt.NewTopics("iot_room")

func TestDecode(t *testing.T) {
	b := bridge.New(newFakeBroker(), &fakeIngester{}, topics)

	tests := []struct {
		name       string
		topic      string
		payload    string
		wantErr    error
		wantDevice string
		wantCred   string
		wantKind   string
	}{
		{
			name:       "canonical fields",
			topic:      "iot_room/devices/temp-01/telemetry",
			payload:    `{"device_id":"temp-01","credential":"k1","metric_kind":"room_temperature","value":24.5}`,
			wantDevice: "temp-01", wantCred: "k1", wantKind: "room_temperature",
		},
		{
			name:       "legacy aliases and device from topic",
			topic:      "iot_room/devices/cam-01/telemetry",
			payload:    `{"api_key":"k2","metric_type":"people_count","value":3}`,
			wantDevice: "cam-01", wantCred: "k2", wantKind: "people_count",
		},
		{
			name:       "payload device id wins over topic",
			topic:      "iot_room/devices/alias/telemetry",
			payload:    `{"device_id":"real","credential":"k3","metric_kind":"device_state"}`,
			wantDevice: "real", wantCred: "k3", wantKind: "device_state",
		},
		{
			name:       "canonical names preferred over aliases",
			topic:      "iot_room/devices/x/telemetry",
			payload:    `{"credential":"new","api_key":"old","metric_kind":"a","metric_type":"b"}`,
			wantDevice: "x", wantCred: "new", wantKind: "a",
		},
		{
			name:    "not json",
			topic:   "iot_room/devices/x/telemetry",
			payload: `not json`,
			wantErr: bridge.ErrMalformedMessage,
		},
		{
			name:    "no device anywhere",
			topic:   "elsewhere/telemetry",
			payload: `{"credential":"k","metric_kind":"a"}`,
			wantErr: bridge.ErrNoDeviceID,
		},
		{
			name:    "no credential",
			topic:   "iot_room/devices/x/telemetry",
			payload: `{"metric_kind":"a"}`,
			wantErr: bridge.ErrNoCredential,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub, err := b.Decode(tt.topic, []byte(tt.payload))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDevice, sub.DeviceID)
			assert.Equal(t, tt.wantCred, sub.Credential)
			assert.Equal(t, tt.wantKind, sub.MetricKind)
		})
	}
}

func TestDecodePassesValueAndPayloadThrough(t *testing.T) {
	b := bridge.New(newFakeBroker(), &fakeIngester{}, topics)

	sub, err := b.Decode("iot_room/devices/L1/telemetry",
		[]byte(`{"credential":"k","metric_kind":"device_state","value":"abc","payload":{"is_on":true}}`))
	require.NoError(t, err)
	assert.JSONEq(t, `"abc"`, string(sub.Value))
	assert.Equal(t, map[string]any{"is_on": true}, sub.Payload)
}

func TestStartSubscribesAndForwards(t *testing.T) {
	broker := newFakeBroker()
	ing := &fakeIngester{}
	b := bridge.New(broker, ing, topics)

	require.NoError(t, b.Start(context.Background()))
	filter := topics.AllDeviceTelemetry()

	broker.deliver(t, filter, "iot_room/devices/temp-01/telemetry",
		`{"api_key":"k","metric_type":"room_temperature","value":22}`)
	// malformed messages are dropped without an error reaching the client
	broker.deliver(t, filter, "iot_room/devices/temp-01/telemetry", `{{{`)

	require.Len(t, ing.subs, 1)
	assert.Equal(t, "temp-01", ing.subs[0].DeviceID)

	b.Stop()
	broker.mu.Lock()
	assert.Empty(t, broker.handlers)
	broker.mu.Unlock()
	b.Stop() // idempotent
}

func TestStartSubscribeFailure(t *testing.T) {
	broker := newFakeBroker()
	broker.subErr = mqtt.ErrNotConnected

	err := bridge.New(broker, &fakeIngester{}, topics).Start(context.Background())
	assert.ErrorIs(t, err, mqtt.ErrNotConnected)
}

func TestHandleWrapsIngestError(t *testing.T) {
	b := bridge.New(newFakeBroker(), &fakeIngester{err: ingest.ErrUnauthorized}, topics)

	_, err := b.Handle(context.Background(), "iot_room/devices/x/telemetry", []byte(`{"credential":"k","metric_kind":"a"}`))
	assert.True(t, errors.Is(err, ingest.ErrUnauthorized))
}

func TestBridgeEndToEndThroughGateway(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t)
	dbtest.SeedUser(t, db, "usr-1", "owner@example.com", "", "user")
	dbtest.SeedRoom(t, db, 1, "Kinh doanh")
	dbtest.SeedDevice(t, db, "temp-01", "usr-1", 1, "ac", "temp-secret")

	rooms := location.NewSQLiteRepository(db)
	store := telemetry.NewStore(db)
	gateway := ingest.NewGateway(ingest.Deps{
		DB:        db,
		Devices:   device.NewSQLiteRepository(db),
		Telemetry: store,
		Rooms:     rooms,
	})
	b := bridge.New(newFakeBroker(), gateway, topics)

	rec, err := b.Handle(ctx, "iot_room/devices/temp-01/telemetry",
		[]byte(`{"api_key":"temp-secret","metric_type":"room_temperature","value":"26.5"}`))
	require.NoError(t, err)
	assert.Equal(t, "temp-01", rec.DeviceID)

	status, err := rooms.GetStatus(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, status.Temperature)
	assert.InDelta(t, 26.5, *status.Temperature, 1e-9)

	_, err = b.Handle(ctx, "iot_room/devices/temp-01/telemetry",
		[]byte(`{"api_key":"wrong","metric_type":"room_temperature","value":30}`))
	assert.ErrorIs(t, err, ingest.ErrUnauthorized)

	n, err := store.Count(ctx, "temp-01")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
