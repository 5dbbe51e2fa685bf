package fanout_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/roomwatch-core/internal/fanout"
	"github.com/nerrad567/roomwatch-core/internal/infrastructure/database/dbtest"
	"github.com/nerrad567/roomwatch-core/internal/telemetry"
)

func setup(t *testing.T) *telemetry.Store {
	t.Helper()
	db := dbtest.Open(t)
	dbtest.SeedUser(t, db, "usr-1", "a@example.com", "", "user")
	dbtest.SeedDevice(t, db, "temp-01", "usr-1", 0, "light", "cred-temp-01")
	dbtest.SeedDevice(t, db, "fan-01", "usr-1", 0, "fan", "cred-fan-01")
	return telemetry.NewStore(db)
}

func appendN(t *testing.T, store *telemetry.Store, deviceID string, n int) []telemetry.Record {
	t.Helper()
	out := make([]telemetry.Record, 0, n)
	for i := range n {
		v := float64(i)
		rec := &telemetry.Record{DeviceID: deviceID, MetricKind: telemetry.KindRoomTemperature, Value: &v}
		require.NoError(t, store.Append(context.Background(), rec))
		out = append(out, *rec)
	}
	return out
}

func ids(records []telemetry.Record) []int64 {
	out := make([]int64, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestNextPagesInOrder(t *testing.T) {
	ctx := context.Background()
	store := setup(t)
	poller := fanout.NewPoller(store, time.Millisecond, 2)

	cursor, err := store.Head(ctx, "temp-01")
	require.NoError(t, err)

	appended := appendN(t, store, "temp-01", 5)
	appendN(t, store, "fan-01", 3)

	var got []telemetry.Record
	for range 3 {
		var batch []telemetry.Record
		batch, cursor, err = poller.Next(ctx, "temp-01", cursor)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(batch), 2)
		got = append(got, batch...)
	}
	assert.Equal(t, ids(appended), ids(got))

	batch, same, err := poller.Next(ctx, "temp-01", cursor)
	require.NoError(t, err)
	assert.Empty(t, batch)
	assert.Equal(t, cursor, same)
}

func TestSubscribeSkipsHistoryAndStreamsNew(t *testing.T) {
	store := setup(t)
	appendN(t, store, "temp-01", 3) // history, never replayed

	poller := fanout.NewPoller(store, 5*time.Millisecond, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu  sync.Mutex
		got []telemetry.Record
	)
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		close(started)
		done <- poller.Subscribe(ctx, "temp-01", func(r telemetry.Record) error {
			mu.Lock()
			got = append(got, r)
			mu.Unlock()
			return nil
		})
	}()
	<-started
	// Give Subscribe time to read Head before new records land.
	time.Sleep(20 * time.Millisecond)

	fresh := appendN(t, store, "temp-01", 4)
	appendN(t, store, "fan-01", 2)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == len(fresh)
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Subscribe did not return after cancel")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, ids(fresh), ids(got))
	for i := 1; i < len(got); i++ {
		assert.True(t, telemetry.Of(got[i-1]).Before(telemetry.Of(got[i])))
	}
}

func TestSubscribeReturnsEmitError(t *testing.T) {
	store := setup(t)
	poller := fanout.NewPoller(store, time.Millisecond, 10)

	errClosed := errors.New("client went away")
	done := make(chan error, 1)
	go func() {
		done <- poller.Subscribe(context.Background(), "temp-01", func(telemetry.Record) error {
			return errClosed
		})
	}()

	time.Sleep(20 * time.Millisecond)
	appendN(t, store, "temp-01", 1)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, errClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("Subscribe did not return emit error")
	}
}

func TestSubscribeIndependentCursors(t *testing.T) {
	store := setup(t)
	poller := fanout.NewPoller(store, 2*time.Millisecond, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	counts := make([]int, 2)
	for i := range counts {
		go func() {
			_ = poller.Subscribe(ctx, "temp-01", func(telemetry.Record) error {
				mu.Lock()
				counts[i]++
				mu.Unlock()
				return nil
			})
		}()
	}
	time.Sleep(20 * time.Millisecond)
	appendN(t, store, "temp-01", 3)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return counts[0] == 3 && counts[1] == 3
	}, 2*time.Second, 5*time.Millisecond)
}

func TestNewPollerDefaults(t *testing.T) {
	p := fanout.NewPoller(nil, 0, 0)
	assert.Equal(t, fanout.DefaultInterval, p.Interval)
	assert.Equal(t, fanout.DefaultBatchSize, p.BatchSize)
}

func TestSubscribeFromHeadKeepsRecordsStoredBeforePolling(t *testing.T) {
	store := setup(t)
	appendN(t, store, "temp-01", 2)

	poller := fanout.NewPoller(store, 5*time.Millisecond, 10)
	head, err := poller.Head(context.Background(), "temp-01")
	require.NoError(t, err)

	// Stored after the head was taken but before polling starts.
	fresh := appendN(t, store, "temp-01", 3)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var got []telemetry.Record
	err = poller.SubscribeFrom(ctx, "temp-01", head, func(r telemetry.Record) error {
		got = append(got, r)
		if len(got) == len(fresh) {
			cancel()
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, ids(fresh), ids(got))
}
