package telemetry_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/roomwatch-core/internal/infrastructure/database"
	"github.com/nerrad567/roomwatch-core/internal/infrastructure/database/dbtest"
	"github.com/nerrad567/roomwatch-core/internal/telemetry"
)

func setup(t *testing.T) (*database.DB, *telemetry.Store) {
	t.Helper()
	db := dbtest.Open(t)
	dbtest.SeedUser(t, db, "usr-1", "a@example.com", "", "user")
	dbtest.SeedDevice(t, db, "d1", "usr-1", 0, "light", "cred-d1-xx")
	dbtest.SeedDevice(t, db, "d2", "usr-1", 0, "fan", "cred-d2-xx")
	return db, telemetry.NewStore(db)
}

func fptr(v float64) *float64 { return &v }

func TestAppend_AssignsIDAndTimestamp(t *testing.T) {
	ctx := context.Background()
	_, store := setup(t)
	fixed := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	store = store.WithClock(func() time.Time { return fixed })

	rec := &telemetry.Record{DeviceID: "d1", MetricKind: "lux", Value: fptr(120), Payload: map[string]any{"raw": "x"}}
	require.NoError(t, store.Append(ctx, rec))

	assert.NotZero(t, rec.ID)
	assert.True(t, rec.Timestamp.Equal(fixed))

	got, err := store.Recent(ctx, "d1", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "lux", got[0].MetricKind)
	assert.Equal(t, 120.0, *got[0].Value)
	assert.Equal(t, map[string]any{"raw": "x"}, got[0].Payload)
}

func TestAppend_RejectsIncompleteRecord(t *testing.T) {
	_, store := setup(t)
	err := store.Append(context.Background(), &telemetry.Record{DeviceID: "d1"})
	assert.ErrorIs(t, err, telemetry.ErrInvalidRecord)
}

func TestAppend_TimestampsStrictlyIncreaseWhenClockStalls(t *testing.T) {
	ctx := context.Background()
	_, store := setup(t)
	fixed := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	store = store.WithClock(func() time.Time { return fixed })

	var prev int64
	for i := 0; i < 5; i++ {
		rec := &telemetry.Record{DeviceID: "d1", MetricKind: "tick"}
		require.NoError(t, store.Append(ctx, rec))
		ts := rec.Timestamp.UnixNano()
		assert.Greater(t, ts, prev)
		prev = ts
	}
}

func TestAppend_ClockStepBackwards(t *testing.T) {
	ctx := context.Background()
	_, store := setup(t)
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	store = store.WithClock(func() time.Time { return now })

	first := &telemetry.Record{DeviceID: "d1", MetricKind: "tick"}
	require.NoError(t, store.Append(ctx, first))

	now = now.Add(-time.Hour)
	second := &telemetry.Record{DeviceID: "d1", MetricKind: "tick"}
	require.NoError(t, store.Append(ctx, second))

	assert.True(t, second.Timestamp.After(first.Timestamp))
}

func TestRecent_NewestFirstAndClamped(t *testing.T) {
	ctx := context.Background()
	_, store := setup(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Append(ctx, &telemetry.Record{DeviceID: "d1", MetricKind: "n", Value: fptr(float64(i))}))
	}
	require.NoError(t, store.Append(ctx, &telemetry.Record{DeviceID: "d2", MetricKind: "n"}))

	got, err := store.Recent(ctx, "d1", 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 4.0, *got[0].Value)
	assert.Equal(t, 2.0, *got[2].Value)

	got, err = store.Recent(ctx, "d1", 0)
	require.NoError(t, err)
	assert.Len(t, got, 1, "limit below range clamps to 1")

	got, err = store.Recent(ctx, "d1", 5000)
	require.NoError(t, err)
	assert.Len(t, got, 5)

	got, err = store.Recent(ctx, "unknown", 10)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestClampLimit(t *testing.T) {
	tests := []struct{ in, want int }{
		{-3, 1}, {0, 1}, {1, 1}, {300, 300}, {1000, 1000}, {1001, 1000},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, telemetry.ClampLimit(tt.in), "ClampLimit(%d)", tt.in)
	}
}

func TestHeadAndAfter(t *testing.T) {
	ctx := context.Background()
	_, store := setup(t)

	head, err := store.Head(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, telemetry.Cursor{}, head)

	var appended []telemetry.Record
	for i := 0; i < 4; i++ {
		rec := telemetry.Record{DeviceID: "d1", MetricKind: "n", Value: fptr(float64(i))}
		require.NoError(t, store.Append(ctx, &rec))
		appended = append(appended, rec)
	}

	head, err = store.Head(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, telemetry.Of(appended[3]), head)

	got, err := store.After(ctx, "d1", telemetry.Of(appended[1]), 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, appended[2].ID, got[0].ID)
	assert.Equal(t, appended[3].ID, got[1].ID)

	got, err = store.After(ctx, "d1", telemetry.Cursor{}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, appended[0].ID, got[0].ID)

	got, err = store.After(ctx, "d1", head, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAfter_TieBreaksOnSequence(t *testing.T) {
	ctx := context.Background()
	db, store := setup(t)

	// Rows written outside Append can share a timestamp.
	for i := 0; i < 3; i++ {
		_, err := db.ExecContext(ctx,
			"INSERT INTO telemetry (device_id, ts, metric_kind) VALUES ('d1', 1000, 'dup')")
		require.NoError(t, err)
	}

	first, err := store.After(ctx, "d1", telemetry.Cursor{}, 1)
	require.NoError(t, err)
	require.Len(t, first, 1)

	rest, err := store.After(ctx, "d1", telemetry.Of(first[0]), 10)
	require.NoError(t, err)
	require.Len(t, rest, 2)
	assert.Greater(t, rest[0].ID, first[0].ID)
	assert.Greater(t, rest[1].ID, rest[0].ID)
}

func TestCursorBefore(t *testing.T) {
	a := telemetry.Cursor{Timestamp: 10, Seq: 5}
	assert.True(t, a.Before(telemetry.Cursor{Timestamp: 11, Seq: 1}))
	assert.True(t, a.Before(telemetry.Cursor{Timestamp: 10, Seq: 6}))
	assert.False(t, a.Before(a))
	assert.False(t, a.Before(telemetry.Cursor{Timestamp: 9, Seq: 99}))
}

func TestAppend_ConcurrentWritersStayOrdered(t *testing.T) {
	ctx := context.Background()
	db, store := setup(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := db.InTx(ctx, func(tx *sql.Tx) error {
				return store.WithTx(tx).Append(ctx, &telemetry.Record{DeviceID: "d1", MetricKind: "n"})
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := store.After(ctx, "d1", telemetry.Cursor{}, 100)
	require.NoError(t, err)
	require.Len(t, got, 10)
	for i := 1; i < len(got); i++ {
		assert.True(t, got[i].Timestamp.After(got[i-1].Timestamp), "record %d not after %d", i, i-1)
		assert.Greater(t, got[i].ID, got[i-1].ID)
	}
}
