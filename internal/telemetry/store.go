package telemetry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/roomwatch-core/internal/infrastructure/database"
)

// Store persists telemetry records in SQLite.
type Store struct {
	db  database.Querier
	now func() time.Time
}

// NewStore creates a store using the wall clock.
func NewStore(db database.Querier) *Store {
	return &Store{db: db, now: time.Now}
}

// WithClock returns a copy of the store using now for timestamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	return &Store{db: s.db, now: now}
}

// WithTx returns a copy of the store bound to tx.
func (s *Store) WithTx(tx *sql.Tx) *Store {
	return &Store{db: tx, now: s.now}
}

// Append writes rec and fills in its ID and Timestamp.
//
// The timestamp is the server clock, or one nanosecond past the newest
// stored timestamp for the device if the clock has not moved beyond it.
// Callers that need the append to be atomic with other writes must use a
// store bound to their transaction.
func (s *Store) Append(ctx context.Context, rec *Record) error {
	if rec.DeviceID == "" || rec.MetricKind == "" {
		return fmt.Errorf("%w: device id and metric kind are required", ErrInvalidRecord)
	}

	var latest sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		"SELECT MAX(ts) FROM telemetry WHERE device_id = ?", rec.DeviceID,
	).Scan(&latest)
	if err != nil {
		return fmt.Errorf("reading latest timestamp: %w", err)
	}

	ts := s.now().UnixNano()
	if latest.Valid && ts <= latest.Int64 {
		ts = latest.Int64 + 1
	}

	var payload sql.NullString
	if rec.Payload != nil {
		b, err := json.Marshal(rec.Payload)
		if err != nil {
			return fmt.Errorf("encoding payload: %w", err)
		}
		payload = sql.NullString{String: string(b), Valid: true}
	}

	var value sql.NullFloat64
	if rec.Value != nil {
		value = sql.NullFloat64{Float64: *rec.Value, Valid: true}
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO telemetry (device_id, ts, metric_kind, value, payload) VALUES (?, ?, ?, ?, ?)`,
		rec.DeviceID, ts, rec.MetricKind, value, payload,
	)
	if err != nil {
		return fmt.Errorf("inserting telemetry: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading telemetry id: %w", err)
	}

	rec.ID = id
	rec.Timestamp = time.Unix(0, ts).UTC()
	return nil
}

// Recent returns up to limit of the newest records for a device, newest
// first. limit is clamped with ClampLimit.
func (s *Store) Recent(ctx context.Context, deviceID string, limit int) ([]Record, error) {
	return s.query(ctx, `
		SELECT id, device_id, ts, metric_kind, value, payload FROM telemetry
		WHERE device_id = ?
		ORDER BY ts DESC, id DESC
		LIMIT ?`,
		deviceID, ClampLimit(limit),
	)
}

// Head returns the cursor of the newest record for a device, or the zero
// Cursor when the device has none.
func (s *Store) Head(ctx context.Context, deviceID string) (Cursor, error) {
	var c Cursor
	err := s.db.QueryRowContext(ctx, `
		SELECT ts, id FROM telemetry
		WHERE device_id = ?
		ORDER BY ts DESC, id DESC
		LIMIT 1`, deviceID,
	).Scan(&c.Timestamp, &c.Seq)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Cursor{}, nil
		}
		return Cursor{}, fmt.Errorf("reading telemetry head: %w", err)
	}
	return c, nil
}

// After returns up to max records for a device positioned strictly after
// cursor, oldest first.
func (s *Store) After(ctx context.Context, deviceID string, cursor Cursor, max int) ([]Record, error) {
	if max < 1 {
		max = 1
	}
	return s.query(ctx, `
		SELECT id, device_id, ts, metric_kind, value, payload FROM telemetry
		WHERE device_id = ? AND (ts > ? OR (ts = ? AND id > ?))
		ORDER BY ts ASC, id ASC
		LIMIT ?`,
		deviceID, cursor.Timestamp, cursor.Timestamp, cursor.Seq, max,
	)
}

// Count returns the number of records stored for a device.
func (s *Store) Count(ctx context.Context, deviceID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM telemetry WHERE device_id = ?", deviceID,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting telemetry: %w", err)
	}
	return n, nil
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying telemetry: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var (
			r       Record
			ts      int64
			value   sql.NullFloat64
			payload sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.DeviceID, &ts, &r.MetricKind, &value, &payload); err != nil {
			return nil, fmt.Errorf("scanning telemetry: %w", err)
		}
		r.Timestamp = time.Unix(0, ts).UTC()
		if value.Valid {
			v := value.Float64
			r.Value = &v
		}
		if payload.Valid {
			if err := json.Unmarshal([]byte(payload.String), &r.Payload); err != nil {
				return nil, fmt.Errorf("decoding payload of record %d: %w", r.ID, err)
			}
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating telemetry: %w", err)
	}
	return records, nil
}
