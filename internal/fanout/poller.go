package fanout

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/roomwatch-core/internal/telemetry"
)

// Default poll settings.
const (
	DefaultInterval  = time.Second
	DefaultBatchSize = 200
)

// Source is the read side of the telemetry store.
type Source interface {
	Head(ctx context.Context, deviceID string) (telemetry.Cursor, error)
	After(ctx context.Context, deviceID string, cursor telemetry.Cursor, max int) ([]telemetry.Record, error)
}

// EmitFunc delivers one record to a subscriber. A non-nil error ends the
// subscription.
type EmitFunc func(telemetry.Record) error

// Poller polls a Source for new records.
type Poller struct {
	Source    Source
	Interval  time.Duration
	BatchSize int
}

// NewPoller creates a poller; zero interval or batch size use the defaults.
func NewPoller(src Source, interval time.Duration, batchSize int) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Poller{Source: src, Interval: interval, BatchSize: batchSize}
}

// Next performs one poll step: it returns up to BatchSize records after
// cursor, ascending, and the cursor to use for the following step. With
// no new records the cursor is returned unchanged.
func (p *Poller) Next(ctx context.Context, deviceID string, cursor telemetry.Cursor) ([]telemetry.Record, telemetry.Cursor, error) {
	records, err := p.Source.After(ctx, deviceID, cursor, p.BatchSize)
	if err != nil {
		return nil, cursor, fmt.Errorf("polling telemetry for %s: %w", deviceID, err)
	}
	if len(records) > 0 {
		cursor = telemetry.Of(records[len(records)-1])
	}
	return records, cursor, nil
}

// Head returns the cursor of the newest stored record for deviceID.
func (p *Poller) Head(ctx context.Context, deviceID string) (telemetry.Cursor, error) {
	cursor, err := p.Source.Head(ctx, deviceID)
	if err != nil {
		return cursor, fmt.Errorf("reading telemetry head for %s: %w", deviceID, err)
	}
	return cursor, nil
}

// Subscribe streams records for deviceID stored after the call, until ctx
// is cancelled, in which case it returns nil, or until emit or the store
// fails.
func (p *Poller) Subscribe(ctx context.Context, deviceID string, emit EmitFunc) error {
	cursor, err := p.Head(ctx, deviceID)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	return p.SubscribeFrom(ctx, deviceID, cursor, emit)
}

// SubscribeFrom is Subscribe starting after cursor. Callers that announce
// the stream before polling take the Head first so nothing stored in
// between is lost.
//
// A full batch is followed immediately by another poll; otherwise the
// loop sleeps Interval.
func (p *Poller) SubscribeFrom(ctx context.Context, deviceID string, cursor telemetry.Cursor, emit EmitFunc) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		records, next, err := p.Next(ctx, deviceID, cursor)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		cursor = next

		for _, rec := range records {
			if err := emit(rec); err != nil {
				return fmt.Errorf("emitting telemetry %d: %w", rec.ID, err)
			}
		}

		if len(records) >= p.BatchSize {
			timer.Reset(0)
		} else {
			timer.Reset(p.Interval)
		}
	}
}
