package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/nerrad567/roomwatch-core/internal/device"
	"github.com/nerrad567/roomwatch-core/internal/infrastructure/database"
	"github.com/nerrad567/roomwatch-core/internal/location"
	"github.com/nerrad567/roomwatch-core/internal/telemetry"
)

// Logger defines the logging interface used by the Gateway.
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

// CacheRefresher reloads a device into a read cache after its state changed.
type CacheRefresher interface {
	RefreshDevice(ctx context.Context, id string) error
}

// Mirror receives committed records for secondary storage. It must not
// block and its failures are its own concern.
type Mirror interface {
	WriteTelemetry(rec telemetry.Record)
}

// Deps holds the stores the Gateway writes through.
type Deps struct {
	DB        *database.DB
	Devices   *device.SQLiteRepository
	Telemetry *telemetry.Store
	Rooms     *location.SQLiteRepository
	Cache     CacheRefresher // optional
	Mirror    Mirror         // optional
	Logger    Logger         // optional
}

// Gateway is the single entry point for device telemetry.
type Gateway struct {
	db        *database.DB
	devices   *device.SQLiteRepository
	telemetry *telemetry.Store
	rooms     *location.SQLiteRepository
	cache     CacheRefresher
	mirror    Mirror
	logger    Logger
	rules     map[string]rule
}

// NewGateway creates a gateway over deps.
func NewGateway(deps Deps) *Gateway {
	g := &Gateway{
		db:        deps.DB,
		devices:   deps.Devices,
		telemetry: deps.Telemetry,
		rooms:     deps.Rooms,
		cache:     deps.Cache,
		mirror:    deps.Mirror,
		logger:    deps.Logger,
		rules:     defaultRules(),
	}
	if g.logger == nil {
		g.logger = noopLogger{}
	}
	return g
}

// Ingest authenticates and stores one submission and applies its
// reconciliation rule. It returns the stored record.
func (g *Gateway) Ingest(ctx context.Context, sub Submission) (*telemetry.Record, error) {
	var (
		rec     telemetry.Record
		changed bool
	)

	err := g.db.InTx(ctx, func(tx *sql.Tx) error {
		scope := txScope{
			devices:   g.devices.WithTx(tx),
			telemetry: g.telemetry.WithTx(tx),
			rooms:     g.rooms.WithTx(tx),
		}

		dev, err := scope.devices.GetByID(ctx, sub.DeviceID)
		if err != nil {
			if errors.Is(err, device.ErrDeviceNotFound) {
				return ErrUnauthorized
			}
			return err
		}
		if !dev.Accepts(sub.Credential) {
			return ErrUnauthorized
		}

		kind := strings.TrimSpace(sub.MetricKind)
		if kind == "" {
			return ErrMissingMetricKind
		}

		rec = telemetry.Record{
			DeviceID:   dev.ID,
			MetricKind: kind,
			Value:      numericValue(sub.Value),
			Payload:    sub.Payload,
		}
		if err := scope.telemetry.Append(ctx, &rec); err != nil {
			return err
		}

		if dev.RoomID != nil {
			if err := scope.rooms.EnsureRoom(ctx, *dev.RoomID); err != nil {
				return err
			}
			if _, err := scope.rooms.GetOrCreateStatus(ctx, *dev.RoomID); err != nil {
				return err
			}
		}

		apply, known := g.rules[kind]
		if !known {
			return nil
		}
		changed, err = apply(ctx, scope, dev, sub)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			g.logger.Warn("telemetry rejected", "device_id", sub.DeviceID)
		}
		return nil, err
	}

	if changed && g.cache != nil {
		if err := g.cache.RefreshDevice(ctx, rec.DeviceID); err != nil {
			g.logger.Warn("device cache refresh failed", "device_id", rec.DeviceID, "error", err)
		}
	}
	if g.mirror != nil {
		g.mirror.WriteTelemetry(rec)
	}

	g.logger.Debug("telemetry ingested",
		"device_id", rec.DeviceID,
		"metric_kind", rec.MetricKind,
		"id", rec.ID,
	)
	return &rec, nil
}

// txScope is the set of stores bound to one ingestion transaction.
type txScope struct {
	devices   *device.SQLiteRepository
	telemetry *telemetry.Store
	rooms     *location.SQLiteRepository
}

// rule reconciles derived state for one metric kind. It reports whether
// the device row changed.
type rule func(ctx context.Context, s txScope, dev *device.Device, sub Submission) (bool, error)

func defaultRules() map[string]rule {
	return map[string]rule{
		telemetry.KindPeopleCount:     reconcilePeopleCount,
		telemetry.KindRoomTemperature: reconcileTemperature,
		telemetry.KindDeviceState:     reconcileDeviceState,
	}
}

func reconcilePeopleCount(ctx context.Context, s txScope, dev *device.Device, sub Submission) (bool, error) {
	if dev.RoomID == nil {
		return false, nil
	}
	if err := s.rooms.SetPeopleCount(ctx, *dev.RoomID, headcount(sub.Value)); err != nil {
		return false, fmt.Errorf("reconciling people count: %w", err)
	}
	return false, nil
}

func reconcileTemperature(ctx context.Context, s txScope, dev *device.Device, sub Submission) (bool, error) {
	if dev.RoomID == nil {
		return false, nil
	}
	if err := s.rooms.SetTemperature(ctx, *dev.RoomID, numericValue(sub.Value)); err != nil {
		return false, fmt.Errorf("reconciling temperature: %w", err)
	}
	return false, nil
}

func reconcileDeviceState(ctx context.Context, s txScope, dev *device.Device, sub Submission) (bool, error) {
	var state device.ObservedState
	if on, ok := payloadBool(sub.Payload, "is_on"); ok {
		state.IsOn = &on
	}
	if v, ok := payloadNumber(sub.Payload, "value"); ok {
		state.Value = &v
	}
	if state.IsEmpty() {
		return false, nil
	}
	if err := s.devices.UpdateObservedState(ctx, dev.ID, state); err != nil {
		return false, fmt.Errorf("reconciling device state: %w", err)
	}
	return true, nil
}
