package device

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// RoomEnsurer creates a room row on first reference.
type RoomEnsurer interface {
	EnsureRoom(ctx context.Context, roomID int64) error
}

// Registry provides device lookup with an in-memory cache.
//
// The cache is populated on startup via RefreshCache and kept in sync by
// CreateDevice, DeleteDevice and RefreshDevice. Ingestion writes state
// through its own transaction and calls RefreshDevice after commit.
//
// All public methods are thread-safe.
type Registry struct {
	repo    Repository
	rooms   RoomEnsurer
	cache   map[string]*Device
	loaded  bool
	cacheMu sync.RWMutex
	logger  Logger
}

// NewRegistry creates a new device registry.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]*Device),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// SetRooms sets the room ensurer used by CreateDevice.
func (r *Registry) SetRooms(rooms RoomEnsurer) {
	r.rooms = rooms
}

// RefreshCache reloads all devices from the repository into the cache.
func (r *Registry) RefreshCache(ctx context.Context) error {
	devices, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.cache = make(map[string]*Device, len(devices))
	for i := range devices {
		r.cache[devices[i].ID] = devices[i].DeepCopy()
	}
	r.loaded = true

	r.logger.Info("device cache refreshed", "count", len(devices))
	return nil
}

// RefreshDevice reloads a single device from the repository. A device that
// no longer exists is evicted.
func (r *Registry) RefreshDevice(ctx context.Context, id string) error {
	d, err := r.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrDeviceNotFound) {
			r.evict(id)
			return nil
		}
		return err
	}

	r.cacheMu.Lock()
	r.cache[id] = d.DeepCopy()
	r.cacheMu.Unlock()
	return nil
}

// GetDevice retrieves a device by ID.
// The returned device is a deep copy; callers can safely modify it.
func (r *Registry) GetDevice(ctx context.Context, id string) (*Device, error) {
	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	r.cacheMu.RUnlock()
	if ok {
		return cached.DeepCopy(), nil
	}

	d, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	r.cache[id] = d.DeepCopy()
	r.cacheMu.Unlock()

	return d, nil
}

// ListDevices retrieves all devices ordered by ID.
func (r *Registry) ListDevices(ctx context.Context) ([]Device, error) {
	return r.filter(ctx, func(*Device) bool { return true }, r.repo.List)
}

// ListByRoom retrieves all devices assigned to roomID.
func (r *Registry) ListByRoom(ctx context.Context, roomID int64) ([]Device, error) {
	return r.filter(ctx,
		func(d *Device) bool { return d.InRoom(roomID) },
		func(ctx context.Context) ([]Device, error) { return r.repo.ListByRoom(ctx, roomID) },
	)
}

// ListByOwner retrieves all devices owned by ownerID.
func (r *Registry) ListByOwner(ctx context.Context, ownerID string) ([]Device, error) {
	return r.filter(ctx,
		func(d *Device) bool { return d.OwnerID == ownerID },
		func(ctx context.Context) ([]Device, error) { return r.repo.ListByOwner(ctx, ownerID) },
	)
}

// CreateDevice validates and persists a new device. A missing credential
// is generated. The room, if any, is created on first reference.
func (r *Registry) CreateDevice(ctx context.Context, d *Device) error {
	if d.Credential == "" {
		cred, err := GenerateCredential()
		if err != nil {
			return err
		}
		d.Credential = cred
	}
	if err := ValidateDevice(d); err != nil {
		return err
	}
	if d.RoomID != nil && r.rooms != nil {
		if err := r.rooms.EnsureRoom(ctx, *d.RoomID); err != nil {
			return fmt.Errorf("ensuring room %d: %w", *d.RoomID, err)
		}
	}

	if err := r.repo.Create(ctx, d); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.cache[d.ID] = d.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("device created", "device_id", d.ID, "kind", d.Kind, "owner_id", d.OwnerID)
	return nil
}

// DeleteDevice removes a device and evicts it from the cache.
func (r *Registry) DeleteDevice(ctx context.Context, id string) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}
	r.evict(id)
	r.logger.Info("device deleted", "device_id", id)
	return nil
}

// SetActive enables or disables a device credential.
func (r *Registry) SetActive(ctx context.Context, id string, active bool) error {
	if err := r.repo.SetActive(ctx, id, active); err != nil {
		return err
	}
	return r.RefreshDevice(ctx, id)
}

// GetStats returns device counts by kind and state.
func (r *Registry) GetStats() Stats {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	stats := Stats{
		Total:  len(r.cache),
		ByKind: make(map[Kind]int),
	}
	for _, d := range r.cache {
		stats.ByKind[d.Kind]++
		if d.IsOn {
			stats.On++
		}
		if !d.IsActive {
			stats.Inactive++
		}
	}
	return stats
}

// Stats holds summary counts for the cached devices.
type Stats struct {
	Total    int          `json:"total"`
	On       int          `json:"on"`
	Inactive int          `json:"inactive"`
	ByKind   map[Kind]int `json:"by_kind"`
}

func (r *Registry) evict(id string) {
	r.cacheMu.Lock()
	delete(r.cache, id)
	r.cacheMu.Unlock()
}

// filter serves from the cache once it has been loaded, otherwise from the
// repository.
func (r *Registry) filter(ctx context.Context, keep func(*Device) bool, fallback func(context.Context) ([]Device, error)) ([]Device, error) {
	r.cacheMu.RLock()
	if !r.loaded {
		r.cacheMu.RUnlock()
		return fallback(ctx)
	}
	devices := []Device{}
	for _, d := range r.cache {
		if keep(d) {
			devices = append(devices, *d.DeepCopy())
		}
	}
	r.cacheMu.RUnlock()

	sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })
	return devices, nil
}
