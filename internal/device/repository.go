package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/roomwatch-core/internal/infrastructure/database"
)

// Repository defines the interface for device persistence operations.
type Repository interface {
	// GetByID retrieves a device by its unique identifier.
	// Returns ErrDeviceNotFound if the device does not exist.
	GetByID(ctx context.Context, id string) (*Device, error)

	List(ctx context.Context) ([]Device, error)
	ListByRoom(ctx context.Context, roomID int64) ([]Device, error)
	ListByOwner(ctx context.Context, ownerID string) ([]Device, error)

	// Create inserts a new device.
	// Returns ErrDeviceExists or ErrCredentialExists on a uniqueness clash.
	Create(ctx context.Context, device *Device) error

	// UpdateObservedState applies a device-reported state change.
	// Nil fields in state are left untouched.
	UpdateObservedState(ctx context.Context, id string, state ObservedState) error

	// SetActive enables or disables a device's credential.
	SetActive(ctx context.Context, id string, active bool) error

	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db database.Querier
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db database.Querier) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *SQLiteRepository) WithTx(tx *sql.Tx) *SQLiteRepository {
	return &SQLiteRepository{db: tx}
}

const selectDevice = `
	SELECT id, name, credential, owner_id, room_id, kind, pos_x, pos_y,
		is_active, is_on, value, created_at, updated_at
	FROM devices`

// GetByID retrieves a device by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	row := r.db.QueryRowContext(ctx, selectDevice+" WHERE id = ?", id)
	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return d, nil
}

// List retrieves all devices ordered by ID.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	return r.queryDevices(ctx, selectDevice+" ORDER BY id")
}

// ListByRoom retrieves all devices assigned to a room.
func (r *SQLiteRepository) ListByRoom(ctx context.Context, roomID int64) ([]Device, error) {
	return r.queryDevices(ctx, selectDevice+" WHERE room_id = ? ORDER BY id", roomID)
}

// ListByOwner retrieves all devices owned by an account.
func (r *SQLiteRepository) ListByOwner(ctx context.Context, ownerID string) ([]Device, error) {
	return r.queryDevices(ctx, selectDevice+" WHERE owner_id = ? ORDER BY id", ownerID)
}

// Create inserts a new device. CreatedAt and UpdatedAt are set here.
func (r *SQLiteRepository) Create(ctx context.Context, d *Device) error {
	now := time.Now().UTC().Truncate(time.Second)
	d.CreatedAt = now
	d.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO devices (id, name, credential, owner_id, room_id, kind, pos_x, pos_y,
			is_active, is_on, value, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Name, d.Credential, d.OwnerID, nullableInt(d.RoomID), string(d.Kind),
		nullableFloat(d.PosX), nullableFloat(d.PosY),
		boolToInt(d.IsActive), boolToInt(d.IsOn), nullableFloat(d.Value),
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		switch {
		case isUniqueConstraintError(err, "devices.credential"):
			return ErrCredentialExists
		case isUniqueConstraintError(err, "devices.id"):
			return ErrDeviceExists
		case isForeignKeyError(err):
			return ErrOwnerNotFound
		}
		return fmt.Errorf("inserting device: %w", err)
	}
	return nil
}

// UpdateObservedState writes is_on and/or value. An empty state is a no-op
// apart from the existence check.
func (r *SQLiteRepository) UpdateObservedState(ctx context.Context, id string, state ObservedState) error {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC().Format(time.RFC3339)}
	if state.IsOn != nil {
		sets = append(sets, "is_on = ?")
		args = append(args, boolToInt(*state.IsOn))
	}
	if state.Value != nil {
		sets = append(sets, "value = ?")
		args = append(args, *state.Value)
	}
	args = append(args, id)

	query := "UPDATE devices SET " + strings.Join(sets, ", ") + " WHERE id = ?" //nolint:gosec // column list is fixed, values are parameterised
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating device state: %w", err)
	}
	return requireAffected(result)
}

// SetActive enables or disables a device.
func (r *SQLiteRepository) SetActive(ctx context.Context, id string, active bool) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE devices SET is_active = ?, updated_at = ? WHERE id = ?",
		boolToInt(active), time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("updating device active flag: %w", err)
	}
	return requireAffected(result)
}

// Delete removes a device. Its telemetry is removed by cascade.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM devices WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}
	return requireAffected(result)
}

func (r *SQLiteRepository) queryDevices(ctx context.Context, query string, args ...any) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	devices := []Device{}
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return devices, nil
}

// rowScanner is implemented by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(scanner rowScanner) (*Device, error) {
	var d Device
	var roomID sql.NullInt64
	var posX, posY, value sql.NullFloat64
	var kind, createdAt, updatedAt string
	var isActive, isOn int

	err := scanner.Scan(
		&d.ID, &d.Name, &d.Credential, &d.OwnerID, &roomID, &kind, &posX, &posY,
		&isActive, &isOn, &value, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.Kind = Kind(kind)
	d.IsActive = isActive != 0
	d.IsOn = isOn != 0
	if roomID.Valid {
		d.RoomID = &roomID.Int64
	}
	if posX.Valid {
		d.PosX = &posX.Float64
	}
	if posY.Valid {
		d.PosY = &posY.Float64
	}
	if value.Valid {
		d.Value = &value.Float64
	}

	if d.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if d.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &d, nil
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

func nullableInt(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func nullableFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueConstraintError reports a SQLite unique violation on column
// (given as "table.column").
func isUniqueConstraintError(err error, column string) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") && strings.Contains(msg, column)
}

func isForeignKeyError(err error) bool {
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
