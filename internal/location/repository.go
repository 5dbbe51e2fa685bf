package location

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/roomwatch-core/internal/infrastructure/database"
)

// Repository defines the interface for room persistence operations.
type Repository interface {
	ListRooms(ctx context.Context) ([]Room, error)
	GetRoom(ctx context.Context, id int64) (*Room, error)
	CreateRoom(ctx context.Context, room *Room) error
	EnsureRoom(ctx context.Context, id int64) error

	GetStatus(ctx context.Context, roomID int64) (*RoomStatus, error)
	GetOrCreateStatus(ctx context.Context, roomID int64) (*RoomStatus, error)
	SetPeopleCount(ctx context.Context, roomID int64, count int) error
	SetTemperature(ctx context.Context, roomID int64, temperature *float64) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db  database.Querier
	now func() time.Time
}

// NewSQLiteRepository creates a new SQLite-backed room repository.
func NewSQLiteRepository(db database.Querier) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// WithTx returns a repository bound to tx.
func (r *SQLiteRepository) WithTx(tx *sql.Tx) *SQLiteRepository {
	return &SQLiteRepository{db: tx, now: r.now}
}

// ListRooms returns every room ordered by ID.
func (r *SQLiteRepository) ListRooms(ctx context.Context) ([]Room, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, description, created_at FROM rooms ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("querying rooms: %w", err)
	}
	defer rows.Close()

	rooms := []Room{}
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, *room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rooms: %w", err)
	}
	return rooms, nil
}

// GetRoom retrieves a room by ID.
func (r *SQLiteRepository) GetRoom(ctx context.Context, id int64) (*Room, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, name, description, created_at FROM rooms WHERE id = ?", id)
	room, err := scanRoom(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return room, nil
}

// CreateRoom inserts a new room.
func (r *SQLiteRepository) CreateRoom(ctx context.Context, room *Room) error {
	if err := ValidateRoom(room); err != nil {
		return err
	}
	room.Name = strings.TrimSpace(room.Name)
	room.CreatedAt = r.now().UTC().Truncate(time.Second)

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO rooms (id, name, description, created_at) VALUES (?, ?, ?, ?)",
		room.ID, room.Name, nullStr(room.Description), room.CreatedAt.Format(time.RFC3339))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: %d %q", ErrRoomExists, room.ID, room.Name)
		}
		return fmt.Errorf("inserting room %d: %w", room.ID, err)
	}
	return nil
}

// EnsureRoom creates the room with a placeholder name if it does not exist.
func (r *SQLiteRepository) EnsureRoom(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidRoomID, id)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO rooms (id, name, description, created_at) VALUES (?, ?, NULL, ?)
		ON CONFLICT(id) DO NOTHING`,
		id, DefaultRoomName(id), r.now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("ensuring room %d: %w", id, err)
	}
	return nil
}

// GetStatus returns the stored status of a room, or ErrRoomNotFound when
// none has been created yet.
func (r *SQLiteRepository) GetStatus(ctx context.Context, roomID int64) (*RoomStatus, error) {
	var (
		s         RoomStatus
		temp      sql.NullFloat64
		updatedAt string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT room_id, people_count, temperature, humidity, updated_at
		FROM room_status WHERE room_id = ?`, roomID,
	).Scan(&s.RoomID, &s.PeopleCount, &temp, &s.Humidity, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("querying room status: %w", err)
	}
	if temp.Valid {
		s.Temperature = &temp.Float64
	}
	if s.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &s, nil
}

// GetOrCreateStatus returns the room's status, creating a zeroed one if
// absent. The room itself must exist.
func (r *SQLiteRepository) GetOrCreateStatus(ctx context.Context, roomID int64) (*RoomStatus, error) {
	if err := r.ensureStatus(ctx, roomID); err != nil {
		return nil, err
	}
	return r.GetStatus(ctx, roomID)
}

// SetPeopleCount overwrites the stored headcount, creating the status row
// if needed.
func (r *SQLiteRepository) SetPeopleCount(ctx context.Context, roomID int64, count int) error {
	if err := r.ensureStatus(ctx, roomID); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		"UPDATE room_status SET people_count = ?, updated_at = ? WHERE room_id = ?",
		count, r.stamp(), roomID)
	if err != nil {
		return fmt.Errorf("updating people count: %w", err)
	}
	return nil
}

// SetTemperature overwrites the stored temperature. A nil temperature
// clears it.
func (r *SQLiteRepository) SetTemperature(ctx context.Context, roomID int64, temperature *float64) error {
	if err := r.ensureStatus(ctx, roomID); err != nil {
		return err
	}
	var temp sql.NullFloat64
	if temperature != nil {
		temp = sql.NullFloat64{Float64: *temperature, Valid: true}
	}
	_, err := r.db.ExecContext(ctx,
		"UPDATE room_status SET temperature = ?, updated_at = ? WHERE room_id = ?",
		temp, r.stamp(), roomID)
	if err != nil {
		return fmt.Errorf("updating temperature: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ensureStatus(ctx context.Context, roomID int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO room_status (room_id, people_count, temperature, humidity, updated_at)
		VALUES (?, 0, NULL, 0, ?)
		ON CONFLICT(room_id) DO NOTHING`,
		roomID, r.stamp())
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return ErrRoomNotFound
		}
		return fmt.Errorf("creating room status: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) stamp() string {
	return r.now().UTC().Format(time.RFC3339Nano)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoom(s rowScanner) (*Room, error) {
	var (
		room      Room
		desc      sql.NullString
		createdAt string
	)
	if err := s.Scan(&room.ID, &room.Name, &desc, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning room: %w", err)
	}
	if desc.Valid {
		room.Description = &desc.String
	}
	var err error
	if room.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &room, nil
}

// nullStr converts a *string to a sql.NullString for nullable columns.
func nullStr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// SeedRooms creates each room that does not exist yet. Existing rooms,
// including lazily created ones, are left untouched. It returns the number
// of rooms created.
func (r *SQLiteRepository) SeedRooms(ctx context.Context, rooms []Room) (int, error) {
	created := 0
	for i := range rooms {
		room := rooms[i]
		if _, err := r.GetRoom(ctx, room.ID); err == nil {
			continue
		} else if !errors.Is(err, ErrRoomNotFound) {
			return created, err
		}
		if err := r.CreateRoom(ctx, &room); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}
