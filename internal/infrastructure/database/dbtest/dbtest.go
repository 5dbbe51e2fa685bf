// Package dbtest opens migrated SQLite databases for tests in other packages.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/roomwatch-core/internal/infrastructure/database"
	_ "github.com/nerrad567/roomwatch-core/migrations" // registers the embedded schema
)

// Open creates a database under t.TempDir with the full schema applied.
// It is closed automatically when the test finishes.
func Open(t testing.TB) *database.DB {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "roomwatch-test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	return db
}

// SeedUser inserts a user row directly. Devices, attendance and presence
// rows all reference users, so most tests need one.
func SeedUser(t testing.TB, db *database.DB, id, email, position, role string) {
	t.Helper()

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := db.ExecContext(context.Background(),
		`INSERT INTO users (id, email, full_name, position, password_hash, role, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 'x', ?, 1, ?, ?)`,
		id, email, id, position, role, now, now,
	)
	if err != nil {
		t.Fatalf("seeding user %s: %v", id, err)
	}
}

// SeedRoom inserts a room row.
func SeedRoom(t testing.TB, db *database.DB, id int64, name string) {
	t.Helper()

	_, err := db.ExecContext(context.Background(),
		`INSERT INTO rooms (id, name, description, created_at) VALUES (?, ?, NULL, ?)`,
		id, name, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		t.Fatalf("seeding room %d: %v", id, err)
	}
}

// SeedDevice inserts an active device owned by ownerID. roomID may be 0 for
// an unassigned device.
func SeedDevice(t testing.TB, db *database.DB, id, ownerID string, roomID int64, kind, credential string) {
	t.Helper()

	var room any
	if roomID > 0 {
		room = roomID
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := db.ExecContext(context.Background(),
		`INSERT INTO devices (id, name, credential, owner_id, room_id, kind, is_active, is_on, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, 1, 0, ?, ?)`,
		id, id, credential, ownerID, room, kind, now, now,
	)
	if err != nil {
		t.Fatalf("seeding device %s: %v", id, err)
	}
}
