package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/roomwatch-core/internal/infrastructure/config"
)

const testJWTSecret = "test-secret-for-development-only-0123456789"

// writeConfig writes a config file and points ROOMWATCH_CONFIG at it.
func writeConfig(t *testing.T, content string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv("ROOMWATCH_CONFIG", path)
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("finding free port: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("ROOMWATCH_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_MissingJWTSecret verifies config validation stops startup.
func TestRun_MissingJWTSecret(t *testing.T) {
	t.Setenv("ROOMWATCH_JWT_SECRET", "")
	writeConfig(t, `
site:
  id: test-site
database:
  path: "`+filepath.Join(t.TempDir(), "test.db")+`"
`)

	err := run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "jwt.secret") {
		t.Fatalf("run() error = %v, want a jwt.secret validation error", err)
	}
}

// TestRun_StartupAndShutdown starts the full service without a broker:
// the bridge is disabled and command dispatch dials lazily.
func TestRun_StartupAndShutdown(t *testing.T) {
	dir := t.TempDir()
	port := freePort(t)
	writeConfig(t, fmt.Sprintf(`
site:
  id: test-site
  timezone: Asia/Ho_Chi_Minh
database:
  path: %q
  wal_mode: true
  busy_timeout: 5
mqtt:
  broker:
    host: "127.0.0.1"
    port: 19999
bridge:
  enabled: false
influxdb:
  enabled: false
logging:
  level: warn
  format: text
  output: stdout
api:
  host: "127.0.0.1"
  port: %d
security:
  jwt:
    secret: %q
rooms:
  - id: 1
    name: Sales
  - id: 2
    name: Marketing
bootstrap:
  admin_email: admin@example.com
  admin_password: bootstrap-password
`, filepath.Join(dir, "test.db"), port, testJWTSecret))

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Fatalf("run() error = %v", err)
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv("ROOMWATCH_CONFIG", "")

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	expected := "/custom/path/config.yaml"
	t.Setenv("ROOMWATCH_CONFIG", expected)

	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

func TestRoomsFromConfig(t *testing.T) {
	rooms := roomsFromConfig([]config.RoomConfig{
		{ID: 1, Name: "Sales", Description: "Ground floor"},
		{ID: 7},
	})

	if len(rooms) != 2 {
		t.Fatalf("len(rooms) = %d, want 2", len(rooms))
	}
	if rooms[0].Description == nil || *rooms[0].Description != "Ground floor" {
		t.Errorf("rooms[0].Description = %v", rooms[0].Description)
	}
	if rooms[1].Name != "Room 7" || rooms[1].Description != nil {
		t.Errorf("rooms[1] = %+v, want default name and no description", rooms[1])
	}
}

func TestBackoffFromConfig(t *testing.T) {
	cfg := &config.Config{
		MQTT:    config.MQTTConfig{Reconnect: config.MQTTReconnectConfig{InitialDelay: 2, MaxDelay: 20}},
		Command: config.CommandConfig{MaxAttempts: 4},
	}

	b := backoffFromConfig(cfg)
	if b.Initial != 2*time.Second || b.Max != 20*time.Second || b.MaxAttempts != 4 {
		t.Errorf("backoffFromConfig() = %+v", b)
	}
}

func TestPositionRules(t *testing.T) {
	rules := positionRules(config.PresenceConfig{PositionRooms: []config.PositionRoomConfig{
		{Keyword: "sales", RoomID: 1},
	}})
	if len(rules) != 1 || rules[0].Keyword != "sales" || rules[0].RoomID != 1 {
		t.Errorf("positionRules() = %+v", rules)
	}

	if rules := positionRules(config.PresenceConfig{}); len(rules) != 0 {
		t.Errorf("empty config produced %d rules", len(rules))
	}
}
