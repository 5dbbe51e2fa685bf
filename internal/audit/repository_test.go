package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/nerrad567/roomwatch-core/internal/audit"
	"github.com/nerrad567/roomwatch-core/internal/infrastructure/database/dbtest"
)

func TestCreateAndList(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	tick := 0
	repo := audit.NewSQLiteRepository(db).WithClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * 500 * time.Millisecond)
	})

	entries := []*audit.AuditLog{
		{Action: audit.ActionLogin, EntityType: audit.EntitySession, UserID: "usr-1"},
		{Action: audit.ActionCommand, EntityType: audit.EntityDevice, EntityID: "fan-01", UserID: "usr-1",
			Details: map[string]any{"command_kind": "turn_on"}},
		{Action: audit.ActionCommand, EntityType: audit.EntityDevice, EntityID: "ac-01", UserID: "usr-2"},
	}
	for _, e := range entries {
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if e.ID == "" || e.Source != audit.SourceAPI {
			t.Errorf("Create() did not fill defaults: %+v", e)
		}
	}

	all, err := repo.List(ctx, audit.Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if all.Total != 3 || len(all.Logs) != 3 {
		t.Fatalf("List() total = %d, len = %d, want 3", all.Total, len(all.Logs))
	}
	if all.Logs[0].EntityID != "ac-01" || all.Logs[2].Action != audit.ActionLogin {
		t.Errorf("List() not newest first: %+v", all.Logs)
	}
	if all.Limit != audit.DefaultLimit {
		t.Errorf("Limit = %d, want %d", all.Limit, audit.DefaultLimit)
	}

	commands, err := repo.List(ctx, audit.Filter{Action: audit.ActionCommand, UserID: "usr-1"})
	if err != nil {
		t.Fatalf("List(filter) error = %v", err)
	}
	if commands.Total != 1 || commands.Logs[0].EntityID != "fan-01" {
		t.Fatalf("filtered List() = %+v", commands.Logs)
	}
	if commands.Logs[0].Details["command_kind"] != "turn_on" {
		t.Errorf("Details = %v", commands.Logs[0].Details)
	}
}

func TestListClampsPaging(t *testing.T) {
	db := dbtest.Open(t)
	repo := audit.NewSQLiteRepository(db)

	got, err := repo.List(context.Background(), audit.Filter{Limit: 10_000, Offset: -5})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if got.Limit != audit.MaxLimit || got.Offset != 0 {
		t.Errorf("paging = (%d, %d), want (%d, 0)", got.Limit, got.Offset, audit.MaxLimit)
	}
	if got.Logs == nil {
		t.Error("Logs should be an empty slice, not nil")
	}
}
