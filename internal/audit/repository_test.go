package audit_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/voltbridge/voltbridge/internal/audit"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("opening in-memory database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE audit_log (
		id TEXT PRIMARY KEY, action TEXT NOT NULL, target TEXT NOT NULL,
		target_id TEXT, device_id TEXT, origin TEXT NOT NULL,
		details TEXT, created_at TEXT NOT NULL)`)
	if err != nil {
		t.Fatalf("creating audit_log table: %v", err)
	}
	return db
}

func TestRecordGeneratesIDAndTimestamp(t *testing.T) {
	repo := audit.NewSQLiteRepository(testDB(t))
	ctx := context.Background()

	err := repo.Record(ctx, audit.Entry{
		Action:   "command",
		Target:   "outlet",
		TargetID: "3",
		DeviceID: "pdu44001",
		Origin:   "http",
		Details:  map[string]any{"command": "off"},
	})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	page, err := repo.List(ctx, audit.Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if page.Total != 1 || len(page.Entries) != 1 {
		t.Fatalf("List() total = %d, entries = %d, want 1, 1", page.Total, len(page.Entries))
	}

	e := page.Entries[0]
	if e.ID == "" {
		t.Error("Record() did not generate an id")
	}
	if e.CreatedAt.IsZero() {
		t.Error("Record() did not set created_at")
	}
	if e.Details["command"] != "off" {
		t.Errorf("Details = %v, want command=off", e.Details)
	}
}

func TestListFilters(t *testing.T) {
	repo := audit.NewSQLiteRepository(testDB(t))
	ctx := context.Background()

	entries := []audit.Entry{
		{Action: "create", Target: "device", TargetID: "pdu-a", DeviceID: "pdu-a", Origin: "http"},
		{Action: "command", Target: "outlet", TargetID: "1", DeviceID: "pdu-a", Origin: "mqtt"},
		{Action: "command", Target: "outlet", TargetID: "2", DeviceID: "pdu-b", Origin: "http"},
		{Action: "delete", Target: "rule", TargetID: "low-voltage", DeviceID: "pdu-b", Origin: "http"},
	}
	for i, e := range entries {
		e.CreatedAt = time.Date(2026, 3, 1, 12, 0, i, 0, time.UTC)
		if err := repo.Record(ctx, e); err != nil {
			t.Fatalf("Record(%d) error = %v", i, err)
		}
	}

	tests := []struct {
		name   string
		filter audit.Filter
		want   int
	}{
		{"all", audit.Filter{}, 4},
		{"by action", audit.Filter{Action: "command"}, 2},
		{"by device", audit.Filter{DeviceID: "pdu-b"}, 2},
		{"by target", audit.Filter{Target: "rule"}, 1},
		{"combined", audit.Filter{Action: "command", DeviceID: "pdu-a"}, 1},
		{"no match", audit.Filter{Action: "login"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if page.Total != tt.want {
				t.Errorf("Total = %d, want %d", page.Total, tt.want)
			}
		})
	}
}

func TestListOrderAndPagination(t *testing.T) {
	repo := audit.NewSQLiteRepository(testDB(t))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		err := repo.Record(ctx, audit.Entry{
			Action:    "update",
			Target:    "rule",
			TargetID:  string(rune('a' + i)),
			Origin:    "http",
			CreatedAt: time.Date(2026, 3, 1, 12, 0, i, 0, time.UTC),
		})
		if err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	page, err := repo.List(ctx, audit.Filter{Limit: 2})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(page.Entries) != 2 || page.Total != 5 {
		t.Fatalf("page = %d entries of %d, want 2 of 5", len(page.Entries), page.Total)
	}
	if page.Entries[0].TargetID != "e" {
		t.Errorf("first entry = %q, want newest (e)", page.Entries[0].TargetID)
	}

	page2, err := repo.List(ctx, audit.Filter{Limit: 2, Offset: 4})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(page2.Entries) != 1 || page2.Entries[0].TargetID != "a" {
		t.Errorf("last page = %v, want single oldest entry (a)", page2.Entries)
	}
}
