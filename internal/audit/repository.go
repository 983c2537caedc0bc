// Package audit records who changed what on the bridge: device registry
// edits, rule changes, outlet commands and web logins. Entries land in the
// audit_log table of the history database so an operator can reconstruct
// why an outlet switched at 03:00.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Entry is one audit trail row.
type Entry struct {
	ID        string         `json:"id"`
	Action    string         `json:"action"`      // create, update, delete, toggle, command, rename, login
	Target    string         `json:"target"`      // device, rule, outlet, settings, session
	TargetID  string         `json:"target_id,omitempty"`
	DeviceID  string         `json:"device_id,omitempty"`
	Origin    string         `json:"origin"` // http, mqtt, automation
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Filter narrows a List call. Zero values match everything.
type Filter struct {
	Action   string
	Target   string
	DeviceID string
	Limit    int // default 50, max 200
	Offset   int
}

// Page is one page of audit results.
type Page struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Recorder is the write side, the only part most callers need.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// Repository adds the query side for the HTTP facade.
type Repository interface {
	Recorder
	List(ctx context.Context, f Filter) (*Page, error)
}

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// SQLiteRepository stores the audit trail in the history database. The
// table lives alongside the sample tables so one backup covers both.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository wraps an open handle on the history database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Record inserts one entry, generating the id and timestamp when unset.
func (r *SQLiteRepository) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = "aud-" + uuid.NewString()[:8]
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	var details any
	if e.Details != nil {
		b, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("marshalling audit details: %w", err)
		}
		details = string(b)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_log (id, action, target, target_id, device_id, origin, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Action, e.Target,
		nullable(e.TargetID), nullable(e.DeviceID),
		e.Origin, details,
		e.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns entries newest first, filtered and paginated.
func (r *SQLiteRepository) List(ctx context.Context, f Filter) (*Page, error) {
	if f.Limit <= 0 {
		f.Limit = defaultPageSize
	}
	if f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	var conds []string
	var args []any
	if f.Action != "" {
		conds = append(conds, "action = ?")
		args = append(args, f.Action)
	}
	if f.Target != "" {
		conds = append(conds, "target = ?")
		args = append(args, f.Target)
	}
	if f.DeviceID != "" {
		conds = append(conds, "device_id = ?")
		args = append(args, f.DeviceID)
	}
	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	//nolint:gosec // where is assembled from fixed fragments, values are bound
	countQuery := "SELECT COUNT(*) FROM audit_log " + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting audit entries: %w", err)
	}

	//nolint:gosec // where is assembled from fixed fragments, values are bound
	query := "SELECT id, action, target, target_id, device_id, origin, details, created_at FROM audit_log " +
		where + " ORDER BY created_at DESC, id LIMIT ? OFFSET ?"
	args = append(args, f.Limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var targetID, deviceID, details sql.NullString
		var createdAt string

		if err := rows.Scan(&e.ID, &e.Action, &e.Target,
			&targetID, &deviceID, &e.Origin, &details, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		e.TargetID = targetID.String
		e.DeviceID = deviceID.String
		if details.Valid && details.String != "" {
			var m map[string]any
			if json.Unmarshal([]byte(details.String), &m) == nil {
				e.Details = m
			}
		}
		ts, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing audit timestamp %q: %w", createdAt, err)
		}
		e.CreatedAt = ts

		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}

	return &Page{Entries: entries, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}
