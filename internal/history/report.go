package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/voltbridge/voltbridge/internal/pdu"
)

// ErrReportNotFound is returned when a report id or device has no match.
var ErrReportNotFound = errors.New("history: report not found")

// Report is one stored Monday-to-Sunday energy summary. Payload holds the
// computed numbers; external renderers (PDF, dashboard) consume it as-is.
type Report struct {
	ID        string        `json:"id"`
	DeviceID  string        `json:"device_id"`
	WeekStart string        `json:"week_start"` // YYYY-MM-DD, a Monday
	WeekEnd   string        `json:"week_end"`   // YYYY-MM-DD, the Sunday
	CreatedAt time.Time     `json:"created_at"`
	Payload   ReportPayload `json:"payload"`
}

// ReportPayload is the computed weekly summary. Days always holds seven
// entries, Monday through Sunday.
type ReportPayload struct {
	TotalEnergyKWh float64                 `json:"total_energy_kwh"`
	AvgPowerW      float64                 `json:"avg_power_w"`
	PeakPowerW     float64                 `json:"peak_power_w"`
	PeakPowerAt    *time.Time              `json:"peak_power_at,omitempty"`
	SampleCount    int64                   `json:"sample_count"`
	Days           []DayEnergy             `json:"days"`
	Outlets        map[int]OutletWeekStats `json:"outlets,omitempty"`
}

// DayEnergy is one day's slice of the weekly breakdown. SourceKWh splits
// the day's energy by active transfer-switch source ("A"/"B"); it is empty
// on non-ATS models.
type DayEnergy struct {
	Date      string             `json:"date"` // YYYY-MM-DD
	EnergyKWh float64            `json:"energy_kwh"`
	SourceKWh map[string]float64 `json:"source_kwh,omitempty"`
}

// OutletWeekStats is the per-outlet slice of a weekly report.
type OutletWeekStats struct {
	EnergyKWh  float64 `json:"energy_kwh"`
	AvgPowerW  float64 `json:"avg_power_w"`
	OnSeconds  int64   `json:"on_seconds"`
	OffSeconds int64   `json:"off_seconds"`
}

// weekStartFor returns the Monday 00:00 UTC that starts the last fully
// completed week before now.
func weekStartFor(now time.Time) time.Time {
	now = now.UTC()
	daysSinceMonday := (int(now.Weekday()) + 6) % 7
	thisMonday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).
		AddDate(0, 0, -daysSinceMonday)
	return thisMonday.AddDate(0, 0, -7)
}

// GenerateWeeklyReport computes and stores the report for the week starting
// at weekStart (a Monday, UTC). Idempotent: an existing report for the same
// (device, week) is returned untouched.
func (s *Store) GenerateWeeklyReport(ctx context.Context, deviceID string, weekStart time.Time) (*Report, error) {
	weekStart = weekStart.UTC().Truncate(24 * time.Hour)
	weekEnd := weekStart.AddDate(0, 0, 7)
	startStr := weekStart.Format("2006-01-02")
	endStr := weekEnd.AddDate(0, 0, -1).Format("2006-01-02")

	if existing, err := s.reportByWeek(ctx, deviceID, startStr); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrReportNotFound) {
		return nil, err
	}

	payload, err := s.computeWeek(ctx, deviceID, weekStart, weekEnd)
	if err != nil {
		return nil, err
	}
	if payload.SampleCount == 0 {
		return nil, fmt.Errorf("history: no samples for %s in week %s", deviceID, startStr)
	}

	report := &Report{
		ID:        uuid.NewString(),
		DeviceID:  deviceID,
		WeekStart: startStr,
		WeekEnd:   endStr,
		CreatedAt: time.Now().UTC(),
		Payload:   *payload,
	}

	data, err := json.Marshal(report.Payload)
	if err != nil {
		return nil, fmt.Errorf("history: marshal report: %w", err)
	}

	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return nil, fmt.Errorf("history: store closed")
	}

	// UNIQUE (device_id, week_start) makes concurrent generation safe; a
	// racing writer just loses and re-reads.
	_, err = db.ExecContext(ctx, `
		INSERT OR IGNORE INTO energy_reports (id, device_id, week_start, week_end, created_at, data)
		VALUES (?, ?, ?, ?, ?, ?)`,
		report.ID, deviceID, startStr, endStr,
		report.CreatedAt.Format(time.RFC3339), string(data))
	if err != nil {
		return nil, fmt.Errorf("history: store report: %w", err)
	}
	return s.reportByWeek(ctx, deviceID, startStr)
}

// GenerateDueReports produces last week's report for each device that does
// not have one yet. Devices without samples are skipped silently.
func (s *Store) GenerateDueReports(ctx context.Context, deviceIDs []string, now time.Time) {
	weekStart := weekStartFor(now)
	for _, id := range deviceIDs {
		if _, err := s.GenerateWeeklyReport(ctx, id, weekStart); err != nil {
			s.logger.Debug("weekly report skipped", "device", id, "error", err)
		}
	}
}

func (s *Store) computeWeek(ctx context.Context, deviceID string, start, end time.Time) (*ReportPayload, error) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return nil, fmt.Errorf("history: store closed")
	}

	payload := &ReportPayload{Outlets: make(map[int]OutletWeekStats)}

	// Device-level power profile from the bank samples.
	row := db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(AVG(power), 0), COALESCE(MAX(power), 0)
		FROM bank_samples WHERE device_id = ? AND ts >= ? AND ts < ?`,
		deviceID, start.Unix(), end.Unix())
	if err := row.Scan(&payload.SampleCount, &payload.AvgPowerW, &payload.PeakPowerW); err != nil {
		return nil, fmt.Errorf("history: week aggregate: %w", err)
	}

	if payload.PeakPowerW > 0 {
		var peakTS sql.NullInt64
		row = db.QueryRowContext(ctx, `
			SELECT ts FROM bank_samples
			WHERE device_id = ? AND ts >= ? AND ts < ? AND power = ?
			ORDER BY ts LIMIT 1`,
			deviceID, start.Unix(), end.Unix(), payload.PeakPowerW)
		if err := row.Scan(&peakTS); err == nil && peakTS.Valid {
			at := time.Unix(peakTS.Int64, 0).UTC()
			payload.PeakPowerAt = &at
		}
	}

	// Per-outlet energy over the week is the counter delta; the counters
	// are cumulative kWh. On/off time comes from state sample counts at
	// nominal 1 Hz.
	rows, err := db.DB.QueryContext(ctx, `
		SELECT outlet,
		       COALESCE(MAX(energy) - MIN(energy), 0),
		       COALESCE(AVG(power), 0),
		       SUM(CASE WHEN state = 1 THEN 1 ELSE 0 END),
		       SUM(CASE WHEN state = 0 THEN 1 ELSE 0 END)
		FROM outlet_samples
		WHERE device_id = ? AND ts >= ? AND ts < ?
		GROUP BY outlet ORDER BY outlet`,
		deviceID, start.Unix(), end.Unix())
	if err != nil {
		return nil, fmt.Errorf("history: week outlets: %w", err)
	}
	defer rows.Close()

	var outletSamples int64
	for rows.Next() {
		var outlet int
		var stats OutletWeekStats
		if err := rows.Scan(&outlet, &stats.EnergyKWh, &stats.AvgPowerW,
			&stats.OnSeconds, &stats.OffSeconds); err != nil {
			return nil, fmt.Errorf("history: scan week outlet: %w", err)
		}
		payload.Outlets[outlet] = stats
		payload.TotalEnergyKWh += stats.EnergyKWh
		outletSamples += stats.OnSeconds + stats.OffSeconds
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if payload.SampleCount == 0 {
		payload.SampleCount = outletSamples
	}

	days, err := s.computeDailyEnergy(ctx, deviceID, start)
	if err != nil {
		return nil, err
	}
	payload.Days = days
	return payload, nil
}

// computeDailyEnergy builds the Monday-to-Sunday breakdown. Each delta
// between consecutive energy-counter readings is attributed to the day and
// active source of the later reading; counter resets are skipped.
func (s *Store) computeDailyEnergy(ctx context.Context, deviceID string, start time.Time) ([]DayEnergy, error) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return nil, fmt.Errorf("history: store closed")
	}

	days := make([]DayEnergy, 7)
	for i := range days {
		days[i].Date = start.AddDate(0, 0, i).Format("2006-01-02")
	}

	rows, err := db.DB.QueryContext(ctx, `
		SELECT ts, outlet, energy, source FROM outlet_samples
		WHERE device_id = ? AND ts >= ? AND ts < ? AND energy IS NOT NULL
		ORDER BY outlet, ts`,
		deviceID, start.Unix(), start.AddDate(0, 0, 7).Unix())
	if err != nil {
		return nil, fmt.Errorf("history: daily energy: %w", err)
	}
	defer rows.Close()

	prev := make(map[int]float64)
	for rows.Next() {
		var ts int64
		var outlet int
		var energy float64
		var source sql.NullInt64
		if err := rows.Scan(&ts, &outlet, &energy, &source); err != nil {
			return nil, fmt.Errorf("history: scan daily energy: %w", err)
		}

		last, seen := prev[outlet]
		prev[outlet] = energy
		if !seen {
			continue
		}
		delta := energy - last
		if delta <= 0 {
			continue
		}

		idx := int((ts - start.Unix()) / 86400)
		if idx < 0 || idx > 6 {
			continue
		}
		days[idx].EnergyKWh += delta
		if source.Valid {
			if src, ok := pdu.DecodeSource(source.Int64); ok {
				if days[idx].SourceKWh == nil {
					days[idx].SourceKWh = make(map[string]float64)
				}
				days[idx].SourceKWh[string(src)] += delta
			}
		}
	}
	return days, rows.Err()
}

func (s *Store) reportByWeek(ctx context.Context, deviceID, weekStart string) (*Report, error) {
	return s.scanReport(ctx, `
		SELECT id, device_id, week_start, week_end, created_at, data
		FROM energy_reports WHERE device_id = ? AND week_start = ?`,
		deviceID, weekStart)
}

// GetReport fetches one report by id.
func (s *Store) GetReport(ctx context.Context, id string) (*Report, error) {
	return s.scanReport(ctx, `
		SELECT id, device_id, week_start, week_end, created_at, data
		FROM energy_reports WHERE id = ?`, id)
}

// LatestReport fetches the most recent report for a device.
func (s *Store) LatestReport(ctx context.Context, deviceID string) (*Report, error) {
	return s.scanReport(ctx, `
		SELECT id, device_id, week_start, week_end, created_at, data
		FROM energy_reports WHERE device_id = ?
		ORDER BY week_start DESC LIMIT 1`, deviceID)
}

// ListReports returns report headers for a device (or all devices when
// deviceID is empty), newest first.
func (s *Store) ListReports(ctx context.Context, deviceID string) ([]Report, error) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return nil, fmt.Errorf("history: store closed")
	}

	query := `SELECT id, device_id, week_start, week_end, created_at, data
	          FROM energy_reports`
	args := []any{}
	if deviceID != "" {
		query += ` WHERE device_id = ?`
		args = append(args, deviceID)
	}
	query += ` ORDER BY week_start DESC, device_id`

	rows, err := db.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("history: list reports: %w", err)
	}
	defer rows.Close()

	var reports []Report
	for rows.Next() {
		r, err := scanReportRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *r)
	}
	return reports, rows.Err()
}

func (s *Store) scanReport(ctx context.Context, query string, args ...any) (*Report, error) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return nil, fmt.Errorf("history: store closed")
	}

	row := db.QueryRowContext(ctx, query, args...)
	r, err := scanReportRow(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReportNotFound
	}
	return r, err
}

func scanReportRow(scan func(...any) error) (*Report, error) {
	var r Report
	var createdAt, data string
	if err := scan(&r.ID, &r.DeviceID, &r.WeekStart, &r.WeekEnd, &createdAt, &data); err != nil {
		return nil, err
	}
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		r.CreatedAt = t
	}
	if err := json.Unmarshal([]byte(data), &r.Payload); err != nil {
		return nil, fmt.Errorf("history: decode report payload: %w", err)
	}
	return &r, nil
}
