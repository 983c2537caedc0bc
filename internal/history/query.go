package history

import (
	"context"
	"fmt"
	"time"
)

// bucketFor picks the downsampling bucket width for a query range. The
// widths keep every response under ~3600 points regardless of span.
func bucketFor(width time.Duration) time.Duration {
	switch {
	case width <= time.Hour:
		return time.Second
	case width <= 6*time.Hour:
		return 10 * time.Second
	case width <= 24*time.Hour:
		return 60 * time.Second
	case width <= 7*24*time.Hour:
		return 300 * time.Second
	case width <= 30*24*time.Hour:
		return 900 * time.Second
	}
	return 1800 * time.Second
}

// BankPoint is one downsampled bank bucket. Numeric fields are bucket
// averages; nil means no sample in the bucket carried that field.
type BankPoint struct {
	Timestamp time.Time `json:"ts"`
	Bank      int       `json:"bank"`
	Voltage   *float64  `json:"voltage,omitempty"`
	Current   *float64  `json:"current,omitempty"`
	Power     *float64  `json:"power,omitempty"`
	Apparent  *float64  `json:"apparent,omitempty"`
	PF        *float64  `json:"pf,omitempty"`
}

// OutletPoint is one downsampled outlet bucket. State is the last value in
// the bucket (1 on, 0 off); metering fields are averages.
type OutletPoint struct {
	Timestamp time.Time `json:"ts"`
	Outlet    int       `json:"outlet"`
	State     *int      `json:"state,omitempty"`
	Current   *float64  `json:"current,omitempty"`
	Power     *float64  `json:"power,omitempty"`
	Energy    *float64  `json:"energy,omitempty"`
}

// QueryBanks returns downsampled bank samples for [start, end], ordered by
// (bucket, bank).
func (s *Store) QueryBanks(ctx context.Context, deviceID string, start, end time.Time) ([]BankPoint, error) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return nil, fmt.Errorf("history: store closed")
	}

	bucket := int64(bucketFor(end.Sub(start)).Seconds())
	rows, err := db.DB.QueryContext(ctx, `
		SELECT (ts / ?) * ? AS bucket, bank,
		       AVG(voltage), AVG(current), AVG(power), AVG(apparent), AVG(pf)
		FROM bank_samples
		WHERE device_id = ? AND ts >= ? AND ts <= ?
		GROUP BY bucket, bank
		ORDER BY bucket, bank`,
		bucket, bucket, deviceID, start.Unix(), end.Unix())
	if err != nil {
		return nil, fmt.Errorf("history: query banks: %w", err)
	}
	defer rows.Close()

	var points []BankPoint
	for rows.Next() {
		var ts int64
		var p BankPoint
		if err := rows.Scan(&ts, &p.Bank, &p.Voltage, &p.Current, &p.Power, &p.Apparent, &p.PF); err != nil {
			return nil, fmt.Errorf("history: scan bank row: %w", err)
		}
		p.Timestamp = time.Unix(ts, 0).UTC()
		points = append(points, p)
	}
	return points, rows.Err()
}

// QueryOutlets returns downsampled outlet samples for [start, end], ordered
// by (bucket, outlet). State within a bucket resolves to the latest sample,
// so a brief off inside a wide bucket is still visible as the final state.
func (s *Store) QueryOutlets(ctx context.Context, deviceID string, start, end time.Time) ([]OutletPoint, error) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return nil, fmt.Errorf("history: store closed")
	}

	bucket := int64(bucketFor(end.Sub(start)).Seconds())
	// The correlated subquery picks the last state per bucket; SQLite has
	// no LAST() aggregate.
	rows, err := db.DB.QueryContext(ctx, `
		SELECT (ts / ?) * ? AS bucket, outlet,
		       (SELECT o2.state FROM outlet_samples o2
		        WHERE o2.device_id = o1.device_id AND o2.outlet = o1.outlet
		          AND (o2.ts / ?) * ? = (o1.ts / ?) * ?
		        ORDER BY o2.ts DESC LIMIT 1),
		       AVG(current), AVG(power), AVG(energy)
		FROM outlet_samples o1
		WHERE device_id = ? AND ts >= ? AND ts <= ?
		GROUP BY bucket, outlet
		ORDER BY bucket, outlet`,
		bucket, bucket, bucket, bucket, bucket, bucket,
		deviceID, start.Unix(), end.Unix())
	if err != nil {
		return nil, fmt.Errorf("history: query outlets: %w", err)
	}
	defer rows.Close()

	var points []OutletPoint
	for rows.Next() {
		var ts int64
		var p OutletPoint
		if err := rows.Scan(&ts, &p.Outlet, &p.State, &p.Current, &p.Power, &p.Energy); err != nil {
			return nil, fmt.Errorf("history: scan outlet row: %w", err)
		}
		p.Timestamp = time.Unix(ts, 0).UTC()
		points = append(points, p)
	}
	return points, rows.Err()
}
