package history

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/voltbridge/voltbridge/internal/infrastructure/database"
	"github.com/voltbridge/voltbridge/internal/infrastructure/logging"
	"github.com/voltbridge/voltbridge/internal/pdu"
)

// Batch commit thresholds: whichever trips first forces a flush.
const (
	defaultFlushBatches  = 10
	defaultFlushInterval = 1000 * time.Millisecond

	// reconnectAfterErrors is how many consecutive flush failures trigger
	// a database reconnect.
	reconnectAfterErrors = 5

	defaultRetentionDays = 60

	queueCapacity = 256
)

// Config tunes the store's write and retention behavior. Zero values take
// the defaults above.
type Config struct {
	FlushBatches  int
	FlushInterval time.Duration
	RetentionDays int
}

// bankRow and outletRow are the flattened sample shapes the writer inserts.
type bankRow struct {
	deviceID string
	ts       int64
	bank     int
	voltage  *float64
	current  *float64
	power    *float64
	apparent *float64
	pf       *float64
}

type outletRow struct {
	deviceID string
	ts       int64
	outlet   int
	state    *int
	current  *float64
	power    *float64
	energy   *float64
	source   *int // active ATS source (1=A, 2=B); nil on non-ATS models
}

// batch is one poll cycle's worth of rows.
type batch struct {
	banks   []bankRow
	outlets []outletRow
}

// Store owns the history database. One writer goroutine serializes all
// inserts; Record never blocks the poll loop beyond a channel send.
type Store struct {
	cfg    Config
	dbCfg  database.Config
	logger *logging.Logger

	mu sync.Mutex
	db *database.DB

	queue  chan batch
	done   chan struct{}
	closed sync.Once

	writeErrors int
	errorsTotal int64
}

// Open opens (or creates) the history database, runs migrations and starts
// the writer.
func Open(dbCfg database.Config, cfg Config, logger *logging.Logger) (*Store, error) {
	if cfg.FlushBatches <= 0 {
		cfg.FlushBatches = defaultFlushBatches
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = defaultFlushInterval
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = defaultRetentionDays
	}
	if logger == nil {
		logger = logging.Default()
	}

	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: %w", err)
	}

	s := &Store{
		cfg:    cfg,
		dbCfg:  dbCfg,
		logger: logger.With("component", "history"),
		db:     db,
		queue:  make(chan batch, queueCapacity),
		done:   make(chan struct{}),
	}
	go s.writeLoop()
	return s, nil
}

// Record queues one snapshot's bank and outlet rows for writing. Samples
// with no metering at all still produce outlet state rows, so on/off
// history survives on unmetered models.
func (s *Store) Record(deviceID string, snap *pdu.Snapshot) {
	if snap == nil {
		return
	}
	ts := snap.Timestamp.Unix()

	var source *int
	if snap.ATS != nil {
		if v, ok := pdu.SourceSNMPValue(snap.ATS.CurrentSource); ok {
			source = &v
		}
	}

	b := batch{}
	for num, bank := range snap.Banks {
		b.banks = append(b.banks, bankRow{
			deviceID: deviceID,
			ts:       ts,
			bank:     num,
			voltage:  bank.Voltage,
			current:  bank.Current,
			power:    bank.Power,
			apparent: bank.ApparentPower,
			pf:       bank.PowerFactor,
		})
	}
	for num, outlet := range snap.Outlets {
		var state *int
		switch outlet.State {
		case pdu.OutletOn:
			v := 1
			state = &v
		case pdu.OutletOff:
			v := 0
			state = &v
		}
		b.outlets = append(b.outlets, outletRow{
			deviceID: deviceID,
			ts:       ts,
			outlet:   num,
			state:    state,
			current:  outlet.Current,
			power:    outlet.Power,
			energy:   outlet.Energy,
			source:   source,
		})
	}
	if len(b.banks) == 0 && len(b.outlets) == 0 {
		return
	}

	select {
	case s.queue <- b:
	default:
		// Writer is stalled; dropping one cycle beats blocking the poller.
		s.logger.Warn("history queue full, dropping batch", "device", deviceID)
	}
}

// writeLoop coalesces batches and commits on count or interval.
func (s *Store) writeLoop() {
	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()

	var pending []batch
	flush := func() {
		if len(pending) == 0 {
			return
		}
		if err := s.commit(pending); err != nil {
			s.noteWriteError(err)
			return // retry the same batches on the next trigger
		}
		s.writeErrors = 0
		pending = pending[:0]
	}

	for {
		select {
		case b, ok := <-s.queue:
			if !ok {
				flush()
				close(s.done)
				return
			}
			pending = append(pending, b)
			if len(pending) >= s.cfg.FlushBatches {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (s *Store) commit(batches []batch) error {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return fmt.Errorf("history: store closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	bankStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO bank_samples (device_id, ts, bank, voltage, current, power, apparent, pf)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer bankStmt.Close()

	outletStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO outlet_samples (device_id, ts, outlet, state, current, power, energy, source)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer outletStmt.Close()

	for _, b := range batches {
		for _, r := range b.banks {
			if _, err := bankStmt.ExecContext(ctx,
				r.deviceID, r.ts, r.bank, r.voltage, r.current, r.power, r.apparent, r.pf); err != nil {
				return err
			}
		}
		for _, r := range b.outlets {
			if _, err := outletStmt.ExecContext(ctx,
				r.deviceID, r.ts, r.outlet, r.state, r.current, r.power, r.energy, r.source); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

func (s *Store) noteWriteError(err error) {
	s.writeErrors++
	s.mu.Lock()
	s.errorsTotal++
	s.mu.Unlock()
	s.logger.Error("history write failed",
		"error", err, "consecutive", s.writeErrors)

	if s.writeErrors >= reconnectAfterErrors {
		s.logger.Warn("reconnecting history database after repeated write failures")
		s.reconnect()
		s.writeErrors = 0
	}
}

func (s *Store) reconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		s.db.Close()
		s.db = nil
	}
	db, err := database.Open(s.dbCfg)
	if err != nil {
		s.logger.Error("history reconnect failed", "error", err)
		return
	}
	s.db = db
}

// Flush blocks until everything queued so far is committed. Test and
// shutdown helper.
func (s *Store) Flush() {
	// Drain by waiting one flush interval past an empty queue.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if len(s.queue) == 0 {
			time.Sleep(s.cfg.FlushInterval + 50*time.Millisecond)
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// Sweep deletes samples older than the retention window. Called hourly by
// the manager's scheduler.
func (s *Store) Sweep(ctx context.Context, now time.Time) error {
	s.mu.Lock()
	db := s.db
	retention := s.cfg.RetentionDays
	s.mu.Unlock()
	if db == nil {
		return fmt.Errorf("history: store closed")
	}

	cutoff := now.Add(-time.Duration(retention) * 24 * time.Hour).Unix()
	var total int64
	for _, table := range []string{"bank_samples", "outlet_samples"} {
		res, err := db.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE ts < ?", table), cutoff)
		if err != nil {
			return fmt.Errorf("history: sweep %s: %w", table, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			total += n
		}
	}
	if total > 0 {
		s.logger.Info("retention sweep complete", "deleted", total, "cutoff", cutoff)
	}
	return nil
}

// SetRetention changes the retention window for subsequent sweeps.
func (s *Store) SetRetention(days int) {
	if days < 1 {
		return
	}
	s.mu.Lock()
	s.cfg.RetentionDays = days
	s.mu.Unlock()
}

// Vacuum compacts the database file. Explicit operation only; it takes an
// exclusive lock and can run long on large files.
func (s *Store) Vacuum(ctx context.Context) error {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return fmt.Errorf("history: store closed")
	}
	if _, err := db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("history: vacuum: %w", err)
	}
	return nil
}

// WriteErrors returns the lifetime count of failed flushes, for the health
// endpoint.
func (s *Store) WriteErrors() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errorsTotal
}

// Close flushes pending batches and closes the database.
func (s *Store) Close() error {
	var err error
	s.closed.Do(func() {
		close(s.queue)
		select {
		case <-s.done:
		case <-time.After(10 * time.Second):
			s.logger.Warn("history writer did not drain before close timeout")
		}
		s.mu.Lock()
		if s.db != nil {
			err = s.db.Close()
			s.db = nil
		}
		s.mu.Unlock()
	})
	return err
}
