package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"nse-screener/internal/backtest"
	"nse-screener/internal/errors"
	"nse-screener/internal/models"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db        *sql.DB
	mu        sync.RWMutex
	syncTimes map[string]time.Time
}

var _ DataStore = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Workers write candles concurrently
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{
		db:        db,
		syncTimes: make(map[string]time.Time),
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Candles table for downloaded daily history
	CREATE TABLE IF NOT EXISTS candles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		timeframe TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(symbol, timeframe, timestamp)
	);

	-- One row per scan or backtest run
	CREATE TABLE IF NOT EXISTS scan_runs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		mode TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		duration_ms INTEGER NOT NULL,
		units INTEGER NOT NULL,
		processed INTEGER NOT NULL,
		matched INTEGER NOT NULL,
		cancelled INTEGER DEFAULT 0,
		period INTEGER DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Saved screening rows, one JSON record per row
	CREATE TABLE IF NOT EXISTS scan_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		row_index INTEGER NOT NULL,
		symbol TEXT NOT NULL,
		record TEXT NOT NULL,
		UNIQUE(run_id, row_index),
		FOREIGN KEY (run_id) REFERENCES scan_runs(id)
	);

	-- Graded backtest rows
	CREATE TABLE IF NOT EXISTS backtest_ledger (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		stock TEXT NOT NULL,
		base_date DATE NOT NULL,
		volume TEXT,
		trend TEXT,
		ma_signal TEXT,
		returns TEXT NOT NULL,
		UNIQUE(run_id, stock, base_date),
		FOREIGN KEY (run_id) REFERENCES scan_runs(id)
	);

	-- Sync status table
	CREATE TABLE IF NOT EXISTS sync_status (
		data_type TEXT PRIMARY KEY,
		last_sync DATETIME NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_candles_symbol_timeframe ON candles(symbol, timeframe, timestamp);
	CREATE INDEX IF NOT EXISTS idx_scan_results_run ON scan_results(run_id);
	CREATE INDEX IF NOT EXISTS idx_backtest_ledger_stock ON backtest_ledger(stock);
	CREATE INDEX IF NOT EXISTS idx_scan_runs_started ON scan_runs(started_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// batch executes query once per row inside one transaction. args builds the
// parameters of row i; any failure rolls the whole batch back.
func (s *SQLiteStore) batch(ctx context.Context, query string, n int, args func(i int) ([]interface{}, error)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		values, err := args(i)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, values...); err != nil {
			return fmt.Errorf("failed to insert row %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// SaveCandles saves candles to the database.
func (s *SQLiteStore) SaveCandles(ctx context.Context, symbol, timeframe string, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	return s.batch(ctx, `
		INSERT OR REPLACE INTO candles (symbol, timeframe, timestamp, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, len(candles), func(i int) ([]interface{}, error) {
		c := candles[i]
		return []interface{}{symbol, timeframe, c.Timestamp, c.Open, c.High, c.Low, c.Close, c.Volume}, nil
	})
}

// GetCandles retrieves candles from the database.
func (s *SQLiteStore) GetCandles(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]models.Candle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, open, high, low, close, volume
		FROM candles
		WHERE symbol = ? AND timeframe = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC
	`, symbol, timeframe, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query candles: %w", err)
	}
	defer rows.Close()

	var candles []models.Candle
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan candle: %w", err)
		}
		candles = append(candles, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candles: %w", err)
	}

	return candles, nil
}

// GetCandlesFreshness returns the timestamp of the most recent candle.
func (s *SQLiteStore) GetCandlesFreshness(ctx context.Context, symbol, timeframe string) (time.Time, error) {
	var raw sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(timestamp) FROM candles WHERE symbol = ? AND timeframe = ?
	`, symbol, timeframe).Scan(&raw)
	if err != nil && err != sql.ErrNoRows {
		return time.Time{}, fmt.Errorf("failed to get candles freshness: %w", err)
	}
	if !raw.Valid {
		return time.Time{}, nil
	}
	return parseTimestamp(raw.String)
}

// DeleteCandles removes the cached candles of symbol, or of every symbol
// when symbol is empty.
func (s *SQLiteStore) DeleteCandles(ctx context.Context, symbol string) (int64, error) {
	var res sql.Result
	var err error
	if symbol == "" {
		res, err = s.db.ExecContext(ctx, `DELETE FROM candles`)
	} else {
		res, err = s.db.ExecContext(ctx, `DELETE FROM candles WHERE symbol = ?`, symbol)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to delete candles: %w", err)
	}
	return res.RowsAffected()
}

// CandleStats summarizes the candle cache.
func (s *SQLiteStore) CandleStats(ctx context.Context) (*CandleStats, error) {
	var stats CandleStats
	var oldest, newest sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT symbol), COUNT(*), MIN(timestamp), MAX(timestamp) FROM candles
	`).Scan(&stats.Symbols, &stats.Candles, &oldest, &newest)
	if err != nil {
		return nil, fmt.Errorf("failed to get candle stats: %w", err)
	}
	if oldest.Valid {
		if stats.Oldest, err = parseTimestamp(oldest.String); err != nil {
			return nil, err
		}
	}
	if newest.Valid {
		if stats.Newest, err = parseTimestamp(newest.String); err != nil {
			return nil, err
		}
	}
	return &stats, nil
}

// Aggregates over DATETIME columns come back as text.
func parseTimestamp(s string) (time.Time, error) {
	layouts := []string{
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02T15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Wrapf(errors.ErrDatabaseError, "unrecognised timestamp %q", s)
}

// SaveRun saves or updates a run summary.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO scan_runs (id, kind, mode, started_at, duration_ms, units, processed, matched, cancelled, period)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Kind, run.Mode, run.StartedAt, run.Duration.Milliseconds(), run.Units,
		run.Processed, run.Matched, run.Cancelled, run.Period)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// SaveResults saves the plain rows of a run in table order.
func (s *SQLiteStore) SaveResults(ctx context.Context, runID string, rows []map[string]string) error {
	if len(rows) == 0 {
		return nil
	}

	return s.batch(ctx, `
		INSERT OR REPLACE INTO scan_results (run_id, row_index, symbol, record)
		VALUES (?, ?, ?, ?)
	`, len(rows), func(i int) ([]interface{}, error) {
		record, err := json.Marshal(rows[i])
		if err != nil {
			return nil, fmt.Errorf("encode row %d: %w", i, err)
		}
		return []interface{}{runID, i, rows[i]["Stock"], string(record)}, nil
	})
}

// GetResults returns the saved rows of a run in table order.
func (s *SQLiteStore) GetResults(ctx context.Context, runID string) ([]map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT record FROM scan_results WHERE run_id = ? ORDER BY row_index ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var out []map[string]string
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		var record map[string]string
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			return nil, fmt.Errorf("failed to decode result: %w", err)
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

// SaveLedger saves graded backtest rows. Forward returns are stored as a
// JSON object keyed by horizon column; ungraded horizons are omitted.
func (s *SQLiteStore) SaveLedger(ctx context.Context, runID string, rows []backtest.Row) error {
	if len(rows) == 0 {
		return nil
	}

	return s.batch(ctx, `
		INSERT OR REPLACE INTO backtest_ledger (run_id, stock, base_date, volume, trend, ma_signal, returns)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, len(rows), func(i int) ([]interface{}, error) {
		row := rows[i]
		returns := make(map[string]float64)
		for j, h := range backtest.Horizons {
			if c := row.Cells[j]; !c.Blank() {
				returns[backtest.HorizonColumn(h)] = c.Change
			}
		}
		encoded, err := json.Marshal(returns)
		if err != nil {
			return nil, fmt.Errorf("encode returns of %s: %w", row.Stock, err)
		}
		return []interface{}{runID, row.Stock, row.BaseDate.Format("2006-01-02"),
			row.Volume, row.Trend, row.MASignal, string(encoded)}, nil
	})
}

// GetRun returns one run, or errors.ErrNotFound.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	var r Run
	var durationMS int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, kind, mode, started_at, duration_ms, units, processed, matched, cancelled, period
		FROM scan_runs WHERE id = ?
	`, id).Scan(&r.ID, &r.Kind, &r.Mode, &r.StartedAt, &durationMS, &r.Units,
		&r.Processed, &r.Matched, &r.Cancelled, &r.Period)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(errors.ErrNotFound, "run %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	r.Duration = time.Duration(durationMS) * time.Millisecond
	return &r, nil
}

// GetRuns returns the most recent runs, newest first.
func (s *SQLiteStore) GetRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, mode, started_at, duration_ms, units, processed, matched, cancelled, period
		FROM scan_runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var durationMS int64
		if err := rows.Scan(&r.ID, &r.Kind, &r.Mode, &r.StartedAt, &durationMS, &r.Units,
			&r.Processed, &r.Matched, &r.Cancelled, &r.Period); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetLastSync returns the last sync time for a data type.
func (s *SQLiteStore) GetLastSync(dataType string) time.Time {
	s.mu.RLock()
	if t, ok := s.syncTimes[dataType]; ok {
		s.mu.RUnlock()
		return t
	}
	s.mu.RUnlock()

	var lastSync time.Time
	err := s.db.QueryRow(`
		SELECT last_sync FROM sync_status WHERE data_type = ?
	`, dataType).Scan(&lastSync)
	if err != nil {
		return time.Time{}
	}

	s.mu.Lock()
	s.syncTimes[dataType] = lastSync
	s.mu.Unlock()

	return lastSync
}

// SetLastSync sets the last sync time for a data type.
func (s *SQLiteStore) SetLastSync(dataType string, t time.Time) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO sync_status (data_type, last_sync, updated_at)
		VALUES (?, ?, ?)
	`, dataType, t, time.Now())
	if err != nil {
		return fmt.Errorf("failed to set last sync: %w", err)
	}

	s.mu.Lock()
	s.syncTimes[dataType] = t
	s.mu.Unlock()

	return nil
}
