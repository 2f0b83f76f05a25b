// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"nse-screener/internal/backtest"
	"nse-screener/internal/models"
)

// CandleStore persists downloaded price history.
type CandleStore interface {
	SaveCandles(ctx context.Context, symbol, interval string, candles []models.Candle) error
	GetCandles(ctx context.Context, symbol, interval string, from, to time.Time) ([]models.Candle, error)
	GetCandlesFreshness(ctx context.Context, symbol, interval string) (time.Time, error)
	DeleteCandles(ctx context.Context, symbol string) (int64, error)
	CandleStats(ctx context.Context) (*CandleStats, error)
}

// RunStore persists scan runs and their tables.
type RunStore interface {
	SaveRun(ctx context.Context, run *Run) error
	SaveResults(ctx context.Context, runID string, rows []map[string]string) error
	SaveLedger(ctx context.Context, runID string, rows []backtest.Row) error
	GetRun(ctx context.Context, id string) (*Run, error)
	GetRuns(ctx context.Context, limit int) ([]Run, error)
	GetResults(ctx context.Context, runID string) ([]map[string]string, error)
}

// DataStore is everything the screener persists.
type DataStore interface {
	CandleStore
	RunStore

	GetLastSync(dataType string) time.Time
	SetLastSync(dataType string, t time.Time) error
	Close() error
}

// Run is the persisted summary of one scan or backtest run.
type Run struct {
	ID        string
	Kind      string // scan or backtest
	Mode      string
	StartedAt time.Time
	Duration  time.Duration
	Units     int
	Processed int64
	Matched   int64
	Cancelled bool
	Period    int
}

// CandleStats describes the candle cache.
type CandleStats struct {
	Symbols int
	Candles int64
	Oldest  time.Time
	Newest  time.Time
}

// Sync data types.
const (
	SyncInstruments = "instruments"
)
