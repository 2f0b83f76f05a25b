package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nse-screener/internal/backtest"
	"nse-screener/internal/errors"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "screener.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCandleFreshnessAndStats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	fresh, err := s.GetCandlesFreshness(ctx, "SBIN", "day")
	require.NoError(t, err)
	assert.True(t, fresh.IsZero())

	candles := generateTestCandles(5, 600, 10000)
	require.NoError(t, s.SaveCandles(ctx, "SBIN", "day", candles))
	require.NoError(t, s.SaveCandles(ctx, "TCS", "day", candles[:2]))

	fresh, err = s.GetCandlesFreshness(ctx, "SBIN", "day")
	require.NoError(t, err)
	assert.True(t, fresh.Equal(candles[4].Timestamp), "got %s", fresh)

	stats, err := s.CandleStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Symbols)
	assert.EqualValues(t, 7, stats.Candles)
	assert.True(t, stats.Oldest.Equal(candles[0].Timestamp))

	n, err := s.DeleteCandles(ctx, "TCS")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = s.DeleteCandles(ctx, "")
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)

	stats, err = s.CandleStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Candles)
	assert.True(t, stats.Newest.IsZero())
}

func TestRunsAndResults(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	older := &Run{ID: "run-1", Kind: "scan", Mode: "breakout", StartedAt: time.Now().Add(-time.Hour), Units: 3, Processed: 3, Matched: 1}
	newer := &Run{ID: "run-2", Kind: "backtest", Mode: "full", StartedAt: time.Now(), Duration: 1500 * time.Millisecond, Units: 10, Processed: 10, Matched: 4, Period: 5, Cancelled: true}
	require.NoError(t, s.SaveRun(ctx, older))
	require.NoError(t, s.SaveRun(ctx, newer))

	runs, err := s.GetRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID)
	assert.Equal(t, 1500*time.Millisecond, runs[0].Duration)
	assert.True(t, runs[0].Cancelled)
	assert.Equal(t, 5, runs[0].Period)

	one, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, older.Mode, one.Mode)
	_, err = s.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, errors.ErrNotFound)

	rows := []map[string]string{
		{"Stock": "SBIN", "LTP": "610.00"},
		{"Stock": "ITC", "LTP": "431.15"},
	}
	require.NoError(t, s.SaveResults(ctx, "run-1", rows))

	got, err := s.GetResults(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, rows, got)
}

func TestSaveLedger(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.SaveRun(ctx, &Run{ID: "bt", Kind: "backtest", Mode: "full", StartedAt: time.Now()}))

	row := backtest.Row{
		Stock:    "INFY",
		BaseDate: time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC),
		Volume:   "2.40",
		Trend:    "Strong Up",
		MASignal: "Bullish",
	}
	row.Cells[backtest.HorizonIndex(1)] = backtest.Cell{Change: 1.25, Tag: backtest.TagGreen}

	require.NoError(t, s.SaveLedger(ctx, "bt", []backtest.Row{row, row}))

	var count int
	var returns string
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*), MAX(returns) FROM backtest_ledger WHERE run_id = ?`, "bt").Scan(&count, &returns))
	assert.Equal(t, 1, count)
	assert.JSONEq(t, `{"1-Pd": 1.25}`, returns)
}

func TestLastSync(t *testing.T) {
	s := newTestStore(t)
	assert.True(t, s.GetLastSync(SyncInstruments).IsZero())

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.SetLastSync(SyncInstruments, now))
	assert.True(t, s.GetLastSync(SyncInstruments).Equal(now))
}
