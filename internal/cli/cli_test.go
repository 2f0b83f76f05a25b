package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nse-screener/internal/backtest"
	"nse-screener/internal/config"
	"nse-screener/internal/errors"
	"nse-screener/internal/models"
	"nse-screener/internal/scan"
	"nse-screener/internal/store"
)

type fakeProvider struct {
	series map[string][]models.Candle
}

func (f *fakeProvider) Historical(_ context.Context, symbol, _ string, _, _ time.Time) ([]models.Candle, error) {
	c, ok := f.series[symbol]
	if !ok {
		return nil, errors.NewDataError("candles", symbol, "unknown symbol", errors.ErrSymbolNotFound)
	}
	return c, nil
}

func (f *fakeProvider) Instruments(context.Context, models.Exchange) ([]models.Instrument, error) {
	return nil, nil
}

func flatSeries(n int, price float64) []models.Candle {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, n)
	for i := range out {
		out[i] = models.Candle{
			Timestamp: start.AddDate(0, 0, i),
			Open:      price,
			High:      price + 1,
			Low:       price - 1,
			Close:     price,
			Volume:    100000,
		}
	}
	return out
}

func breakoutSeries(n int) []models.Candle {
	c := flatSeries(n, 100)
	last := &c[n-1]
	last.Open, last.High, last.Low, last.Close = 101, 111, 100, 110
	last.Volume = 300000
	return c
}

type testEnv struct {
	cfg      *config.Config
	provider *fakeProvider
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Dir = dir
	cfg.Store.Path = filepath.Join(dir, "screener.db")
	cfg.Report.OutputDir = filepath.Join(dir, "reports")
	cfg.Screener.DrainTimeout = 10 * time.Second
	cfg.Screener.MaxWorkers = 4
	cfg.Universe = config.UniverseConfig{Source: "static", Symbols: []string{"SBIN", "TCS"}}
	cfg.Metrics.Addr = ""

	return &testEnv{
		cfg: cfg,
		provider: &fakeProvider{series: map[string][]models.Candle{
			"SBIN": breakoutSeries(120),
			"TCS":  flatSeries(120, 100),
		}},
	}
}

// run executes one command against a fresh App, the way main does.
func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	app := &App{
		Config:   e.cfg,
		Logger:   zerolog.Nop(),
		Provider: e.provider,
		Metrics:  scan.NewMetrics(),
	}
	cmd := newRootCmd(app)

	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	require.NoError(t, app.Close())
	return buf.String(), err
}

func (e *testEnv) store(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(e.cfg.Store.Path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestVersionCommand(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "version", "--json")
	require.NoError(t, err)

	var doc map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, Version, doc["version"])
}

func TestConfigValidateCommand(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid")
	assert.Contains(t, out, "Kite credentials are missing")

	env.cfg.Backtest.Period = 45
	_, err = env.run(t, "config", "validate")
	assert.Error(t, err)
}

func TestScanCommandSavesRun(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "scan", "breakout", "--json", "--save")
	require.NoError(t, err)

	var doc outcomeJSON
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "breakout", doc.Mode)
	assert.Equal(t, "scan", doc.Kind)
	assert.Equal(t, 2, doc.Units)
	assert.EqualValues(t, 2, doc.Processed)
	assert.EqualValues(t, 1, doc.Matched)
	require.Len(t, doc.Rows, 1)
	assert.Equal(t, "SBIN", doc.Rows[0]["Stock"])
	assert.False(t, doc.Cancelled)

	s := env.store(t)
	run, err := s.GetRun(context.Background(), doc.RunID)
	require.NoError(t, err)
	assert.Equal(t, "breakout", run.Mode)
	assert.EqualValues(t, 1, run.Matched)

	rows, err := s.GetResults(context.Background(), doc.RunID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "110.00", rows[0]["LTP"])

	// the history was cached on the way
	stats, err := s.CandleStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Symbols)
}

func TestScanCommandTable(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "scan", "full", "--stocks", "sbin", "--cache=false")
	require.NoError(t, err)
	assert.Contains(t, out, "FULL scan")
	assert.Contains(t, out, "SBIN")
	assert.NotContains(t, out, "TCS")
	assert.Contains(t, out, "Found 1 of 1")
	assert.NotContains(t, out, "\x1b[")
}

func TestBacktestCommand(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "backtest", "full", "--period", "5", "--iterations", "3", "--json", "--save")
	require.NoError(t, err)

	var doc outcomeJSON
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "backtest", doc.Kind)
	assert.Equal(t, 5, doc.Period)
	assert.Equal(t, 6, doc.Units)
	assert.Len(t, doc.Rows, 6)

	require.Len(t, doc.Summary, 3)
	last := doc.Summary[len(doc.Summary)-1]
	assert.Equal(t, backtest.SummaryRowName, last["Stock"])
	assert.Equal(t, "100.00% of (6)", last["1-Pd"])
	assert.NotContains(t, last, "10-Pd")

	rows, err := env.store(t).GetResults(context.Background(), doc.RunID)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestBacktestRejectsBadPeriod(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "backtest", "full", "--period", "31")
	assert.ErrorIs(t, err, errors.ErrConfigInvalid)
}

func TestScanRejectsUnknownMode(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "scan", "telegram")
	assert.ErrorIs(t, err, errors.ErrInvalidMode)

	_, err = env.run(t, "scan")
	assert.Error(t, err)
}

func TestScanExportsWorkbook(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "scan", "breakout", "--xlsx", "--cache=false")
	require.NoError(t, err)

	files, err := filepath.Glob(filepath.Join(env.cfg.Report.OutputDir, "breakout_scan_*.xlsx"))
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestCacheCommands(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "cache", "warm", "--stocks", "SBIN,TCS,NOPE", "--json")
	require.NoError(t, err)
	var warm map[string]int64
	require.NoError(t, json.Unmarshal([]byte(out), &warm))
	assert.EqualValues(t, 3, warm["Total"])
	assert.EqualValues(t, 2, warm["Loaded"])
	assert.EqualValues(t, 1, warm["Failed"])

	out, err = env.run(t, "cache", "stats", "--json")
	require.NoError(t, err)
	var stats map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.EqualValues(t, 2, stats["symbols"])
	assert.EqualValues(t, 240, stats["candles"])

	out, err = env.run(t, "cache", "clear", "sbin", "--json")
	require.NoError(t, err)
	var cleared map[string]int64
	require.NoError(t, json.Unmarshal([]byte(out), &cleared))
	assert.EqualValues(t, 120, cleared["deleted"])

	out, err = env.run(t, "cache", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Candle Cache")
	assert.Contains(t, out, "120")
}

func TestRunsCommands(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "runs", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No saved runs")

	out, err = env.run(t, "scan", "breakout", "--json", "--save", "--cache=false")
	require.NoError(t, err)
	var doc outcomeJSON
	require.NoError(t, json.Unmarshal([]byte(out), &doc))

	out, err = env.run(t, "runs", "list")
	require.NoError(t, err)
	assert.Contains(t, out, doc.RunID)
	assert.Contains(t, out, "completed")

	out, err = env.run(t, "runs", "show", doc.RunID)
	require.NoError(t, err)
	assert.Contains(t, out, "SBIN")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(out), "1 rows"))

	_, err = env.run(t, "runs", "show", "missing")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestScheduleRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "schedule", "breakout", "--cron", "every evening")
	assert.Error(t, err)

	_, err = env.run(t, "schedule", "sideways")
	assert.ErrorIs(t, err, errors.ErrInvalidMode)
}

func TestScanWithoutCredentials(t *testing.T) {
	env := newTestEnv(t)
	app := &App{Config: env.cfg, Logger: zerolog.Nop()}
	defer app.Close()

	_, err := app.Orchestrator()
	assert.ErrorIs(t, err, errors.ErrNotAuthenticated)
}
