package scan

import (
	"context"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"nse-screener/internal/backtest"
	"nse-screener/internal/config"
	"nse-screener/internal/errors"
	"nse-screener/internal/logging"
	"nse-screener/internal/screening"
)

// Request describes one scan or backtest run.
type Request struct {
	Mode    screening.Mode
	Symbols []string
	// Backtest replays the scan Iterations times over past days and grades
	// each verdict against the following Period candles.
	Backtest   bool
	Period     int
	Iterations int // zero derives it from the configured unit budget
	UseCache   bool
	Progress   ProgressFunc
	Flush      FlushFunc
}

// Outcome is the result of a run. It is returned for cancelled runs too,
// holding whatever was accumulated before the cancellation.
type Outcome struct {
	RunID      string
	Mode       string
	Backtest   bool
	Period     int
	Iterations int
	Units      int
	Workers    int
	Tables     *Tables
	Summary    *backtest.Summary // backtest runs only
	Ledger     []backtest.Row
	Processed  int64
	Matched    int64
	Failed     int
	Residual   int
	Cancelled  bool
	Stalled    bool
	Aborted    bool // provider rejected the session
	StartedAt  time.Time
	Duration   time.Duration
}

// Orchestrator drives scan runs.
type Orchestrator struct {
	screener   config.ScreenerConfig
	backtest   config.BacktestConfig
	capability Capability
	source     screening.PriceSource
	metrics    *Metrics
	logger     zerolog.Logger
	cpus       int
}

// NewOrchestrator creates an orchestrator. metrics may be nil.
func NewOrchestrator(cfg *config.Config, capability Capability, source screening.PriceSource, metrics *Metrics, logger zerolog.Logger) *Orchestrator {
	cpus := runtime.NumCPU()
	if cfg.Screener.MaxWorkers > 0 {
		cpus = cfg.Screener.MaxWorkers
	}
	return &Orchestrator{
		screener:   cfg.Screener,
		backtest:   cfg.Backtest,
		capability: capability,
		source:     source,
		metrics:    metrics,
		logger:     logging.WithOperation(logger, "scan"),
		cpus:       cpus,
	}
}

// Iterations returns how many historical replicas a backtest over universe
// stocks runs so that the total unit count stays within budget.
func Iterations(universe, budget, maxIterations int) int {
	if universe < 1 {
		universe = 1
	}
	n := budget / universe
	if maxIterations > 0 && n > maxIterations {
		n = maxIterations
	}
	return max(n, 1)
}

// BuildUnits returns the work units of a run. A live run has one unit per
// symbol at offset zero. A backtest with the given period and iterations
// has one unit per symbol for each offset from iterations+period down to
// period+1, so every replica has at least period+1 candles after its base
// date.
func BuildUnits(mode screening.Mode, symbols []string, cfg config.ScreenerConfig, useCache, backtesting bool, period, iterations int) []screening.WorkUnit {
	unit := func(symbol string, offset int) screening.WorkUnit {
		return screening.WorkUnit{
			Symbol:   symbol,
			Mode:     mode,
			Lookback: cfg.DaysToLookback,
			Total:    len(symbols),
			Config:   cfg,
			UseCache: useCache,
			Offset:   offset,
		}
	}

	if !backtesting {
		units := make([]screening.WorkUnit, 0, len(symbols))
		for _, s := range symbols {
			units = append(units, unit(s, 0))
		}
		return units
	}

	sampleDays := iterations + period + 1
	units := make([]screening.WorkUnit, 0, len(symbols)*iterations)
	for offset := sampleDays - 1; offset > period; offset-- {
		for _, s := range symbols {
			units = append(units, unit(s, offset))
		}
	}
	return units
}

// Run executes one scan or backtest. Cancelling ctx stops the workers and
// returns the partial tables without an error. Errors are returned for an
// invalid request, and for a session the provider rejects mid-run: the run
// is stopped at the first such result and the partial outcome is returned
// alongside ErrNotAuthenticated.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Outcome, error) {
	if req.Mode == nil {
		return nil, errors.Wrap(errors.ErrInvalidMode, "no scan mode")
	}

	out := &Outcome{
		RunID:     uuid.NewString(),
		Mode:      req.Mode.Name(),
		Backtest:  req.Backtest,
		StartedAt: time.Now(),
	}
	logger := logging.WithRunID(o.logger, out.RunID)

	symbols := uniqueSymbols(req.Symbols)
	var grader *backtest.Grader
	if req.Backtest {
		period := req.Period
		if period == 0 {
			period = o.backtest.Period
		}
		if period < 1 || period > backtest.MaxPeriod {
			return nil, errors.NewValidationError("period", period, "must be between 1 and 30")
		}
		out.Period = period
		out.Iterations = req.Iterations
		if out.Iterations <= 0 {
			out.Iterations = Iterations(len(symbols), o.backtest.UnitBudget, o.backtest.MaxIterations)
		}
		grader = backtest.NewGrader(period)
	}

	units := BuildUnits(req.Mode, symbols, o.screener, req.UseCache, req.Backtest, out.Period, out.Iterations)
	out.Units = len(units)

	counters := &Counters{}
	acc := NewAccumulator(AccumulatorOptions{
		Total:        len(units),
		Counters:     counters,
		Grader:       grader,
		Progress:     req.Progress,
		Flush:        req.Flush,
		FlushEvery:   o.backtest.FlushEvery,
		StallTimeout: o.screener.DrainTimeout,
		Logger:       logger,
	})

	if len(units) == 0 {
		out.Tables = acc.Tables()
		o.finish(out, grader, logger)
		return out, nil
	}

	out.Workers = PoolSize(len(units), o.cpus, o.screener.SiblingScans, req.UseCache)
	shared := screening.Shared{Tally: counters, Source: o.source}
	pool := NewPool(out.Workers, len(units), o.capability, shared, o.metrics, logger)

	logger.Info().
		Str("mode", out.Mode).
		Bool("backtest", req.Backtest).
		Int("stocks", len(symbols)).
		Int("units", len(units)).
		Int("workers", out.Workers).
		Msg("Starting scan")

	pool.Start(ctx)
	for _, u := range units {
		if err := pool.Submit(u); err != nil {
			break
		}
	}
	pool.Close()

	var fatal error
	cancelled, err := acc.Drain(ctx, pool.Results())
	switch {
	case errors.Is(err, errors.ErrNotAuthenticated):
		fatal = err
		out.Aborted = true
		logger.Error().Err(err).Msg("Provider rejected the session, stopping run")
	case err != nil:
		out.Stalled = true
		logger.Error().Err(err).Msg("Result drain stalled")
	}
	out.Cancelled = cancelled

	if err := pool.Stop(o.screener.DrainTimeout); err != nil {
		logger.Warn().Err(err).Msg("Workers did not exit in time")
	}
	out.Residual = pool.Discard()

	out.Tables = acc.Tables()
	out.Failed = acc.Failed()
	out.Processed = counters.Processed()
	out.Matched = counters.Matched()
	o.finish(out, grader, logger)
	return out, fatal
}

// uniqueSymbols drops repeated symbols, keeping first-seen order.
func uniqueSymbols(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func (o *Orchestrator) finish(out *Outcome, grader *backtest.Grader, logger zerolog.Logger) {
	if grader != nil {
		summary, err := grader.Finish()
		if err != nil {
			logger.Error().Err(err).Msg("Backtest summary failed")
		}
		out.Summary = summary
		out.Ledger = grader.Rows()
	}
	out.Duration = time.Since(out.StartedAt)

	kind, outcome := "scan", "completed"
	if out.Backtest {
		kind = "backtest"
	}
	switch {
	case out.Cancelled:
		outcome = "cancelled"
	case out.Aborted:
		outcome = "aborted"
	case out.Stalled:
		outcome = "stalled"
	}
	o.metrics.runFinished(kind, outcome, out.Duration.Seconds())

	logging.LogScanSummary(logger, logging.ScanSummary{
		Mode:      out.Mode,
		Backtest:  out.Backtest,
		Units:     out.Units,
		Processed: out.Processed,
		Matched:   out.Matched,
		Failed:    out.Failed,
		Cancelled: out.Cancelled,
		Stalled:   out.Stalled,
		Duration:  out.Duration,
	})
}
