package screening

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"nse-screener/internal/analysis/indicators"
	"nse-screener/internal/analysis/patterns"
	"nse-screener/internal/errors"
	"nse-screener/internal/logging"
)

// Analyzer runs the per-stock screening pipeline. It is stateless apart from
// its detector and logger and may be shared by every worker.
type Analyzer struct {
	detector *patterns.CandlestickDetector
	logger   zerolog.Logger
}

// NewAnalyzer creates a new Analyzer.
func NewAnalyzer(logger zerolog.Logger) *Analyzer {
	return &Analyzer{
		detector: patterns.NewCandlestickDetector(),
		logger:   logging.WithOperation(logger, "analyze"),
	}
}

// Analyze screens one work unit. It returns a nil verdict when the stock
// does not match or has to be skipped (too little history, data not
// available, price or volume gates); only unexpected failures are returned
// as errors. The processed counter is incremented exactly once per call,
// even if the pipeline panics, and matched once per non-nil verdict.
func (a *Analyzer) Analyze(ctx context.Context, unit WorkUnit, shared Shared) (*Verdict, error) {
	counted := false
	defer func() {
		if !counted {
			shared.Tally.AddProcessed()
		}
	}()

	v, err := a.analyze(ctx, unit, shared.Source)

	counted = true
	shared.Tally.AddProcessed()

	if err != nil {
		if errors.IsRecoverable(err) {
			a.logger.Debug().
				Str("symbol", unit.Symbol).
				Int("offset", unit.Offset).
				Err(err).
				Msg("Stock skipped")
			return nil, nil
		}
		return nil, err
	}
	if v != nil {
		shared.Tally.AddMatched()
	}
	return v, nil
}

func (a *Analyzer) analyze(ctx context.Context, unit WorkUnit, source PriceSource) (*Verdict, error) {
	cfg := unit.Config

	full, err := source.History(ctx, unit.Symbol, unit.UseCache)
	if err != nil {
		if errors.IsRecoverable(err) {
			return nil, err
		}
		// an expired session or a cancelled run is not a per-stock condition
		if errors.Is(err, errors.ErrNotAuthenticated) || errors.Is(err, context.Canceled) ||
			errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return nil, errors.NewDataError("candles", unit.Symbol, "fetch failed", err)
		}
		return nil, errors.NewDataError("candles", unit.Symbol, "fetch failed", fmt.Errorf("%w: %w", errors.ErrDataUnavailable, err))
	}

	end := len(full) - unit.Offset
	if end < cfg.MinCandles || end <= 0 {
		return nil, errors.NewDataError("candles", unit.Symbol, "history too short for offset", errors.ErrInsufficientData)
	}
	window := full[:end]

	lookback := unit.Lookback
	if lookback <= 0 {
		lookback = cfg.DaysToLookback
	}

	snap, err := NewSnapshot(window, lookback, cfg.ConsolidationPercent, a.detector)
	if err != nil {
		if errors.Is(err, indicators.ErrInsufficientData) {
			return nil, errors.NewDataError("candles", unit.Symbol, "history too short for indicators", errors.ErrInsufficientData)
		}
		return nil, err
	}

	if err := gate(snap, cfg.MinLTP, cfg.MaxLTP, cfg.MinVolume); err != nil {
		return nil, errors.NewDataError("gate", unit.Symbol, "excluded", err)
	}

	if !unit.Mode.match(snap, cfg) {
		return nil, nil
	}

	return &Verdict{
		Display: displayRecord(unit.Symbol, snap, cfg.VolumeRatio),
		Save:    saveRecord(unit.Symbol, snap),
		Candles: full,
		Symbol:  unit.Symbol,
		Offset:  unit.Offset,
		Bearish: unit.Mode.Bearish(),
	}, nil
}

// gate applies the universe-level price and liquidity filters.
func gate(s *Snapshot, minLTP, maxLTP float64, minVolume int64) error {
	switch {
	case s.LTP < minLTP:
		return errors.Wrapf(errors.ErrUniverseGate, "ltp %.2f below %.2f", s.LTP, minLTP)
	case maxLTP > 0 && s.LTP > maxLTP:
		return errors.Wrapf(errors.ErrUniverseGate, "ltp %.2f above %.2f", s.LTP, maxLTP)
	case s.AvgVolume < float64(minVolume):
		return errors.Wrapf(errors.ErrUniverseGate, "average volume %.0f below %d", s.AvgVolume, minVolume)
	}
	return nil
}
