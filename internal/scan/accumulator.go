package scan

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"nse-screener/internal/backtest"
	"nse-screener/internal/errors"
	"nse-screener/internal/screening"
)

// Tables are the display and save tables of a run. Rows are only ever added
// in pairs, so both tables always have the same length and row i of one
// corresponds to row i of the other.
type Tables struct {
	Columns []string
	Display []screening.Record
	Save    []screening.Record
}

// NewTables creates empty tables with the given column order.
func NewTables(columns []string) *Tables {
	return &Tables{Columns: columns}
}

// Append adds one row to both tables.
func (t *Tables) Append(display, save screening.Record) {
	t.Display = append(t.Display, display)
	t.Save = append(t.Save, save)
}

// Len returns the number of rows.
func (t *Tables) Len() int {
	return len(t.Save)
}

// Progress is the status reported after every drained result.
type Progress struct {
	Drained   int
	Total     int
	Processed int64
	Found     int64
}

// ProgressFunc receives progress updates on the draining goroutine; it must
// return quickly.
type ProgressFunc func(Progress)

// FlushFunc receives an interim backtest summary.
type FlushFunc func(*backtest.Summary)

// Accumulator drains a run's result queue into its tables and, in backtest
// mode, grades every verdict.
type Accumulator struct {
	total      int
	counters   *Counters
	tables     *Tables
	grader     *backtest.Grader
	progress   ProgressFunc
	flush      FlushFunc
	flushEvery int
	stall      time.Duration
	logger     zerolog.Logger

	drained int
	graded  int
	failed  int
}

// AccumulatorOptions configures an Accumulator.
type AccumulatorOptions struct {
	Total    int
	Counters *Counters
	// Grader switches the accumulator to backtest mode when set.
	Grader     *backtest.Grader
	Progress   ProgressFunc
	Flush      FlushFunc
	FlushEvery int
	// StallTimeout bounds the wait for any single result; zero waits forever.
	StallTimeout time.Duration
	Logger       zerolog.Logger
}

// NewAccumulator creates an accumulator for one run.
func NewAccumulator(opts AccumulatorOptions) *Accumulator {
	columns := screening.ScreenColumns
	if opts.Grader != nil {
		columns = backtest.LedgerColumns()
	}
	counters := opts.Counters
	if counters == nil {
		counters = &Counters{}
	}
	return &Accumulator{
		total:      opts.Total,
		counters:   counters,
		tables:     NewTables(columns),
		grader:     opts.Grader,
		progress:   opts.Progress,
		flush:      opts.Flush,
		flushEvery: opts.FlushEvery,
		stall:      opts.StallTimeout,
		logger:     opts.Logger,
	}
}

// Drain reads exactly Total results. It stops early, without error, when ctx
// is cancelled, and returns ErrDrainStalled when the queue closes short or
// no result arrives within the stall timeout. A result failing with
// ErrNotAuthenticated ends the drain and its error is returned as is.
func (a *Accumulator) Drain(ctx context.Context, results <-chan Result) (cancelled bool, err error) {
	var timer *time.Timer
	var timeout <-chan time.Time
	if a.stall > 0 {
		timer = time.NewTimer(a.stall)
		defer timer.Stop()
		timeout = timer.C
	}

	for a.drained < a.total {
		if ctx.Err() != nil {
			return true, nil
		}
		select {
		case <-ctx.Done():
			return true, nil
		case res, ok := <-results:
			if !ok {
				if ctx.Err() != nil {
					return true, nil
				}
				return false, errors.Wrapf(errors.ErrDrainStalled, "queue closed after %d of %d results", a.drained, a.total)
			}
			a.consume(res)
			if res.Err != nil && errors.Is(res.Err, errors.ErrNotAuthenticated) {
				return false, res.Err
			}
			if timer != nil {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(a.stall)
			}
		case <-timeout:
			return false, errors.Wrapf(errors.ErrDrainStalled, "no result for %s after %d of %d", a.stall, a.drained, a.total)
		}
	}
	return false, nil
}

func (a *Accumulator) consume(res Result) {
	a.drained++
	if res.Err != nil {
		a.failed++
	}

	if v := res.Verdict; v != nil {
		if a.grader == nil {
			a.tables.Append(v.Display, v.Save)
		} else {
			a.grade(v)
		}
	}

	if a.progress != nil {
		a.progress(Progress{
			Drained:   a.drained,
			Total:     a.total,
			Processed: a.counters.Processed(),
			Found:     a.counters.Matched(),
		})
	}
}

func (a *Accumulator) grade(v *screening.Verdict) {
	row, err := a.grader.Add(v)
	if err != nil {
		a.logger.Debug().
			Str("symbol", v.Symbol).
			Int("offset", v.Offset).
			Err(err).
			Msg("Verdict not graded")
		return
	}
	a.tables.Append(row.Display(), row.Save())

	a.graded++
	if a.flush != nil && a.flushEvery > 0 && a.graded%a.flushEvery == 0 {
		a.flush(a.grader.Interim())
	}
}

// Tables returns the accumulated tables.
func (a *Accumulator) Tables() *Tables {
	return a.tables
}

// Drained returns the number of results read so far.
func (a *Accumulator) Drained() int {
	return a.drained
}

// Failed returns the number of results that carried an error.
func (a *Accumulator) Failed() int {
	return a.failed
}
