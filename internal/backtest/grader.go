package backtest

import (
	"sync"

	"nse-screener/internal/errors"
	"nse-screener/internal/screening"
)

// State is the lifecycle stage of a Grader.
type State int

const (
	Accumulating State = iota
	Summarizing
	Done
)

func (s State) String() string {
	switch s {
	case Accumulating:
		return "accumulating"
	case Summarizing:
		return "summarizing"
	case Done:
		return "done"
	}
	return "unknown"
}

// Grade computes the ledger row of one verdict. It is a pure function of the
// verdict and the period: a horizon is graded only when it does not exceed
// period and the verdict's candles reach that far past the base date.
func Grade(v *screening.Verdict, period int) (Row, error) {
	base := v.BaseIndex()
	if base < 0 || base >= len(v.Candles) {
		return Row{}, errors.NewDataError("candles", v.Symbol, "base date outside history", errors.ErrInsufficientData)
	}
	baseClose := v.Candles[base].Close
	if baseClose <= 0 {
		return Row{}, errors.NewDataError("candles", v.Symbol, "non-positive base close", errors.ErrInsufficientData)
	}

	row := Row{
		Stock:    v.Symbol,
		BaseDate: v.Candles[base].Timestamp,
		Volume:   v.Save[screening.ColVolume],
		Trend:    v.Save[screening.ColTrend],
		MASignal: v.Save[screening.ColMASignal],
	}
	for i, h := range Horizons {
		if h > period || base+h >= len(v.Candles) {
			continue
		}
		change := (v.Candles[base+h].Close - baseClose) * 100 / baseClose
		up := change >= 0
		if v.Bearish {
			up = !up
		}
		tag := TagFail
		if up {
			tag = TagGreen
		}
		row.Cells[i] = Cell{Change: change, Tag: tag}
	}
	return row, nil
}

// Grader accumulates graded verdicts of one backtest run and produces the
// accuracy summary once every replica has been drained.
type Grader struct {
	mu      sync.Mutex
	period  int
	state   State
	ledger  *Ledger
	summary *Summary
}

// NewGrader creates a grader for the given backtest period. Periods beyond
// the longest horizon are capped.
func NewGrader(period int) *Grader {
	if period > MaxPeriod {
		period = MaxPeriod
	}
	return &Grader{
		period: period,
		state:  Accumulating,
		ledger: NewLedger(),
	}
}

// Period returns the graded period.
func (g *Grader) Period() int {
	return g.period
}

// State returns the current state.
func (g *Grader) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Add grades v into the ledger.
func (g *Grader) Add(v *screening.Verdict) (Row, error) {
	row, err := Grade(v, g.period)
	if err != nil {
		return Row{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != Accumulating {
		return Row{}, errors.Wrapf(errors.ErrGraderState, "add in state %s", g.state)
	}
	g.ledger.Put(row)
	return row, nil
}

// Interim summarizes the rows graded so far without leaving Accumulating.
func (g *Grader) Interim() *Summary {
	g.mu.Lock()
	rows := g.ledger.Rows()
	g.mu.Unlock()
	return Summarize(rows, g.period)
}

// Finish closes the ledger and builds the final summary. Calling it again
// returns the same summary.
func (g *Grader) Finish() (*Summary, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.state {
	case Done:
		return g.summary, nil
	case Summarizing:
		return nil, errors.Wrap(errors.ErrGraderState, "summary already in progress")
	}

	g.state = Summarizing
	g.summary = Summarize(g.ledger.Rows(), g.period)
	g.state = Done
	return g.summary, nil
}

// Rows returns the ledger rows.
func (g *Grader) Rows() []Row {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ledger.Rows()
}
