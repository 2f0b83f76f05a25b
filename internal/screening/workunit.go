// Package screening holds the per-stock analysis: the work unit handed to a
// pool worker, the scan modes, and the Analyzer that turns one stock's
// price history into a verdict.
package screening

import (
	"context"

	"nse-screener/internal/config"
	"nse-screener/internal/models"
)

// WorkUnit is one (stock, historical offset) job. It is built before
// dispatch and never modified afterwards.
type WorkUnit struct {
	Symbol   string
	Mode     Mode
	Lookback int // candles in the consolidation and breakout window
	Total    int // universe size, for progress reporting
	Config   config.ScreenerConfig
	UseCache bool
	// Offset is how many candles before the latest one the analysis treats
	// as "today". Zero is a live scan.
	Offset int
}

// Record is one table row keyed by column name.
type Record map[string]string

// Verdict is a matched stock. A nil *Verdict means no match.
type Verdict struct {
	Display Record // colorized values for the terminal
	Save    Record // plain values for persistence and grading
	// Candles is the full fetched series, including any candles after the
	// analysed day, so forward returns can be graded.
	Candles []models.Candle
	Symbol  string
	Offset  int
	Bearish bool
}

// BaseIndex is the index in Candles of the day the analysis treated as today.
func (v *Verdict) BaseIndex() int {
	return len(v.Candles) - 1 - v.Offset
}

// Tally receives the per-unit counter increments.
type Tally interface {
	AddProcessed()
	AddMatched()
}

// PriceSource returns the daily history of a stock, oldest first. It is
// shared by every worker of a run and must be safe for concurrent use.
type PriceSource interface {
	History(ctx context.Context, symbol string, useCache bool) ([]models.Candle, error)
}

// Shared bundles the run-wide resources every analysis call uses.
type Shared struct {
	Tally  Tally
	Source PriceSource
}

// Column names of the live screening table.
const (
	ColStock         = "Stock"
	ColConsolidation = "Consolidation"
	ColBreakout      = "Breakout"
	ColMASignal      = "MA-Signal"
	ColVolume        = "Volume"
	ColLTP           = "LTP"
	Col52WkHigh      = "52Wk-H"
	Col52WkLow       = "52Wk-L"
	ColChange        = "%Chng"
	ColRSI           = "RSI"
	ColTrend         = "Trend"
	ColPattern       = "Pattern"
	ColCCI           = "CCI"
)

// ScreenColumns is the column order of the live screening table.
var ScreenColumns = []string{
	ColStock, ColConsolidation, ColBreakout, ColMASignal, ColVolume, ColLTP,
	Col52WkHigh, Col52WkLow, ColChange, ColRSI, ColTrend, ColPattern, ColCCI,
}
