// Package backtest grades historical verdicts by their forward returns and
// rolls the grades up into per-stock accuracy summaries.
package backtest

import (
	"fmt"
	"time"

	"github.com/fatih/color"

	"nse-screener/internal/screening"
)

// Horizons are the forward periods every verdict is graded over.
var Horizons = [...]int{1, 2, 3, 4, 5, 10, 15, 22, 30}

// MaxPeriod is the longest horizon.
const MaxPeriod = 30

// Column names of the ledger and summary tables.
const (
	ColStock    = "Stock"
	ColBaseDate = "Base-Date"
	ColVolume   = "Volume"
	ColTrend    = "Trend"
	ColMASignal = "MA-Signal"
	ColOverall  = "Overall"

	// SummaryRowName labels the row pooling every stock.
	SummaryRowName = "SUMMARY"

	dateLayout = "2006-01-02"
)

// HorizonColumn names the column of horizon h.
func HorizonColumn(h int) string {
	return fmt.Sprintf("%d-Pd", h)
}

// LedgerColumns is the column order of the backtest table.
func LedgerColumns() []string {
	cols := []string{ColStock, ColBaseDate, ColVolume, ColTrend, ColMASignal}
	for _, h := range Horizons {
		cols = append(cols, HorizonColumn(h))
	}
	return cols
}

// Tag is the grade of one forward return.
type Tag int

const (
	TagNone Tag = iota
	TagGreen
	TagFail
)

func (t Tag) String() string {
	switch t {
	case TagGreen:
		return "GREEN"
	case TagFail:
		return "FAIL"
	}
	return ""
}

// Cell is one graded horizon. A TagNone cell is blank.
type Cell struct {
	Change float64 // percent
	Tag    Tag
}

// Blank reports whether the horizon was not graded.
func (c Cell) Blank() bool {
	return c.Tag == TagNone
}

// Row is one ledger entry: a verdict and its forward returns.
type Row struct {
	Stock    string
	BaseDate time.Time
	Volume   string
	Trend    string
	MASignal string
	Cells    [len(Horizons)]Cell
}

type rowKey struct {
	stock string
	date  string
}

func (r Row) key() rowKey {
	return rowKey{stock: r.Stock, date: r.BaseDate.Format(dateLayout)}
}

// Save renders the row with plain values.
func (r Row) Save() screening.Record {
	rec := r.common()
	for i, h := range Horizons {
		if c := r.Cells[i]; !c.Blank() {
			rec[HorizonColumn(h)] = fmt.Sprintf("%.2f", c.Change)
		}
	}
	return rec
}

// Display renders the row with cells colored by tag.
func (r Row) Display() screening.Record {
	rec := r.common()
	rec[ColStock] = color.New(color.Bold, color.FgCyan).Sprint(r.Stock)
	for i, h := range Horizons {
		c := r.Cells[i]
		if c.Blank() {
			continue
		}
		text := fmt.Sprintf("%.2f%%", c.Change)
		if c.Tag == TagGreen {
			text = color.GreenString(text)
		} else {
			text = color.RedString(text)
		}
		rec[HorizonColumn(h)] = text
	}
	return rec
}

func (r Row) common() screening.Record {
	rec := screening.Record{
		ColStock:    r.Stock,
		ColBaseDate: r.BaseDate.Format(dateLayout),
		ColVolume:   r.Volume,
		ColTrend:    r.Trend,
		ColMASignal: r.MASignal,
	}
	for _, h := range Horizons {
		rec[HorizonColumn(h)] = ""
	}
	return rec
}

// Ledger holds at most one row per (stock, base date), in insertion order.
type Ledger struct {
	rows  []Row
	index map[rowKey]int
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{index: make(map[rowKey]int)}
}

// Put adds r, replacing any row with the same stock and base date. It
// reports whether the row was new.
func (l *Ledger) Put(r Row) bool {
	k := r.key()
	if i, ok := l.index[k]; ok {
		l.rows[i] = r
		return false
	}
	l.index[k] = len(l.rows)
	l.rows = append(l.rows, r)
	return true
}

// Rows returns a copy of the ledger rows.
func (l *Ledger) Rows() []Row {
	out := make([]Row, len(l.rows))
	copy(out, l.rows)
	return out
}

// Len returns the number of rows.
func (l *Ledger) Len() int {
	return len(l.rows)
}
