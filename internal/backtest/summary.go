package backtest

import (
	"fmt"
	"math"
	"sort"

	"github.com/fatih/color"

	"nse-screener/internal/screening"
)

// Counts tallies the graded outcomes of one summary cell.
type Counts struct {
	Green int
	Fail  int
}

// Total returns the number of graded outcomes.
func (c Counts) Total() int {
	return c.Green + c.Fail
}

// Percent returns the share of green outcomes rounded to two decimals. It
// reports false when nothing was graded.
func (c Counts) Percent() (float64, bool) {
	total := c.Total()
	if total == 0 {
		return 0, false
	}
	return math.Round(float64(c.Green)*100/float64(total)*100) / 100, true
}

func (c *Counts) add(o Counts) {
	c.Green += o.Green
	c.Fail += o.Fail
}

// FormatCell renders a summary cell as "NN.NN% of (total)", or "-" when
// nothing was graded.
func FormatCell(c Counts) string {
	pct, ok := c.Percent()
	if !ok {
		return "-"
	}
	return fmt.Sprintf("%.2f%% of (%d)", pct, c.Total())
}

// Strength buckets an accuracy percentage for display.
type Strength int

const (
	Weak Strength = iota
	Moderate
	Strong
)

// StrengthOf returns the display bucket of pct.
func StrengthOf(pct float64) Strength {
	switch {
	case pct >= 80:
		return Strong
	case pct >= 60:
		return Moderate
	}
	return Weak
}

func (s Strength) String() string {
	switch s {
	case Strong:
		return "strong"
	case Moderate:
		return "moderate"
	}
	return "weak"
}

func (s Strength) paint(text string) string {
	switch s {
	case Strong:
		return color.GreenString(text)
	case Moderate:
		return color.YellowString(text)
	}
	return color.RedString(text)
}

// SummaryRow is the accuracy of one stock, or of every stock pooled.
type SummaryRow struct {
	Stock   string
	Cells   [len(Horizons)]Counts
	Overall Counts
}

func (r *SummaryRow) add(row Row) {
	for i, c := range row.Cells {
		switch c.Tag {
		case TagGreen:
			r.Cells[i].Green++
			r.Overall.Green++
		case TagFail:
			r.Cells[i].Fail++
			r.Overall.Fail++
		}
	}
}

// Summary is the accuracy table derived from a ledger.
type Summary struct {
	Period int
	Rows   []SummaryRow // sorted by stock
	Total  SummaryRow
}

// Summarize groups rows by stock and counts green and fail tags per
// horizon, pooling every horizon into Overall and every stock into Total.
func Summarize(rows []Row, period int) *Summary {
	byStock := make(map[string]*SummaryRow)
	for _, row := range rows {
		sr, ok := byStock[row.Stock]
		if !ok {
			sr = &SummaryRow{Stock: row.Stock}
			byStock[row.Stock] = sr
		}
		sr.add(row)
	}

	s := &Summary{
		Period: period,
		Rows:   make([]SummaryRow, 0, len(byStock)),
		Total:  SummaryRow{Stock: SummaryRowName},
	}
	for _, sr := range byStock {
		s.Rows = append(s.Rows, *sr)
		for i := range sr.Cells {
			s.Total.Cells[i].add(sr.Cells[i])
		}
		s.Total.Overall.add(sr.Overall)
	}
	sort.Slice(s.Rows, func(i, j int) bool { return s.Rows[i].Stock < s.Rows[j].Stock })
	return s
}

// Columns returns the summary column order: horizons beyond the period are
// left out.
func (s *Summary) Columns() []string {
	cols := []string{ColStock}
	for _, h := range Horizons {
		if h <= s.Period {
			cols = append(cols, HorizonColumn(h))
		}
	}
	return append(cols, ColOverall)
}

// Save renders the summary, SUMMARY row last, as plain records.
func (s *Summary) Save() []screening.Record {
	return s.records(false)
}

// Display renders the summary with cells colored by strength.
func (s *Summary) Display() []screening.Record {
	return s.records(true)
}

func (s *Summary) records(colored bool) []screening.Record {
	out := make([]screening.Record, 0, len(s.Rows)+1)
	for _, r := range s.Rows {
		out = append(out, s.record(r, colored))
	}
	return append(out, s.record(s.Total, colored))
}

func (s *Summary) record(r SummaryRow, colored bool) screening.Record {
	cell := func(c Counts) string {
		text := FormatCell(c)
		if pct, ok := c.Percent(); ok && colored {
			return StrengthOf(pct).paint(text)
		}
		return text
	}

	rec := screening.Record{ColStock: r.Stock, ColOverall: cell(r.Overall)}
	for i, h := range Horizons {
		if h <= s.Period {
			rec[HorizonColumn(h)] = cell(r.Cells[i])
		}
	}
	return rec
}

// Row returns the summary row of stock, or of SUMMARY.
func (s *Summary) Row(stock string) (SummaryRow, bool) {
	if stock == SummaryRowName {
		return s.Total, true
	}
	i := sort.Search(len(s.Rows), func(i int) bool { return s.Rows[i].Stock >= stock })
	if i < len(s.Rows) && s.Rows[i].Stock == stock {
		return s.Rows[i], true
	}
	return SummaryRow{}, false
}

// HorizonIndex returns the position of h in Horizons, or -1.
func HorizonIndex(h int) int {
	for i, v := range Horizons {
		if v == h {
			return i
		}
	}
	return -1
}
