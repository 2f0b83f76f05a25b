// Package scan runs a screening or backtest pass over a stock universe: it
// fans work units out to a worker pool, drains the verdicts into result
// tables and, for backtests, grades them.
package scan

import "sync/atomic"

// Counters are the run-wide processed and matched tallies. Every worker
// shares one instance; each increment is a single atomic add.
type Counters struct {
	processed atomic.Int64
	matched   atomic.Int64
}

// AddProcessed records one analysed unit.
func (c *Counters) AddProcessed() {
	c.processed.Add(1)
}

// AddMatched records one non-nil verdict.
func (c *Counters) AddMatched() {
	c.matched.Add(1)
}

// Processed returns the processed count.
func (c *Counters) Processed() int64 {
	return c.processed.Load()
}

// Matched returns the matched count.
func (c *Counters) Matched() int64 {
	return c.matched.Load()
}
