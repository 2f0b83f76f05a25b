// Package models provides domain models shared by the screener packages.
package models

import (
	"time"
)

// Exchange represents a stock exchange.
type Exchange string

const (
	NSE Exchange = "NSE"
	BSE Exchange = "BSE"
)

// Candle represents OHLCV data for a time period.
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}

// Instrument represents a tradeable instrument.
type Instrument struct {
	Token     uint32
	Symbol    string
	Name      string
	Exchange  Exchange
	Segment   string
	LotSize   int
	TickSize  float64
	InstrType string
}

// IsEquity reports whether the instrument is a cash-segment equity.
func (i Instrument) IsEquity() bool {
	return i.InstrType == "EQ" && (i.Segment == string(i.Exchange) || i.Segment == "")
}

func pluck(candles []Candle, field func(Candle) float64) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = field(c)
	}
	return out
}

// Closes extracts closing prices.
func Closes(candles []Candle) []float64 {
	return pluck(candles, func(c Candle) float64 { return c.Close })
}

// Highs extracts high prices.
func Highs(candles []Candle) []float64 {
	return pluck(candles, func(c Candle) float64 { return c.High })
}

// Lows extracts low prices.
func Lows(candles []Candle) []float64 {
	return pluck(candles, func(c Candle) float64 { return c.Low })
}
