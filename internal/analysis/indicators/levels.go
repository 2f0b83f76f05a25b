package indicators

import (
	"math"

	"nse-screener/internal/models"
)

// TradingDaysPerYear approximates one year of daily candles.
const TradingDaysPerYear = 248

// HighLow returns the highest high and lowest low over the last n candles.
func HighLow(candles []models.Candle, n int) (high, low float64) {
	window := tail(candles, n)
	if len(window) == 0 {
		return 0, 0
	}
	high, low = window[0].High, window[0].Low
	for _, c := range window[1:] {
		high = math.Max(high, c.High)
		low = math.Min(low, c.Low)
	}
	return high, low
}

// RangePercent is the spread of closing prices over the last n candles as a
// percentage of the highest close.
func RangePercent(candles []models.Candle, n int) float64 {
	window := tail(candles, n)
	if len(window) == 0 {
		return 0
	}
	hi, lo := window[0].Close, window[0].Close
	for _, c := range window[1:] {
		hi = math.Max(hi, c.Close)
		lo = math.Min(lo, c.Close)
	}
	if hi == 0 {
		return 0
	}
	return (hi - lo) * 100 / hi
}

// BreakoutLevel returns the resistance formed by the highest close of the n
// candles preceding the last one, along with the lowest close of that window.
func BreakoutLevel(candles []models.Candle, n int) (resistance, support float64, err error) {
	if n <= 0 {
		return 0, 0, ErrInvalidPeriod
	}
	if len(candles) < n+1 {
		return 0, 0, ErrInsufficientData
	}
	window := candles[len(candles)-n-1 : len(candles)-1]
	resistance, support = window[0].Close, window[0].Close
	for _, c := range window[1:] {
		resistance = math.Max(resistance, c.Close)
		support = math.Min(support, c.Close)
	}
	return resistance, support, nil
}

// PercentChange returns the change of the last close against the previous one.
func PercentChange(candles []models.Candle) float64 {
	n := len(candles)
	if n < 2 || candles[n-2].Close == 0 {
		return 0
	}
	return (candles[n-1].Close - candles[n-2].Close) * 100 / candles[n-2].Close
}
