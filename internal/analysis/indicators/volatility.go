package indicators

import (
	"github.com/markcheno/go-talib"

	"nse-screener/internal/models"
)

// ATR returns the Average True Range series.
func ATR(candles []models.Candle, period int) ([]float64, error) {
	if period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(candles) <= period {
		return nil, ErrInsufficientData
	}
	return talib.Atr(models.Highs(candles), models.Lows(candles), models.Closes(candles), period), nil
}

// Spread is the high-low range of a candle.
func Spread(c models.Candle) float64 {
	return c.High - c.Low
}

// IsNarrowRange reports whether the last candle has the smallest spread of
// the last n candles (NR4, NR7 and so on).
func IsNarrowRange(candles []models.Candle, n int) bool {
	if n < 2 || len(candles) < n {
		return false
	}
	window := tail(candles, n)
	last := Spread(window[len(window)-1])
	for _, c := range window[:len(window)-1] {
		if Spread(c) <= last {
			return false
		}
	}
	return true
}
