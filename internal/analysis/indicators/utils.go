package indicators

import (
	"errors"

	"nse-screener/internal/models"
)

var (
	ErrInsufficientData = errors.New("insufficient data for calculation")
	ErrInvalidPeriod    = errors.New("invalid period")
)

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

// Last returns the final value of an indicator series, or 0 when empty.
func Last(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return values[len(values)-1]
}

// tail returns at most the last n candles.
func tail(candles []models.Candle, n int) []models.Candle {
	if n >= len(candles) {
		return candles
	}
	return candles[len(candles)-n:]
}
