package indicators

import (
	"github.com/markcheno/go-talib"

	"nse-screener/internal/models"
)

// Trend labels derived from the regression angle of recent closes.
const (
	TrendStrongUp   = "Strong Up"
	TrendWeakUp     = "Weak Up"
	TrendSideways   = "Sideways"
	TrendWeakDown   = "Weak Down"
	TrendStrongDown = "Strong Down"
	TrendUnknown    = "Unknown"
)

// TrendAngle fits a least-squares line to the last n closes, rebased so the
// first close is 100, and returns its angle in degrees.
func TrendAngle(candles []models.Candle, n int) (float64, error) {
	if n < 2 {
		return 0, ErrInvalidPeriod
	}
	if len(candles) < n {
		return 0, ErrInsufficientData
	}
	window := tail(candles, n)
	base := window[0].Close
	if base == 0 {
		return 0, ErrInsufficientData
	}
	rebased := make([]float64, len(window))
	for i, c := range window {
		rebased[i] = c.Close * 100 / base
	}
	return Last(talib.LinearRegAngle(rebased, n)), nil
}

// TrendLabel maps a regression angle onto a trend label.
func TrendLabel(angle float64) string {
	switch {
	case angle >= 60:
		return TrendStrongUp
	case angle >= 30:
		return TrendWeakUp
	case angle > -30:
		return TrendSideways
	case angle > -60:
		return TrendWeakDown
	default:
		return TrendStrongDown
	}
}

// Trend returns the trend label for the last n closes.
func Trend(candles []models.Candle, n int) string {
	angle, err := TrendAngle(candles, n)
	if err != nil {
		return TrendUnknown
	}
	return TrendLabel(angle)
}

// Trendline is a regression line fitted to recent lows.
type Trendline struct {
	Slope float64 // price units per candle
	Value float64 // line value at the last candle
}

// SupportTrendline fits a line through the lows of the last n candles.
func SupportTrendline(candles []models.Candle, n int) (Trendline, error) {
	if n < 3 {
		return Trendline{}, ErrInvalidPeriod
	}
	if len(candles) < n {
		return Trendline{}, ErrInsufficientData
	}
	lows := models.Lows(tail(candles, n))
	return Trendline{
		Slope: Last(talib.LinearRegSlope(lows, n)),
		Value: Last(talib.LinearReg(lows, n)),
	}, nil
}
