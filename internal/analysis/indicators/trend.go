package indicators

import (
	"fmt"

	"nse-screener/internal/analysis"
	"nse-screener/internal/models"
)

var (
	_ analysis.Indicator = (*SMA)(nil)
	_ analysis.Indicator = (*RSI)(nil)
	_ analysis.Indicator = (*CCI)(nil)
)

// SMA is the simple moving average of closing prices.
type SMA struct {
	period int
}

// NewSMA creates a new SMA indicator.
func NewSMA(period int) *SMA {
	return &SMA{period: period}
}

func (s *SMA) Name() string { return fmt.Sprintf("SMA_%d", s.period) }
func (s *SMA) Period() int  { return s.period }

func (s *SMA) Calculate(candles []models.Candle) ([]float64, error) {
	if s.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(candles) < s.period {
		return nil, ErrInsufficientData
	}
	return CalculateSMA(models.Closes(candles), s.period), nil
}

// CalculateSMA calculates a rolling mean over raw values. Values before the
// first full window are zero; nil when there is no full window.
func CalculateSMA(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}

	out := make([]float64, len(values))
	running := sum(values[:period])
	out[period-1] = running / float64(period)
	for i := period; i < len(values); i++ {
		running += values[i] - values[i-period]
		out[i] = running / float64(period)
	}
	return out
}

// CrossedAbove reports whether fast moved from at or below slow on the
// previous bar to above it on the last bar.
func CrossedAbove(fast, slow []float64) bool {
	return crossed(fast, slow, 1)
}

// CrossedBelow is the mirror of CrossedAbove.
func CrossedBelow(fast, slow []float64) bool {
	return crossed(fast, slow, -1)
}

// crossed compares the last two bars of both series; a zero slow value on
// the previous bar means the average was not yet warmed up.
func crossed(fast, slow []float64, dir float64) bool {
	n := len(fast)
	if n < 2 || len(slow) != n || slow[n-2] == 0 {
		return false
	}
	before := (fast[n-2] - slow[n-2]) * dir
	after := (fast[n-1] - slow[n-1]) * dir
	return before <= 0 && after > 0
}
