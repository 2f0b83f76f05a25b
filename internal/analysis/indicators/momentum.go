package indicators

import (
	"fmt"

	"github.com/markcheno/go-talib"

	"nse-screener/internal/models"
)

// RSI is Wilder's Relative Strength Index over closing prices.
type RSI struct {
	period int
}

// NewRSI creates a new RSI indicator.
func NewRSI(period int) *RSI {
	return &RSI{period: period}
}

func (r *RSI) Name() string { return fmt.Sprintf("RSI_%d", r.period) }
func (r *RSI) Period() int  { return r.period }

// Calculate returns one value per candle. Values before the first full
// window are zero; a window without any price change reads 50.
func (r *RSI) Calculate(candles []models.Candle) ([]float64, error) {
	p := r.period
	if p <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(candles) <= p {
		return nil, ErrInsufficientData
	}

	closes := models.Closes(candles)
	out := make([]float64, len(closes))
	var up, down float64
	for i := 1; i < len(closes); i++ {
		gain, loss := splitChange(closes[i] - closes[i-1])
		switch {
		case i < p:
			up += gain
			down += loss
			continue
		case i == p:
			up = (up + gain) / float64(p)
			down = (down + loss) / float64(p)
		default:
			up = (up*float64(p-1) + gain) / float64(p)
			down = (down*float64(p-1) + loss) / float64(p)
		}
		out[i] = relativeStrength(up, down)
	}
	return out, nil
}

func splitChange(change float64) (gain, loss float64) {
	if change > 0 {
		return change, 0
	}
	return 0, -change
}

func relativeStrength(up, down float64) float64 {
	switch {
	case down == 0 && up == 0:
		return 50
	case down == 0:
		return 100
	}
	return 100 - 100/(1+up/down)
}

// CCI is the Commodity Channel Index over the typical price.
type CCI struct {
	period int
}

// NewCCI creates a new CCI indicator.
func NewCCI(period int) *CCI {
	return &CCI{period: period}
}

func (c *CCI) Name() string { return fmt.Sprintf("CCI_%d", c.period) }
func (c *CCI) Period() int  { return c.period }

// Calculate returns one value per candle, zero before the first full window
// and wherever the window has no deviation.
func (c *CCI) Calculate(candles []models.Candle) ([]float64, error) {
	if c.period < 2 {
		return nil, ErrInvalidPeriod
	}
	if len(candles) < c.period {
		return nil, ErrInsufficientData
	}
	return talib.Cci(models.Highs(candles), models.Lows(candles), models.Closes(candles), c.period), nil
}
