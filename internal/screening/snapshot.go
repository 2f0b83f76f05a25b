package screening

import (
	"nse-screener/internal/analysis"
	"nse-screener/internal/analysis/indicators"
	"nse-screener/internal/analysis/patterns"
	"nse-screener/internal/models"
)

// Moving average signals.
const (
	SignalGoldenCross = "Golden Crossover"
	SignalDeathCross  = "Death Crossover"
	SignalBullish     = "Bullish"
	SignalBearish     = "Bearish"
	SignalNeutral     = "Neutral"
)

// Snapshot is the attribute set computed for one stock on its analysed day.
type Snapshot struct {
	Candles  []models.Candle
	Lookback int

	LTP    float64
	Change float64
	High52 float64
	Low52  float64

	RangePercent  float64
	Consolidating bool
	Resistance    float64
	Support       float64
	Breakout      bool

	AvgVolume   float64
	VolumeRatio float64

	SMA50    float64
	SMA200   float64 // zero when history is shorter than 200 candles
	MASignal string

	RSI   float64
	CCI   float64
	Trend string

	Pattern *analysis.Pattern
}

// NewSnapshot computes the screening attributes of candles, whose last
// element is the analysed day.
func NewSnapshot(candles []models.Candle, lookback int, consolidationPercent float64, detector *patterns.CandlestickDetector) (*Snapshot, error) {
	if lookback < 2 {
		return nil, indicators.ErrInvalidPeriod
	}
	if len(candles) < lookback+1 || len(candles) < 51 {
		return nil, indicators.ErrInsufficientData
	}

	s := &Snapshot{
		Candles:  candles,
		Lookback: lookback,
		LTP:      candles[len(candles)-1].Close,
		Change:   indicators.PercentChange(candles),
	}
	s.High52, s.Low52 = indicators.HighLow(candles, indicators.TradingDaysPerYear)

	s.RangePercent = indicators.RangePercent(candles, lookback)
	s.Consolidating = s.RangePercent <= consolidationPercent

	var err error
	s.Resistance, s.Support, err = indicators.BreakoutLevel(candles, lookback)
	if err != nil {
		return nil, err
	}
	s.Breakout = s.LTP > s.Resistance

	s.AvgVolume = indicators.AverageVolume(candles, 20)
	s.VolumeRatio = indicators.VolumeRatio(candles, 20)

	closes := models.Closes(candles)
	sma50 := indicators.CalculateSMA(closes, 50)
	s.SMA50 = indicators.Last(sma50)
	var sma200 []float64
	if len(closes) >= 201 {
		sma200 = indicators.CalculateSMA(closes, 200)
		s.SMA200 = indicators.Last(sma200)
	}
	s.MASignal = maSignal(s.LTP, sma50, sma200)

	rsi, err := indicators.NewRSI(14).Calculate(candles)
	if err != nil {
		return nil, err
	}
	s.RSI = indicators.Last(rsi)

	cci, err := indicators.NewCCI(20).Calculate(candles)
	if err != nil {
		return nil, err
	}
	s.CCI = indicators.Last(cci)

	s.Trend = indicators.Trend(candles, lookback)
	s.Pattern = detector.Latest(candles)

	return s, nil
}

func maSignal(ltp float64, sma50, sma200 []float64) string {
	fast := indicators.Last(sma50)
	if sma200 == nil {
		switch {
		case ltp > fast:
			return SignalBullish
		case ltp < fast:
			return SignalBearish
		}
		return SignalNeutral
	}

	slow := indicators.Last(sma200)
	switch {
	case indicators.CrossedAbove(sma50, sma200):
		return SignalGoldenCross
	case indicators.CrossedBelow(sma50, sma200):
		return SignalDeathCross
	case ltp > fast && fast > slow:
		return SignalBullish
	case ltp < fast && fast < slow:
		return SignalBearish
	}
	return SignalNeutral
}
