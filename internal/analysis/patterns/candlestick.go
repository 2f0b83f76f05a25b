// Package patterns provides candlestick pattern detection.
package patterns

import (
	"math"

	"nse-screener/internal/analysis"
	"nse-screener/internal/models"
)

// CandlestickDetector detects candlestick patterns in price data.
type CandlestickDetector struct {
	dojiThreshold      float64 // body size as a fraction of range for doji
	longBodyThreshold  float64 // body size as a fraction of range for marubozu
	shadowThreshold    float64 // shadow size as a multiple of body for hammer/shooting star
	volumeConfirmRatio float64 // volume multiple of average for confirmation
	rules              []rule
}

// rule matches a pattern that ends at index i and spans span candles.
type rule struct {
	name      string
	direction analysis.PatternDirection
	span      int
	strength  float64
	match     func(d *CandlestickDetector, c []models.Candle, i int) bool
}

// NewCandlestickDetector creates a new candlestick pattern detector.
func NewCandlestickDetector() *CandlestickDetector {
	d := &CandlestickDetector{
		dojiThreshold:      0.1,
		longBodyThreshold:  0.9,
		shadowThreshold:    2.0,
		volumeConfirmRatio: 1.5,
	}
	// Ordered from most to least specific; the first match at an index wins.
	d.rules = []rule{
		{"Morning Star", analysis.PatternBullish, 3, 0.85, (*CandlestickDetector).morningStar},
		{"Evening Star", analysis.PatternBearish, 3, 0.85, (*CandlestickDetector).eveningStar},
		{"Three White Soldiers", analysis.PatternBullish, 3, 0.8, (*CandlestickDetector).threeWhiteSoldiers},
		{"Three Black Crows", analysis.PatternBearish, 3, 0.8, (*CandlestickDetector).threeBlackCrows},
		{"Bullish Engulfing", analysis.PatternBullish, 2, 0.8, (*CandlestickDetector).bullishEngulfing},
		{"Bearish Engulfing", analysis.PatternBearish, 2, 0.8, (*CandlestickDetector).bearishEngulfing},
		{"Inside Bar", analysis.PatternNeutral, 2, 0.5, (*CandlestickDetector).insideBar},
		{"Hammer", analysis.PatternBullish, 1, 0.7, (*CandlestickDetector).hammer},
		{"Shooting Star", analysis.PatternBearish, 1, 0.7, (*CandlestickDetector).shootingStar},
		{"Bullish Marubozu", analysis.PatternBullish, 1, 0.6, (*CandlestickDetector).bullishMarubozu},
		{"Bearish Marubozu", analysis.PatternBearish, 1, 0.6, (*CandlestickDetector).bearishMarubozu},
		{"Doji", analysis.PatternNeutral, 1, 0.5, (*CandlestickDetector).doji},
	}
	return d
}

func (d *CandlestickDetector) Name() string {
	return "CandlestickDetector"
}

// Detect returns the first matching pattern ending at every index.
func (d *CandlestickDetector) Detect(candles []models.Candle) ([]analysis.Pattern, error) {
	if len(candles) < 3 {
		return nil, nil
	}
	avgVolume := averageVolume(candles)

	var patterns []analysis.Pattern
	for i := range candles {
		if p := d.at(candles, i, avgVolume); p != nil {
			patterns = append(patterns, *p)
		}
	}
	return patterns, nil
}

// Latest returns the pattern completed by the most recent candle, if any.
func (d *CandlestickDetector) Latest(candles []models.Candle) *analysis.Pattern {
	if len(candles) < 3 {
		return nil
	}
	return d.at(candles, len(candles)-1, averageVolume(candles))
}

func (d *CandlestickDetector) at(candles []models.Candle, i int, avgVolume float64) *analysis.Pattern {
	for _, r := range d.rules {
		if i < r.span-1 || !r.match(d, candles, i) {
			continue
		}
		confirm := avgVolume > 0 && float64(candles[i].Volume) >= avgVolume*d.volumeConfirmRatio
		strength := r.strength
		if confirm {
			strength = math.Min(1.0, strength*1.2)
		}
		return &analysis.Pattern{
			Name:          r.name,
			Direction:     r.direction,
			StartIndex:    i - r.span + 1,
			EndIndex:      i,
			Strength:      strength,
			VolumeConfirm: confirm,
		}
	}
	return nil
}

func body(c models.Candle) float64        { return math.Abs(c.Close - c.Open) }
func candleRange(c models.Candle) float64 { return c.High - c.Low }
func upperShadow(c models.Candle) float64 { return c.High - math.Max(c.Open, c.Close) }
func lowerShadow(c models.Candle) float64 { return math.Min(c.Open, c.Close) - c.Low }
func isBullish(c models.Candle) bool      { return c.Close > c.Open }
func isBearish(c models.Candle) bool      { return c.Close < c.Open }

func averageVolume(candles []models.Candle) float64 {
	if len(candles) == 0 {
		return 0
	}
	var total int64
	for _, c := range candles {
		total += c.Volume
	}
	return float64(total) / float64(len(candles))
}

// priorTrend reports the direction of the three closes before index i:
// 1 for falling-into, -1 for rising-into, 0 otherwise.
func priorTrend(candles []models.Candle, i int) int {
	if i < 3 {
		return 0
	}
	a, b, c := candles[i-3].Close, candles[i-2].Close, candles[i-1].Close
	switch {
	case c < b && b < a:
		return 1
	case c > b && b > a:
		return -1
	}
	return 0
}

func (d *CandlestickDetector) doji(c []models.Candle, i int) bool {
	rng := candleRange(c[i])
	return rng > 0 && body(c[i])/rng <= d.dojiThreshold
}

func (d *CandlestickDetector) hammer(c []models.Candle, i int) bool {
	b := body(c[i])
	return b > 0 &&
		lowerShadow(c[i]) >= b*d.shadowThreshold &&
		upperShadow(c[i]) <= b*0.5 &&
		priorTrend(c, i) == 1
}

func (d *CandlestickDetector) shootingStar(c []models.Candle, i int) bool {
	b := body(c[i])
	return b > 0 &&
		upperShadow(c[i]) >= b*d.shadowThreshold &&
		lowerShadow(c[i]) <= b*0.5 &&
		priorTrend(c, i) == -1
}

func (d *CandlestickDetector) bullishMarubozu(c []models.Candle, i int) bool {
	rng := candleRange(c[i])
	return rng > 0 && isBullish(c[i]) && body(c[i])/rng >= d.longBodyThreshold
}

func (d *CandlestickDetector) bearishMarubozu(c []models.Candle, i int) bool {
	rng := candleRange(c[i])
	return rng > 0 && isBearish(c[i]) && body(c[i])/rng >= d.longBodyThreshold
}

func (d *CandlestickDetector) bullishEngulfing(c []models.Candle, i int) bool {
	prev, curr := c[i-1], c[i]
	return isBearish(prev) && isBullish(curr) &&
		body(curr) > body(prev) &&
		curr.Open <= prev.Close && curr.Close >= prev.Open
}

func (d *CandlestickDetector) bearishEngulfing(c []models.Candle, i int) bool {
	prev, curr := c[i-1], c[i]
	return isBullish(prev) && isBearish(curr) &&
		body(curr) > body(prev) &&
		curr.Open >= prev.Close && curr.Close <= prev.Open
}

func (d *CandlestickDetector) insideBar(c []models.Candle, i int) bool {
	return IsInsideBar(c[i-1], c[i])
}

func (d *CandlestickDetector) morningStar(c []models.Candle, i int) bool {
	first, star, last := c[i-2], c[i-1], c[i]
	firstBody := body(first)
	return isBearish(first) && isBullish(last) &&
		firstBody > 0 && body(star) < firstBody*0.3 &&
		last.Close > (first.Open+first.Close)/2
}

func (d *CandlestickDetector) eveningStar(c []models.Candle, i int) bool {
	first, star, last := c[i-2], c[i-1], c[i]
	firstBody := body(first)
	return isBullish(first) && isBearish(last) &&
		firstBody > 0 && body(star) < firstBody*0.3 &&
		last.Close < (first.Open+first.Close)/2
}

func (d *CandlestickDetector) threeWhiteSoldiers(c []models.Candle, i int) bool {
	for k := i - 2; k <= i; k++ {
		if !isBullish(c[k]) {
			return false
		}
		if k > i-2 && (c[k].Close <= c[k-1].Close || c[k].Open < c[k-1].Open) {
			return false
		}
	}
	return true
}

func (d *CandlestickDetector) threeBlackCrows(c []models.Candle, i int) bool {
	for k := i - 2; k <= i; k++ {
		if !isBearish(c[k]) {
			return false
		}
		if k > i-2 && (c[k].Close >= c[k-1].Close || c[k].Open > c[k-1].Open) {
			return false
		}
	}
	return true
}

// IsInsideBar reports whether curr trades entirely within prev's range.
func IsInsideBar(prev, curr models.Candle) bool {
	return curr.High < prev.High && curr.Low > prev.Low
}
