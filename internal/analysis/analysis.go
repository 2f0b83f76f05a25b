// Package analysis holds the shared vocabulary of the indicator and pattern
// packages.
package analysis

import (
	"nse-screener/internal/models"
)

// Indicator defines the interface for technical indicators.
type Indicator interface {
	Name() string
	Calculate(candles []models.Candle) ([]float64, error)
	Period() int
}

// PatternDetector defines the interface for pattern detection.
type PatternDetector interface {
	Name() string
	Detect(candles []models.Candle) ([]Pattern, error)
}

// Pattern represents a detected candlestick pattern.
type Pattern struct {
	Name          string
	Direction     PatternDirection
	StartIndex    int
	EndIndex      int
	Strength      float64
	VolumeConfirm bool
}

// PatternDirection represents the expected direction of a pattern.
type PatternDirection string

const (
	PatternBullish PatternDirection = "bullish"
	PatternBearish PatternDirection = "bearish"
	PatternNeutral PatternDirection = "neutral"
)
