package patterns

import (
	"testing"
	"time"

	"nse-screener/internal/analysis"
	"nse-screener/internal/models"
)

func candle(o, h, l, c float64) models.Candle {
	return models.Candle{Timestamp: time.Now(), Open: o, High: h, Low: l, Close: c, Volume: 1000}
}

func TestLatestPatterns(t *testing.T) {
	d := NewCandlestickDetector()

	tests := []struct {
		name      string
		candles   []models.Candle
		want      string
		direction analysis.PatternDirection
	}{
		{
			name: "bullish engulfing",
			candles: []models.Candle{
				candle(100, 101, 99, 100.5),
				candle(100, 101, 99, 100.2),
				candle(102, 102.5, 99.5, 100),
				candle(99.5, 103.5, 99, 103),
			},
			want:      "Bullish Engulfing",
			direction: analysis.PatternBullish,
		},
		{
			name: "hammer after decline",
			candles: []models.Candle{
				candle(110, 111, 108, 109),
				candle(108, 109, 106, 107),
				candle(106, 107, 104, 105),
				candle(103, 104.1, 98, 104),
			},
			want:      "Hammer",
			direction: analysis.PatternBullish,
		},
		{
			name: "inside bar",
			candles: []models.Candle{
				candle(100, 101, 99, 100),
				candle(100, 110, 90, 105),
				candle(104, 108, 95, 102),
			},
			want:      "Inside Bar",
			direction: analysis.PatternNeutral,
		},
		{
			name: "doji",
			candles: []models.Candle{
				candle(100, 105, 99, 104),
				candle(104, 106, 95, 96),
				candle(100, 107, 94, 100.1),
			},
			want:      "Doji",
			direction: analysis.PatternNeutral,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := d.Latest(tt.candles)
			if p == nil {
				t.Fatalf("expected %s, got none", tt.want)
			}
			if p.Name != tt.want || p.Direction != tt.direction {
				t.Errorf("got %s/%s, want %s/%s", p.Name, p.Direction, tt.want, tt.direction)
			}
			if p.EndIndex != len(tt.candles)-1 {
				t.Errorf("EndIndex = %d", p.EndIndex)
			}
		})
	}
}

func TestLatestNeedsThreeCandles(t *testing.T) {
	d := NewCandlestickDetector()
	if p := d.Latest([]models.Candle{candle(1, 2, 0.5, 1.5)}); p != nil {
		t.Errorf("expected nil, got %+v", p)
	}
}

func TestDetectScansEveryIndex(t *testing.T) {
	d := NewCandlestickDetector()
	candles := []models.Candle{
		candle(100, 110, 90, 105),
		candle(104, 108, 95, 102),
		candle(102, 107, 96, 103),
	}
	found, err := d.Detect(candles)
	if err != nil {
		t.Fatal(err)
	}
	if len(found) < 2 {
		t.Fatalf("expected inside bars at index 1 and 2, got %+v", found)
	}
}
