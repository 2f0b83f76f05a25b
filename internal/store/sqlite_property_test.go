package store

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"nse-screener/internal/models"
)

// dailySeries turns a list of closes into a daily candle series starting at
// the given session.
func dailySeries(start time.Time, closes []float64) []models.Candle {
	out := make([]models.Candle, len(closes))
	prev := closes[0]
	for i, c := range closes {
		c = math.Round(c*100) / 100
		out[i] = models.Candle{
			Timestamp: start.AddDate(0, 0, i),
			Open:      prev,
			High:      math.Max(prev, c) + 0.5,
			Low:       math.Min(prev, c) - 0.5,
			Close:     c,
			Volume:    int64(1000 + i*250),
		}
		prev = c
	}
	return out
}

func sameCandle(a, b models.Candle) bool {
	near := func(x, y float64) bool { return math.Abs(x-y) < 1e-9 }
	return a.Timestamp.Equal(b.Timestamp) &&
		near(a.Open, b.Open) && near(a.High, b.High) &&
		near(a.Low, b.Low) && near(a.Close, b.Close) &&
		a.Volume == b.Volume
}

// The candle cache serves later scans, so a series written once or several
// times reads back unchanged and reports its last session as freshness.
func TestProperty_CandleRoundTripConsistency(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "candles.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer s.Close()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 60
	properties := gopter.NewProperties(parameters)

	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	closesGen := gen.SliceOf(gen.Float64Range(10, 5000)).SuchThat(func(v []float64) bool {
		return len(v) > 0 && len(v) <= 60
	})
	run := 0

	properties.Property("re-saving a series reads back the same candles", prop.ForAll(
		func(closes []float64, saves int) bool {
			ctx := context.Background()
			run++
			symbol := fmt.Sprintf("STK%d", run)
			candles := dailySeries(start, closes)

			for i := 0; i < saves; i++ {
				if err := s.SaveCandles(ctx, symbol, "day", candles); err != nil {
					t.Logf("SaveCandles: %v", err)
					return false
				}
			}

			got, err := s.GetCandles(ctx, symbol, "day", start, candles[len(candles)-1].Timestamp)
			if err != nil || len(got) != len(candles) {
				t.Logf("GetCandles: %d candles, err %v", len(got), err)
				return false
			}
			for i := range candles {
				if !sameCandle(candles[i], got[i]) {
					t.Logf("candle %d: saved %+v, read %+v", i, candles[i], got[i])
					return false
				}
			}

			last, err := s.GetCandlesFreshness(ctx, symbol, "day")
			return err == nil && last.Equal(candles[len(candles)-1].Timestamp)
		},
		closesGen,
		gen.IntRange(1, 3),
	))

	properties.Property("saving nothing is a no-op", prop.ForAll(
		func(n int) bool {
			symbol := fmt.Sprintf("EMPTY%d", n)
			if err := s.SaveCandles(context.Background(), symbol, "day", nil); err != nil {
				return false
			}
			last, err := s.GetCandlesFreshness(context.Background(), symbol, "day")
			return err == nil && last.IsZero()
		},
		gen.IntRange(0, 1000),
	))

	properties.TestingRun(t)
}

// Saved rows of a run come back in table order with every cell intact.
func TestProperty_ResultRowsKeepTableOrder(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer s.Close()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)
	run := 0

	properties.Property("GetResults mirrors SaveResults", prop.ForAll(
		func(prices []float64) bool {
			ctx := context.Background()
			run++
			runID := fmt.Sprintf("run-%d", run)

			rows := make([]map[string]string, len(prices))
			for i, p := range prices {
				rows[i] = map[string]string{
					"Stock": fmt.Sprintf("STK%03d", len(prices)-i),
					"LTP":   fmt.Sprintf("%.2f", p),
					"%Chng": fmt.Sprintf("%.1f%%", p/100),
				}
			}
			if err := s.SaveResults(ctx, runID, rows); err != nil {
				t.Logf("SaveResults: %v", err)
				return false
			}

			got, err := s.GetResults(ctx, runID)
			if err != nil || len(got) != len(rows) {
				return false
			}
			for i := range rows {
				for k, v := range rows[i] {
					if got[i][k] != v {
						t.Logf("row %d column %s: saved %q, read %q", i, k, v, got[i][k])
						return false
					}
				}
			}
			return true
		},
		gen.SliceOf(gen.Float64Range(1, 100000)),
	))

	properties.TestingRun(t)
}
