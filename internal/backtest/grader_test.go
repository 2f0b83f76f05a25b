package backtest

import (
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nse-screener/internal/errors"
	"nse-screener/internal/models"
	"nse-screener/internal/screening"
)

func closesSeries(closes ...float64) []models.Candle {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, len(closes))
	for i, c := range closes {
		out[i] = models.Candle{
			Timestamp: start.AddDate(0, 0, i),
			Open:      c,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    50000,
		}
	}
	return out
}

func risingSeries(n int) []models.Candle {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	return closesSeries(closes...)
}

func verdictAt(symbol string, candles []models.Candle, offset int, bearish bool) *screening.Verdict {
	return &screening.Verdict{
		Save: screening.Record{
			screening.ColVolume:   "2.10",
			screening.ColTrend:    "Weak Up",
			screening.ColMASignal: screening.SignalBullish,
		},
		Candles: candles,
		Symbol:  symbol,
		Offset:  offset,
		Bearish: bearish,
	}
}

func TestGradePeriodCapsHorizons(t *testing.T) {
	// base date followed by ten more periods
	candles := risingSeries(60)
	v := verdictAt("SBIN", candles, 10, false)

	row, err := Grade(v, 5)
	require.NoError(t, err)

	assert.Equal(t, "SBIN", row.Stock)
	assert.Equal(t, candles[49].Timestamp, row.BaseDate)
	assert.Equal(t, "2.10", row.Volume)
	for i, h := range Horizons {
		if h <= 5 {
			assert.False(t, row.Cells[i].Blank(), "horizon %d", h)
			assert.Equal(t, TagGreen, row.Cells[i].Tag, "horizon %d", h)
		} else {
			assert.True(t, row.Cells[i].Blank(), "horizon %d", h)
		}
	}

	save := row.Save()
	assert.Equal(t, "", save[HorizonColumn(10)])
	assert.Equal(t, "0.67", save[HorizonColumn(1)]) // 149 -> 150
	assert.Len(t, save, len(LedgerColumns()))
}

func TestGradeStopsAtEndOfHistory(t *testing.T) {
	v := verdictAt("TCS", risingSeries(60), 3, false)

	row, err := Grade(v, 30)
	require.NoError(t, err)
	for i, h := range Horizons {
		assert.Equal(t, h > 3, row.Cells[i].Blank(), "horizon %d", h)
	}
}

func TestGradePolarity(t *testing.T) {
	candles := closesSeries(100, 100, 98, 103)

	long, err := Grade(verdictAt("ITC", candles, 2, false), 5)
	require.NoError(t, err)
	short, err := Grade(verdictAt("ITC", candles, 2, true), 5)
	require.NoError(t, err)

	idx1, idx2 := HorizonIndex(1), HorizonIndex(2)
	assert.Equal(t, TagFail, long.Cells[idx1].Tag)
	assert.Equal(t, TagGreen, long.Cells[idx2].Tag)
	assert.Equal(t, TagGreen, short.Cells[idx1].Tag)
	assert.Equal(t, TagFail, short.Cells[idx2].Tag)
	assert.InDelta(t, -2.0, long.Cells[idx1].Change, 1e-9)
	assert.Equal(t, long.Cells[idx1].Change, short.Cells[idx1].Change)
}

func TestGradeUnchangedPriceIsGreen(t *testing.T) {
	row, err := Grade(verdictAt("HDFC", closesSeries(100, 100), 1, false), 5)
	require.NoError(t, err)
	assert.Equal(t, TagGreen, row.Cells[HorizonIndex(1)].Tag)
}

func TestGradeRejectsBadBase(t *testing.T) {
	_, err := Grade(verdictAt("X", closesSeries(100, 101), 5, false), 5)
	assert.ErrorIs(t, err, errors.ErrInsufficientData)

	_, err = Grade(verdictAt("X", closesSeries(0, 101), 1, false), 5)
	assert.ErrorIs(t, err, errors.ErrInsufficientData)
}

func TestGraderStateMachine(t *testing.T) {
	g := NewGrader(5)
	assert.Equal(t, Accumulating, g.State())

	_, err := g.Add(verdictAt("SBIN", risingSeries(40), 10, false))
	require.NoError(t, err)
	_, err = g.Add(verdictAt("INFY", risingSeries(40), 10, false))
	require.NoError(t, err)

	interim := g.Interim()
	assert.Len(t, interim.Rows, 2)
	assert.Equal(t, Accumulating, g.State())

	summary, err := g.Finish()
	require.NoError(t, err)
	assert.Equal(t, Done, g.State())
	assert.Equal(t, 10, summary.Total.Overall.Green)

	_, err = g.Add(verdictAt("TCS", risingSeries(40), 10, false))
	assert.ErrorIs(t, err, errors.ErrGraderState)

	again, err := g.Finish()
	require.NoError(t, err)
	assert.Same(t, summary, again)
}

func TestGraderCapsPeriod(t *testing.T) {
	assert.Equal(t, MaxPeriod, NewGrader(45).Period())
}

func TestLedgerKeepsOneRowPerStockAndDate(t *testing.T) {
	g := NewGrader(5)
	candles := risingSeries(40)

	_, err := g.Add(verdictAt("SBIN", candles, 10, false))
	require.NoError(t, err)
	_, err = g.Add(verdictAt("SBIN", candles, 10, false))
	require.NoError(t, err)
	_, err = g.Add(verdictAt("SBIN", candles, 11, false))
	require.NoError(t, err)

	assert.Len(t, g.Rows(), 2)
}

func TestProperty_HorizonPresence(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("a horizon is graded iff it is within the period and the history", prop.ForAll(
		func(history, forward, period int) bool {
			v := verdictAt("X", risingSeries(history+forward), forward, false)
			row, err := Grade(v, period)
			if err != nil {
				return false
			}
			for i, h := range Horizons {
				want := h <= period && h <= forward
				if row.Cells[i].Blank() == want {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 20),
		gen.IntRange(0, 40),
		gen.IntRange(1, 30),
	))

	properties.TestingRun(t)
}

func TestProperty_GradingIsPure(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("grading the same verdict twice gives identical rows", prop.ForAll(
		func(closes []float64, offset, period int, bearish bool) bool {
			if offset >= len(closes) {
				offset = len(closes) - 1
			}
			v := verdictAt("X", closesSeries(closes...), offset, bearish)
			a, errA := Grade(v, period)
			b, errB := Grade(v, period)
			return errA == nil && errB == nil && reflect.DeepEqual(a, b)
		},
		gen.SliceOfN(40, gen.Float64Range(10, 1000)),
		gen.IntRange(0, 39),
		gen.IntRange(1, 30),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
