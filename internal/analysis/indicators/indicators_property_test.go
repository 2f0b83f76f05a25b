package indicators

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"nse-screener/internal/models"
)

// candleGen generates valid candle data with realistic OHLCV values
func candleGen() gopter.Gen {
	return gen.Struct(reflect.TypeOf(models.Candle{}), map[string]gopter.Gen{
		"Timestamp": gen.TimeRange(time.Now().Add(-365*24*time.Hour), time.Hour),
		"Open":      gen.Float64Range(100.0, 1000.0),
		"High":      gen.Float64Range(100.0, 1000.0),
		"Low":       gen.Float64Range(100.0, 1000.0),
		"Close":     gen.Float64Range(100.0, 1000.0),
		"Volume":    gen.Int64Range(1000, 10000000),
	}).Map(normalizeCandle)
}

func normalizeCandle(c models.Candle) models.Candle {
	if c.Open <= 0 {
		c.Open = 100.0
	}
	if c.Close <= 0 {
		c.Close = 100.0
	}
	c.High = math.Max(c.High, math.Max(c.Open, c.Close))
	c.Low = math.Min(c.Low, math.Min(c.Open, c.Close))
	if c.Low <= 0 {
		c.Low = math.Min(c.Open, c.Close)
	}
	if c.High <= c.Low {
		c.High = c.Low + 1.0
	}
	return c
}

// candleSliceGen generates a slice of valid candles with ascending timestamps
func candleSliceGen(minLen, maxLen int) gopter.Gen {
	return gen.SliceOfN(maxLen, candleGen()).Map(func(candles []models.Candle) []models.Candle {
		for len(candles) < minLen {
			candles = append(candles, normalizeCandle(models.Candle{Open: 100, Close: 100, Volume: 1000}))
		}
		start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		for i := range candles {
			candles[i] = normalizeCandle(candles[i])
			candles[i].Timestamp = start.AddDate(0, 0, i)
		}
		return candles
	})
}

func linearCandles(n int, start, step float64) []models.Candle {
	candles := make([]models.Candle, n)
	for i := range candles {
		price := start + step*float64(i)
		candles[i] = models.Candle{
			Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
			Open:      price,
			High:      price + 1,
			Low:       price - 1,
			Close:     price,
			Volume:    100000,
		}
	}
	return candles
}

func TestProperty_RSIWithinBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("RSI values are within [0, 100]", prop.ForAll(
		func(candles []models.Candle) bool {
			rsi := NewRSI(14)
			values, err := rsi.Calculate(candles)
			if err != nil {
				return true
			}
			for i, v := range values {
				if i < rsi.Period() {
					continue
				}
				if v < 0 || v > 100 {
					return false
				}
			}
			return true
		},
		candleSliceGen(20, 100),
	))

	properties.TestingRun(t)
}

func TestProperty_SMAWithinWindowRange(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("each SMA value lies between the window's min and max close", prop.ForAll(
		func(candles []models.Candle, period int) bool {
			values, err := NewSMA(period).Calculate(candles)
			if err != nil {
				return len(candles) < period
			}
			closes := models.Closes(candles)
			for i := period - 1; i < len(values); i++ {
				lo, hi := closes[i], closes[i]
				for _, c := range closes[i-period+1 : i+1] {
					lo = math.Min(lo, c)
					hi = math.Max(hi, c)
				}
				if values[i] < lo-1e-6 || values[i] > hi+1e-6 {
					return false
				}
			}
			return true
		},
		candleSliceGen(10, 60),
		gen.IntRange(1, 50),
	))

	properties.TestingRun(t)
}

func TestProperty_RangeAndLevels(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("range percent is within [0, 100) and high >= low", prop.ForAll(
		func(candles []models.Candle, n int) bool {
			r := RangePercent(candles, n)
			high, low := HighLow(candles, n)
			return r >= 0 && r < 100 && high >= low && VolumeRatio(candles, n) >= 0
		},
		candleSliceGen(5, 40),
		gen.IntRange(1, 60),
	))

	properties.TestingRun(t)
}

func TestTrendLabel(t *testing.T) {
	tests := []struct {
		angle float64
		want  string
	}{
		{75, TrendStrongUp},
		{60, TrendStrongUp},
		{45, TrendWeakUp},
		{30, TrendWeakUp},
		{0, TrendSideways},
		{-29.9, TrendSideways},
		{-30, TrendWeakDown},
		{-60, TrendStrongDown},
	}
	for _, tt := range tests {
		if got := TrendLabel(tt.angle); got != tt.want {
			t.Errorf("TrendLabel(%v) = %s, want %s", tt.angle, got, tt.want)
		}
	}
}

func TestTrendAngle(t *testing.T) {
	// closes rise 2 points per bar from 100, so the rebased slope is 2
	angle, err := TrendAngle(linearCandles(30, 100, 2), 20)
	if err != nil {
		t.Fatalf("TrendAngle() error = %v", err)
	}
	if angle < 55 {
		t.Errorf("expected a steep angle, got %.2f", angle)
	}

	flat := Trend(linearCandles(30, 100, 0), 20)
	if flat != TrendSideways {
		t.Errorf("flat series trend = %s, want %s", flat, TrendSideways)
	}

	if got := Trend(linearCandles(5, 100, 1), 20); got != TrendUnknown {
		t.Errorf("short series trend = %s, want %s", got, TrendUnknown)
	}
}

func TestSupportTrendline(t *testing.T) {
	candles := linearCandles(40, 50, 1)
	line, err := SupportTrendline(candles, 20)
	if err != nil {
		t.Fatalf("SupportTrendline() error = %v", err)
	}
	if math.Abs(line.Slope-1) > 1e-6 {
		t.Errorf("Slope = %v, want 1", line.Slope)
	}
	lastLow := candles[len(candles)-1].Low
	if math.Abs(line.Value-lastLow) > 1e-6 {
		t.Errorf("Value = %v, want %v", line.Value, lastLow)
	}
}

func TestBreakoutLevel(t *testing.T) {
	candles := linearCandles(10, 100, 1)
	resistance, support, err := BreakoutLevel(candles, 5)
	if err != nil {
		t.Fatalf("BreakoutLevel() error = %v", err)
	}
	// window is candles[4:9], closes 104..108
	if resistance != 108 || support != 104 {
		t.Errorf("got resistance=%v support=%v", resistance, support)
	}
	if _, _, err := BreakoutLevel(candles[:3], 5); err != ErrInsufficientData {
		t.Errorf("expected ErrInsufficientData, got %v", err)
	}
}

func TestIsNarrowRange(t *testing.T) {
	candles := linearCandles(7, 100, 0)
	for i := range candles {
		candles[i].High = candles[i].Close + float64(10-i)
	}
	if !IsNarrowRange(candles, 7) {
		t.Error("expected NR7 on shrinking spreads")
	}
	candles[len(candles)-1].High += 20
	if IsNarrowRange(candles, 7) {
		t.Error("wide last candle should not be NR7")
	}
}

func TestCrossovers(t *testing.T) {
	fast := []float64{9, 11}
	slow := []float64{10, 10}
	if !CrossedAbove(fast, slow) || CrossedBelow(fast, slow) {
		t.Error("expected upward cross only")
	}
	if !CrossedBelow(slow, fast) {
		t.Error("expected downward cross")
	}
}

func TestVolumeRatio(t *testing.T) {
	candles := linearCandles(21, 100, 0)
	candles[len(candles)-1].Volume = 300000
	if got := VolumeRatio(candles, 20); math.Abs(got-3) > 1e-9 {
		t.Errorf("VolumeRatio = %v, want 3", got)
	}
	if !RisingVolume([]models.Candle{{Volume: 1}, {Volume: 2}, {Volume: 3}}, 2) {
		t.Error("expected rising volume")
	}
}

func TestMomentumOnSimpleSeries(t *testing.T) {
	flat := linearCandles(40, 100, 0)
	rising := linearCandles(40, 100, 2)
	falling := linearCandles(40, 200, -2)

	rsi := NewRSI(14)
	for name, tc := range map[string]struct {
		candles []models.Candle
		want    float64
	}{
		"flat":    {flat, 50},
		"rising":  {rising, 100},
		"falling": {falling, 0},
	} {
		values, err := rsi.Calculate(tc.candles)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if got := Last(values); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("%s RSI = %.2f, want %.0f", name, got, tc.want)
		}
	}

	cci := NewCCI(20)
	if values, err := cci.Calculate(flat); err != nil || Last(values) != 0 {
		t.Errorf("flat CCI = %v, %v; want 0", values, err)
	}
	if values, err := cci.Calculate(rising); err != nil || Last(values) <= 100 {
		t.Errorf("rising CCI = %.2f, %v; want above 100", Last(values), err)
	}
	if _, err := cci.Calculate(flat[:10]); err != ErrInsufficientData {
		t.Errorf("short CCI err = %v, want ErrInsufficientData", err)
	}
	if _, err := NewRSI(0).Calculate(flat); err != ErrInvalidPeriod {
		t.Errorf("RSI(0) err = %v, want ErrInvalidPeriod", err)
	}
}
