package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatIndianNumber(t *testing.T) {
	testCases := map[int64]string{
		0:          "0",
		999:        "999",
		1000:       "1,000",
		100000:     "1,00,000",
		12345678:   "1,23,45,678",
		-250000000: "-25,00,00,000",
	}
	for n, expected := range testCases {
		assert.Equal(t, expected, FormatIndianNumber(n), "FormatIndianNumber(%d)", n)
	}
}

func TestFormatCompactVolume(t *testing.T) {
	assert.Equal(t, "95,000", FormatCompactVolume(95000))
	assert.Equal(t, "2.50 L", FormatCompactVolume(250000))
	assert.Equal(t, "1.20 Cr", FormatCompactVolume(12000000))
}

func TestNormalizeSymbol(t *testing.T) {
	assert.Equal(t, "SBIN", NormalizeSymbol(" nse:sbin "))
	assert.Equal(t, "TCS", NormalizeSymbol("tcs.ns"))
	assert.Equal(t, "M&M", NormalizeSymbol("M&M"))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", TruncateString("short", 10))
	assert.Equal(t, "Reliance...", TruncateString("Reliance Industries", 11))
	assert.Equal(t, "Re", TruncateString("Reliance", 2))
}

func ist(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, IndiaLocation)
}

func TestIsMarketOpen(t *testing.T) {
	assert.True(t, IsMarketOpen(ist(2024, 5, 10, 9, 15)))
	assert.True(t, IsMarketOpen(ist(2024, 5, 10, 15, 29)))
	assert.False(t, IsMarketOpen(ist(2024, 5, 10, 15, 30)))
	assert.False(t, IsMarketOpen(ist(2024, 5, 11, 11, 0)))
}

func TestLastSessionDate(t *testing.T) {
	friday := ist(2024, 5, 10, 0, 0)

	assert.True(t, LastSessionDate(ist(2024, 5, 10, 16, 0)).Equal(friday))
	assert.True(t, LastSessionDate(ist(2024, 5, 11, 10, 0)).Equal(friday))
	assert.True(t, LastSessionDate(ist(2024, 5, 13, 10, 0)).Equal(friday))
	assert.True(t, LastSessionDate(ist(2024, 5, 13, 16, 0)).Equal(ist(2024, 5, 13, 0, 0)))
}

func TestIsFresh(t *testing.T) {
	now := ist(2024, 5, 13, 10, 0)

	assert.True(t, IsFresh(ist(2024, 5, 10, 0, 0), now))
	assert.False(t, IsFresh(ist(2024, 5, 9, 0, 0), now))
	// a UTC timestamp late on the session day is still that day in IST
	assert.True(t, IsFresh(time.Date(2024, 5, 9, 20, 0, 0, 0, time.UTC), ist(2024, 5, 10, 12, 0)))
}

func TestCalculateBackoff(t *testing.T) {
	assert.Equal(t, 100*time.Millisecond, CalculateBackoff(0, 100*time.Millisecond, time.Second, 2))
	assert.Equal(t, 400*time.Millisecond, CalculateBackoff(2, 100*time.Millisecond, time.Second, 2))
	assert.Equal(t, time.Second, CalculateBackoff(10, 100*time.Millisecond, time.Second, 2))
	assert.Equal(t, 100*time.Millisecond, CalculateBackoff(5, 100*time.Millisecond, time.Second, 0.5))
}

var errFlaky = errors.New("flaky")

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:   attempts,
		InitialDelay:  time.Millisecond,
		MaxDelay:      time.Millisecond,
		BackoffFactor: 2,
	}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	got, err := RetryWithResult(context.Background(), fastRetry(3), func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errFlaky
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 3, calls)
}

func TestRetryGivesUp(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetry(2), func() error {
		calls++
		return errFlaky
	})
	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 2, calls)
}

func TestRetryOnlyRetryableErrors(t *testing.T) {
	cfg := fastRetry(5)
	cfg.RetryableErrors = []error{errFlaky}

	calls := 0
	permanent := errors.New("permanent")
	err := Retry(context.Background(), cfg, func() error {
		calls++
		return permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestRetryStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Retry(ctx, fastRetry(5), func() error {
		calls++
		return errFlaky
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
