// Package provider fetches price history and the stock universe, and caches
// downloaded series for the workers of a run.
package provider

import (
	"context"
	"time"

	"nse-screener/internal/models"
)

// Provider is a source of daily candles and tradeable instruments.
type Provider interface {
	Historical(ctx context.Context, symbol, interval string, from, to time.Time) ([]models.Candle, error)
	Instruments(ctx context.Context, exchange models.Exchange) ([]models.Instrument, error)
}
