package provider

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"nse-screener/internal/config"
	"nse-screener/internal/errors"
	"nse-screener/internal/logging"
	"nse-screener/internal/models"
	"nse-screener/internal/store"
	"nse-screener/pkg/utils"
)

// Cache is the price cache shared by every worker of a run. Series are held
// in memory for the life of the cache; with useCache they are also read from
// and written to the candle store so later runs skip the download. Callers
// must not modify returned slices.
type Cache struct {
	provider   Provider
	store      store.CandleStore
	interval   string
	periodDays int
	now        func() time.Time
	logger     zerolog.Logger

	group  singleflight.Group
	mu     sync.RWMutex
	series map[string][]models.Candle
}

// NewCache creates a cache in front of provider. candles may be nil, in
// which case nothing is persisted.
func NewCache(p Provider, candles store.CandleStore, cfg config.ScreenerConfig, logger zerolog.Logger) *Cache {
	interval := cfg.Interval
	if interval == "" {
		interval = "day"
	}
	periodDays := cfg.PeriodDays
	if periodDays <= 0 {
		periodDays = 450
	}
	return &Cache{
		provider:   p,
		store:      candles,
		interval:   interval,
		periodDays: periodDays,
		now:        time.Now,
		logger:     logging.WithOperation(logger, "cache"),
		series:     make(map[string][]models.Candle),
	}
}

// History returns the price history of symbol, oldest first. Concurrent
// calls for the same symbol share a single fetch.
func (c *Cache) History(ctx context.Context, symbol string, useCache bool) ([]models.Candle, error) {
	c.mu.RLock()
	candles, ok := c.series[symbol]
	c.mu.RUnlock()
	if ok {
		return candles, nil
	}

	v, err, _ := c.group.Do(symbol, func() (interface{}, error) {
		c.mu.RLock()
		candles, ok := c.series[symbol]
		c.mu.RUnlock()
		if ok {
			return candles, nil
		}

		candles, err := c.load(ctx, symbol, useCache)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.series[symbol] = candles
		c.mu.Unlock()
		return candles, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.Candle), nil
}

func (c *Cache) load(ctx context.Context, symbol string, useCache bool) ([]models.Candle, error) {
	now := c.now()
	from := now.AddDate(0, 0, -c.periodDays)
	persist := useCache && c.store != nil

	if persist {
		last, err := c.store.GetCandlesFreshness(ctx, symbol, c.interval)
		if err != nil {
			c.logger.Warn().Err(err).Str("symbol", symbol).Msg("Failed to read candle freshness")
		} else if !last.IsZero() && utils.IsFresh(last, now) {
			candles, err := c.store.GetCandles(ctx, symbol, c.interval, from, now)
			if err == nil && len(candles) > 0 {
				return candles, nil
			}
			if err != nil {
				c.logger.Warn().Err(err).Str("symbol", symbol).Msg("Failed to read cached candles")
			}
		}
	}

	candles, err := c.provider.Historical(ctx, symbol, c.interval, from, now)
	if err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, errors.NewDataError("candles", symbol, "provider returned no candles", errors.ErrDataUnavailable)
	}

	if persist {
		if err := c.store.SaveCandles(ctx, symbol, c.interval, candles); err != nil {
			c.logger.Warn().Err(err).Str("symbol", symbol).Msg("Failed to persist candles")
		}
	}
	return candles, nil
}

// Len returns the number of series held in memory.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.series)
}

// Reset drops the in-memory series.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.series = make(map[string][]models.Candle)
	c.mu.Unlock()
}
