package provider

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"nse-screener/internal/errors"
)

// WarmStats reports the outcome of a cache warm-up.
type WarmStats struct {
	Total  int
	Loaded int64
	Failed int64
}

// Warm downloads and persists the history of every symbol ahead of a scan.
// Per-symbol data problems are counted and skipped; an authentication
// failure or cancellation aborts the warm-up. progress may be called from
// several goroutines at once.
func Warm(ctx context.Context, cache *Cache, symbols []string, concurrency int, progress func(done, total int)) (WarmStats, error) {
	stats := WarmStats{Total: len(symbols)}
	if concurrency < 1 {
		concurrency = 4
	}

	var loaded, failed, done atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, symbol := range symbols {
		symbol := symbol
		g.Go(func() error {
			_, err := cache.History(gctx, symbol, true)
			n := done.Add(1)
			if progress != nil {
				progress(int(n), len(symbols))
			}
			switch {
			case err == nil:
				loaded.Add(1)
			case errors.Is(err, errors.ErrNotAuthenticated), gctx.Err() != nil:
				return err
			default:
				failed.Add(1)
				cache.logger.Debug().Err(err).Str("symbol", symbol).Msg("Warm-up skipped symbol")
			}
			return nil
		})
	}

	err := g.Wait()
	stats.Loaded = loaded.Load()
	stats.Failed = failed.Load()
	return stats, err
}
