package cli

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"nse-screener/internal/config"
	"nse-screener/internal/errors"
	"nse-screener/internal/provider"
	"nse-screener/internal/scan"
	"nse-screener/internal/screening"
	"nse-screener/internal/store"
)

// App holds the application dependencies. Store and Provider are opened on
// first use; tests may set them up front.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Store    store.DataStore
	Provider provider.Provider
	Metrics  *scan.Metrics

	cache   *provider.Cache
	metrics *http.Server
}

// DataStore opens the sqlite store.
func (a *App) DataStore() (store.DataStore, error) {
	if a.Store != nil {
		return a.Store, nil
	}
	path := a.Config.Store.Path
	if path == "" {
		path = filepath.Join(a.Config.Dir, "screener.db")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrap(errors.ErrDatabaseError, err.Error())
	}
	s, err := store.NewSQLiteStore(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabaseError, err.Error())
	}
	a.Store = s
	a.Logger.Debug().Str("path", path).Msg("SQLite store initialized")
	return s, nil
}

// DataProvider returns the market data provider.
func (a *App) DataProvider() (provider.Provider, error) {
	if a.Provider != nil {
		return a.Provider, nil
	}
	if !a.Config.HasKiteCredentials() {
		return nil, errors.Wrap(errors.ErrNotAuthenticated, "kite api_key and access_token are required (credentials.toml or KITE_* env)")
	}
	p, err := provider.NewKiteProvider(a.Config.Credentials.Kite, a.Config.Provider, a.Logger)
	if err != nil {
		return nil, err
	}
	a.Provider = provider.NewBreaker(p, provider.BreakerConfig{
		FailureThreshold: a.Config.Provider.BreakerThreshold,
		Cooldown:         a.Config.Provider.BreakerCooldown,
	}, a.Logger)
	a.Logger.Debug().Msg("Kite provider initialized")
	return a.Provider, nil
}

// PriceCache returns the price cache shared by every run of this process.
// A store that fails to open only disables persistence.
func (a *App) PriceCache() (*provider.Cache, error) {
	if a.cache != nil {
		return a.cache, nil
	}
	p, err := a.DataProvider()
	if err != nil {
		return nil, err
	}
	var candles store.CandleStore
	if s, err := a.DataStore(); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to initialize store, candles will not be cached")
	} else {
		candles = s
	}
	a.cache = provider.NewCache(p, candles, a.Config.Screener, a.Logger)
	return a.cache, nil
}

// Universe returns the stock universe resolver.
func (a *App) Universe() *provider.Universe {
	var sync provider.SyncRecorder
	if s, err := a.DataStore(); err == nil {
		sync = s
	}
	// The provider is only needed for the instruments source.
	p, _ := a.DataProvider()
	return provider.NewUniverse(a.Config.Universe, a.Config.Provider.Exchange, p, sync, a.Logger)
}

// Orchestrator builds an orchestrator over the price cache.
func (a *App) Orchestrator() (*scan.Orchestrator, error) {
	cache, err := a.PriceCache()
	if err != nil {
		return nil, err
	}
	return scan.NewOrchestrator(a.Config, screening.NewAnalyzer(a.Logger), cache, a.Metrics, a.Logger), nil
}

// ServeMetrics exposes the run metrics on addr until StopMetrics.
func (a *App) ServeMetrics(addr string) {
	if addr == "" || a.metrics != nil {
		return
	}
	if a.Metrics == nil {
		a.Metrics = scan.NewMetrics()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.Metrics.Handler())
	a.metrics = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := a.metrics.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.Error().Err(err).Str("addr", addr).Msg("Metrics listener failed")
		}
	}()
	a.Logger.Info().Str("addr", addr).Msg("Serving metrics")
}

// Close releases the metrics listener and the store.
func (a *App) Close() error {
	if a.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = a.metrics.Shutdown(ctx)
		cancel()
		a.metrics = nil
	}
	if a.Store != nil {
		err := a.Store.Close()
		a.Store = nil
		return err
	}
	return nil
}
