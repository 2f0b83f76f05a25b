package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"
	kiteconnect "github.com/zerodha/gokiteconnect/v4"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"nse-screener/internal/config"
	"nse-screener/internal/errors"
	"nse-screener/internal/logging"
	"nse-screener/internal/models"
	"nse-screener/pkg/utils"
)

// KiteProvider fetches history from Kite Connect. Requests are throttled to
// the API's historical-data rate limit and retried with backoff on
// transient failures.
type KiteProvider struct {
	client      *kiteconnect.Client
	exchange    models.Exchange
	limiter     *rate.Limiter
	retry       utils.RetryConfig
	hasToken    bool
	logger      zerolog.Logger
	instruments map[string]models.Instrument
	mu          sync.RWMutex
	// loads collapses concurrent first lookups into one instrument download.
	loads singleflight.Group
	list  func() (kiteconnect.Instruments, error)
}

// NewKiteProvider creates a Kite Connect provider.
func NewKiteProvider(creds config.KiteCredentials, cfg config.ProviderConfig, logger zerolog.Logger) (*KiteProvider, error) {
	client := kiteconnect.New(creds.APIKey)
	if creds.AccessToken != "" {
		client.SetAccessToken(creds.AccessToken)
	}

	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, errors.NewValidationError("provider.proxy", cfg.Proxy, err.Error())
		}
		client.SetHTTPClient(&http.Client{
			Timeout:   30 * time.Second,
			Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)},
		})
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 3
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	retry := utils.DefaultRetryConfig()
	if cfg.RetryAttempts > 0 {
		retry.MaxAttempts = cfg.RetryAttempts
	}
	if cfg.RetryInitialDelay > 0 {
		retry.InitialDelay = cfg.RetryInitialDelay
	}
	if cfg.RetryMaxDelay > 0 {
		retry.MaxDelay = cfg.RetryMaxDelay
	}
	retry.RetryableErrors = []error{errors.ErrRateLimited, errors.ErrDataUnavailable}

	exchange := models.Exchange(cfg.Exchange)
	if exchange == "" {
		exchange = models.NSE
	}

	return &KiteProvider{
		client:      client,
		exchange:    exchange,
		limiter:     rate.NewLimiter(rate.Limit(rps), burst),
		retry:       retry,
		hasToken:    creds.AccessToken != "",
		logger:      logging.WithOperation(logger, "kite"),
		instruments: make(map[string]models.Instrument),
		list:        client.GetInstruments,
	}, nil
}

// Historical fetches candles of symbol between from and to.
func (k *KiteProvider) Historical(ctx context.Context, symbol, interval string, from, to time.Time) ([]models.Candle, error) {
	if !k.hasToken {
		return nil, errors.ErrNotAuthenticated
	}

	inst, err := k.instrument(ctx, symbol)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	data, err := utils.RetryWithResult(ctx, k.retry, func() ([]kiteconnect.HistoricalData, error) {
		if err := k.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		data, err := k.client.GetHistoricalData(int(inst.Token), interval, from, to, false, false)
		return data, classify(err)
	})
	logging.LogAPICall(logging.WithSymbol(k.logger, symbol), "GET", "/instruments/historical", time.Since(start), err)
	if err != nil {
		return nil, errors.NewDataError("candles", symbol, "historical fetch failed", err)
	}

	candles := make([]models.Candle, len(data))
	for i, d := range data {
		candles[i] = models.Candle{
			Timestamp: d.Date.Time,
			Open:      d.Open,
			High:      d.High,
			Low:       d.Low,
			Close:     d.Close,
			Volume:    int64(d.Volume),
		}
	}
	return candles, nil
}

// Instruments fetches all instruments listed on exchange.
func (k *KiteProvider) Instruments(ctx context.Context, exchange models.Exchange) ([]models.Instrument, error) {
	if !k.hasToken {
		return nil, errors.ErrNotAuthenticated
	}

	start := time.Now()
	instruments, err := utils.RetryWithResult(ctx, k.retry, func() (kiteconnect.Instruments, error) {
		if err := k.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		list, err := k.list()
		return list, classify(err)
	})
	logging.LogAPICall(k.logger, "GET", "/instruments", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to get instruments: %w", err)
	}

	var result []models.Instrument
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, inst := range instruments {
		if inst.Exchange != string(exchange) {
			continue
		}
		m := models.Instrument{
			Token:     uint32(inst.InstrumentToken),
			Symbol:    inst.Tradingsymbol,
			Name:      inst.Name,
			Exchange:  models.Exchange(inst.Exchange),
			Segment:   inst.Segment,
			LotSize:   int(inst.LotSize),
			TickSize:  inst.TickSize,
			InstrType: inst.InstrumentType,
		}
		result = append(result, m)
		if exchange == k.exchange {
			k.instruments[m.Symbol] = m
		}
	}
	return result, nil
}

func (k *KiteProvider) instrument(ctx context.Context, symbol string) (models.Instrument, error) {
	k.mu.RLock()
	inst, ok := k.instruments[symbol]
	loaded := len(k.instruments) > 0
	k.mu.RUnlock()
	if ok {
		return inst, nil
	}
	if loaded {
		return models.Instrument{}, errors.NewDataError("instrument", symbol, "not listed", errors.ErrSymbolNotFound)
	}

	_, err, _ := k.loads.Do(string(k.exchange), func() (interface{}, error) {
		return k.Instruments(ctx, k.exchange)
	})
	if err != nil {
		return models.Instrument{}, err
	}

	k.mu.RLock()
	inst, ok = k.instruments[symbol]
	k.mu.RUnlock()
	if !ok {
		return models.Instrument{}, errors.NewDataError("instrument", symbol, "not listed", errors.ErrSymbolNotFound)
	}
	return inst, nil
}

// classify maps Kite API errors onto the screener's sentinels so retries
// and skip decisions can use errors.Is.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var kerr kiteconnect.Error
	if !errors.As(err, &kerr) {
		return fmt.Errorf("%w: %w", errors.ErrDataUnavailable, err)
	}
	switch {
	case kerr.Code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", errors.ErrRateLimited, kerr.Message)
	case kerr.ErrorType == kiteconnect.TokenError:
		return fmt.Errorf("%w: %s", errors.ErrNotAuthenticated, kerr.Message)
	case kerr.ErrorType == kiteconnect.InputError:
		return fmt.Errorf("%w: %s", errors.ErrSymbolNotFound, kerr.Message)
	case kerr.ErrorType == kiteconnect.NetworkError, kerr.Code >= http.StatusInternalServerError:
		return fmt.Errorf("%w: %s", errors.ErrDataUnavailable, kerr.Message)
	}
	return err
}
