package provider

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"nse-screener/internal/errors"
	"nse-screener/internal/logging"
	"nse-screener/internal/models"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState string

const (
	CircuitClosed   CircuitState = "CLOSED"    // Normal operation
	CircuitOpen     CircuitState = "OPEN"      // Failing, rejecting requests
	CircuitHalfOpen CircuitState = "HALF_OPEN" // Letting probes through
)

// BreakerConfig holds circuit breaker configuration.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before opening
	FailureThreshold int
	// SuccessThreshold is the number of half-open successes needed to close
	SuccessThreshold int
	// Cooldown is how long the circuit stays open before probing again
	Cooldown time.Duration
}

// DefaultBreakerConfig returns the defaults used when none are configured.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 10,
		SuccessThreshold: 2,
		Cooldown:         30 * time.Second,
	}
}

// Breaker is a Provider that stops calling the wrapped provider after a run
// of outage failures. While open every call fails fast with
// ErrDataUnavailable, which scans treat as a skipped stock. Per-symbol
// errors such as an unknown symbol do not count as failures.
type Breaker struct {
	provider Provider
	config   BreakerConfig
	now      func() time.Time
	logger   zerolog.Logger

	mu        sync.Mutex
	state     CircuitState
	failures  int
	successes int
	openedAt  time.Time
	rejected  int64
}

// NewBreaker wraps p. Zero fields of cfg take their defaults.
func NewBreaker(p Provider, cfg BreakerConfig, logger zerolog.Logger) *Breaker {
	def := DefaultBreakerConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = def.SuccessThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	return &Breaker{
		provider: p,
		config:   cfg,
		now:      time.Now,
		logger:   logging.WithOperation(logger, "breaker"),
		state:    CircuitClosed,
	}
}

// Historical implements Provider.
func (b *Breaker) Historical(ctx context.Context, symbol, interval string, from, to time.Time) ([]models.Candle, error) {
	if err := b.allow(); err != nil {
		return nil, errors.NewDataError("candles", symbol, "provider circuit open", err)
	}
	candles, err := b.provider.Historical(ctx, symbol, interval, from, to)
	b.record(err)
	return candles, err
}

// Instruments implements Provider.
func (b *Breaker) Instruments(ctx context.Context, exchange models.Exchange) ([]models.Instrument, error) {
	if err := b.allow(); err != nil {
		return nil, err
	}
	instruments, err := b.provider.Instruments(ctx, exchange)
	b.record(err)
	return instruments, err
}

// State returns the current circuit state.
func (b *Breaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Rejected returns how many calls failed fast.
func (b *Breaker) Rejected() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rejected
}

// Reset closes the circuit.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = CircuitClosed
	b.failures = 0
	b.successes = 0
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == CircuitOpen {
		if b.now().Sub(b.openedAt) < b.config.Cooldown {
			b.rejected++
			return errors.Wrap(errors.ErrDataUnavailable, "provider circuit open")
		}
		b.transitionTo(CircuitHalfOpen)
	}
	return nil
}

// outage reports whether err says the provider itself is failing.
func outage(err error) bool {
	return errors.Is(err, errors.ErrDataUnavailable) ||
		errors.Is(err, errors.ErrRateLimited) ||
		errors.Is(err, errors.ErrTimeout)
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil && outage(err) {
		switch b.state {
		case CircuitClosed:
			b.failures++
			if b.failures >= b.config.FailureThreshold {
				b.transitionTo(CircuitOpen)
			}
		case CircuitHalfOpen:
			b.transitionTo(CircuitOpen)
		}
		return
	}

	switch b.state {
	case CircuitHalfOpen:
		b.successes++
		if b.successes >= b.config.SuccessThreshold {
			b.transitionTo(CircuitClosed)
		}
	case CircuitClosed:
		b.failures = 0
	}
}

func (b *Breaker) transitionTo(state CircuitState) {
	if state == b.state {
		return
	}
	if state == CircuitOpen {
		b.openedAt = b.now()
	}
	event := b.logger.Info()
	if state == CircuitOpen {
		event = b.logger.Warn()
	}
	event.Str("from", string(b.state)).
		Str("to", string(state)).
		Int("failures", b.failures).
		Msg("Provider circuit state changed")
	b.state = state
	b.failures = 0
	b.successes = 0
}
