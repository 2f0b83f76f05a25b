package provider

import (
	"bufio"
	"context"
	"math/rand"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"nse-screener/internal/config"
	"nse-screener/internal/errors"
	"nse-screener/internal/logging"
	"nse-screener/internal/models"
	"nse-screener/internal/store"
	"nse-screener/pkg/utils"
)

// Universe sources.
const (
	SourceStatic      = "static"
	SourceFile        = "file"
	SourceInstruments = "instruments"
)

// SyncRecorder records when the instrument list was last downloaded.
type SyncRecorder interface {
	SetLastSync(dataType string, t time.Time) error
}

// Universe resolves the list of stocks a run screens.
type Universe struct {
	cfg      config.UniverseConfig
	exchange models.Exchange
	provider Provider
	sync     SyncRecorder
	logger   zerolog.Logger
}

// NewUniverse creates a resolver. provider is only needed for the
// instruments source and sync may be nil.
func NewUniverse(cfg config.UniverseConfig, exchange string, p Provider, sync SyncRecorder, logger zerolog.Logger) *Universe {
	ex := models.Exchange(exchange)
	if ex == "" {
		ex = models.NSE
	}
	return &Universe{
		cfg:      cfg,
		exchange: ex,
		provider: p,
		sync:     sync,
		logger:   logging.WithOperation(logger, "universe"),
	}
}

// Resolve returns the stock codes to screen. A non-empty override replaces
// the configured source. Codes are normalized and deduplicated; with shuffle
// their order is randomized.
func (u *Universe) Resolve(ctx context.Context, override []string, shuffle bool) ([]string, error) {
	var raw []string
	var err error

	switch {
	case len(override) > 0:
		raw = override
	case u.cfg.Source == SourceStatic:
		raw = u.cfg.Symbols
	case u.cfg.Source == SourceFile:
		raw, err = readSymbolFile(u.cfg.File)
	case u.cfg.Source == SourceInstruments, u.cfg.Source == "":
		raw, err = u.fromInstruments(ctx)
	default:
		err = errors.NewValidationError("universe.source", u.cfg.Source, "must be static, file or instruments")
	}
	if err != nil {
		return nil, err
	}

	symbols := dedupe(raw)
	if len(symbols) == 0 {
		return nil, errors.Wrap(errors.ErrConfigInvalid, "stock universe is empty")
	}
	if shuffle {
		rand.Shuffle(len(symbols), func(i, j int) { symbols[i], symbols[j] = symbols[j], symbols[i] })
	}

	u.logger.Debug().Int("stocks", len(symbols)).Bool("shuffled", shuffle).Msg("Universe resolved")
	return symbols, nil
}

func (u *Universe) fromInstruments(ctx context.Context) ([]string, error) {
	if u.provider == nil {
		return nil, errors.Wrap(errors.ErrConfigInvalid, "instruments universe needs a data provider")
	}
	instruments, err := u.provider.Instruments(ctx, u.exchange)
	if err != nil {
		return nil, err
	}

	var symbols []string
	for _, inst := range instruments {
		if inst.IsEquity() {
			symbols = append(symbols, inst.Symbol)
		}
	}
	sort.Strings(symbols)

	if u.sync != nil {
		if err := u.sync.SetLastSync(store.SyncInstruments, time.Now()); err != nil {
			u.logger.Warn().Err(err).Msg("Failed to record instrument sync")
		}
	}
	return symbols, nil
}

// readSymbolFile reads one code per line, or the first column of a CSV.
// Blank lines, comments and a "Symbol" header are skipped.
func readSymbolFile(path string) ([]string, error) {
	if path == "" {
		return nil, errors.NewValidationError("universe.file", path, "file source needs a path")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrConfigInvalid, "open universe file: %v", err)
	}
	defer f.Close()

	var symbols []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		field := strings.TrimSpace(strings.SplitN(line, ",", 2)[0])
		if strings.EqualFold(field, "symbol") {
			continue
		}
		symbols = append(symbols, field)
	}
	return symbols, scanner.Err()
}

func dedupe(raw []string) []string {
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = utils.NormalizeSymbol(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
