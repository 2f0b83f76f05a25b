package screening

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"nse-screener/internal/analysis"
	"nse-screener/internal/analysis/indicators"
	"nse-screener/internal/analysis/patterns"
	"nse-screener/internal/config"
	"nse-screener/internal/errors"
	"nse-screener/internal/models"
)

// Mode selects what a scan looks for. The set of variants is closed; each
// variant carries its own matching rule, so the choice is made once when a
// WorkUnit is built.
type Mode interface {
	// Name is a short label for logs and report titles.
	Name() string
	// Bearish reports whether a match is a sell signal, which inverts the
	// grading polarity of backtests.
	Bearish() bool
	match(s *Snapshot, cfg config.ScreenerConfig) bool
}

// FullScan matches every stock that passes the universe gates.
type FullScan struct{}

func (FullScan) Name() string                                { return "full" }
func (FullScan) Bearish() bool                               { return false }
func (FullScan) match(*Snapshot, config.ScreenerConfig) bool { return true }

// BreakoutScan matches a close above the lookback resistance on heavy volume.
type BreakoutScan struct{}

func (BreakoutScan) Name() string  { return "breakout" }
func (BreakoutScan) Bearish() bool { return false }
func (BreakoutScan) match(s *Snapshot, cfg config.ScreenerConfig) bool {
	return s.Breakout && s.VolumeRatio >= cfg.VolumeRatio
}

// ConsolidationScan matches stocks trading in a tight range.
type ConsolidationScan struct{}

func (ConsolidationScan) Name() string  { return "consolidation" }
func (ConsolidationScan) Bearish() bool { return false }
func (ConsolidationScan) match(s *Snapshot, _ config.ScreenerConfig) bool {
	return s.Consolidating
}

// VolumeScan matches unusual volume.
type VolumeScan struct{}

func (VolumeScan) Name() string  { return "volume" }
func (VolumeScan) Bearish() bool { return false }
func (VolumeScan) match(s *Snapshot, cfg config.ScreenerConfig) bool {
	return s.VolumeRatio >= cfg.VolumeRatio
}

// RSIScan matches an RSI inside [Min, Max].
type RSIScan struct {
	Min, Max float64
}

func (m RSIScan) Name() string { return fmt.Sprintf("rsi(%g-%g)", m.Min, m.Max) }
func (RSIScan) Bearish() bool  { return false }
func (m RSIScan) match(s *Snapshot, _ config.ScreenerConfig) bool {
	return s.RSI >= m.Min && s.RSI <= m.Max
}

// CCIScan matches a CCI inside [Min, Max].
type CCIScan struct {
	Min, Max float64
}

func (m CCIScan) Name() string { return fmt.Sprintf("cci(%g-%g)", m.Min, m.Max) }
func (CCIScan) Bearish() bool  { return false }
func (m CCIScan) match(s *Snapshot, _ config.ScreenerConfig) bool {
	return s.CCI >= m.Min && s.CCI <= m.Max
}

// ReversalKind is the sub-type of a reversal scan.
type ReversalKind int

const (
	ReversalBuySignal ReversalKind = iota
	ReversalSellSignal
	ReversalMomentumGainer
	ReversalAtMA
	ReversalVolumeSpread
	ReversalNarrowRange
)

var reversalNames = map[ReversalKind]string{
	ReversalBuySignal:      "buy-signal",
	ReversalSellSignal:     "sell-signal",
	ReversalMomentumGainer: "momentum",
	ReversalAtMA:           "ma",
	ReversalVolumeSpread:   "vsa",
	ReversalNarrowRange:    "nr",
}

func (k ReversalKind) String() string {
	if name, ok := reversalNames[k]; ok {
		return name
	}
	return fmt.Sprintf("reversal(%d)", int(k))
}

// ReversalScan looks for a turn in price. MALength applies to ReversalAtMA
// and NRLength to ReversalNarrowRange.
type ReversalScan struct {
	Kind     ReversalKind
	MALength int
	NRLength int
}

func (m ReversalScan) Name() string {
	switch m.Kind {
	case ReversalAtMA:
		return fmt.Sprintf("reversal(ma %d)", m.MALength)
	case ReversalNarrowRange:
		return fmt.Sprintf("reversal(nr%d)", m.NRLength)
	}
	return "reversal(" + m.Kind.String() + ")"
}

func (m ReversalScan) Bearish() bool { return m.Kind == ReversalSellSignal }

func (m ReversalScan) match(s *Snapshot, cfg config.ScreenerConfig) bool {
	c := s.Candles
	switch m.Kind {
	case ReversalBuySignal:
		return s.Pattern != nil && s.Pattern.Direction == analysis.PatternBullish && s.RSI < 70
	case ReversalSellSignal:
		return s.Pattern != nil && s.Pattern.Direction == analysis.PatternBearish && s.RSI > 30
	case ReversalMomentumGainer:
		n := len(c)
		return n >= 4 &&
			c[n-1].Close > c[n-2].Close && c[n-2].Close > c[n-3].Close &&
			c[n-1].Close > c[n-1].Open && c[n-2].Close > c[n-2].Open && c[n-3].Close > c[n-3].Open &&
			indicators.RisingVolume(c, 2)
	case ReversalAtMA:
		sma := indicators.CalculateSMA(models.Closes(c), m.MALength)
		return sma != nil && indicators.CrossedAbove(models.Closes(c), sma)
	case ReversalVolumeSpread:
		atr, err := indicators.ATR(c, 14)
		if err != nil {
			return false
		}
		last := c[len(c)-1]
		spread := indicators.Spread(last)
		upperHalf := spread > 0 && last.Close >= last.Low+spread/2
		return s.VolumeRatio >= cfg.VolumeRatio && spread < 0.7*indicators.Last(atr) && upperHalf
	case ReversalNarrowRange:
		return indicators.IsNarrowRange(c, m.NRLength)
	}
	return false
}

// ChartPatternKind is the sub-type of a chart pattern scan.
type ChartPatternKind int

const (
	PatternBullishInsideBar ChartPatternKind = iota
	PatternBearishInsideBar
	PatternMAConfluence
	PatternTrendlineSupport
)

var chartPatternNames = map[ChartPatternKind]string{
	PatternBullishInsideBar: "bullish-inside-bar",
	PatternBearishInsideBar: "bearish-inside-bar",
	PatternMAConfluence:     "confluence",
	PatternTrendlineSupport: "trendline",
}

func (k ChartPatternKind) String() string {
	if name, ok := chartPatternNames[k]; ok {
		return name
	}
	return fmt.Sprintf("pattern(%d)", int(k))
}

// ChartPatternScan looks for a multi-candle structure.
type ChartPatternScan struct {
	Kind ChartPatternKind
}

func (m ChartPatternScan) Name() string  { return "pattern(" + m.Kind.String() + ")" }
func (m ChartPatternScan) Bearish() bool { return m.Kind == PatternBearishInsideBar }

// confluenceGap is the widest gap between the 50 and 200 day averages that
// still counts as converged.
const confluenceGap = 0.01

// trendlineTolerance is how far the last low may sit from the support line.
const trendlineTolerance = 0.02

func (m ChartPatternScan) match(s *Snapshot, _ config.ScreenerConfig) bool {
	c := s.Candles
	n := len(c)
	switch m.Kind {
	case PatternBullishInsideBar, PatternBearishInsideBar:
		if n < 2 || !patterns.IsInsideBar(c[n-2], c[n-1]) {
			return false
		}
		mother := c[n-2]
		if m.Kind == PatternBullishInsideBar {
			return mother.Close > mother.Open
		}
		return mother.Close < mother.Open
	case PatternMAConfluence:
		if s.SMA200 == 0 {
			return false
		}
		return math.Abs(s.SMA50-s.SMA200)/s.SMA200 <= confluenceGap
	case PatternTrendlineSupport:
		line, err := indicators.SupportTrendline(c, s.Lookback)
		if err != nil || line.Slope <= 0 || line.Value <= 0 {
			return false
		}
		last := c[n-1]
		return last.Close >= line.Value && math.Abs(last.Low-line.Value)/line.Value <= trendlineTolerance
	}
	return false
}

// ParseMode builds a Mode from a command-line name and its arguments.
func ParseMode(name string, args []string) (Mode, error) {
	num := func(i int, def float64) (float64, error) {
		if i >= len(args) {
			return def, nil
		}
		v, err := strconv.ParseFloat(args[i], 64)
		if err != nil {
			return 0, errors.Wrapf(errors.ErrInvalidMode, "argument %q of %s is not a number", args[i], name)
		}
		return v, nil
	}

	switch strings.ToLower(name) {
	case "full", "all":
		return FullScan{}, nil
	case "breakout":
		return BreakoutScan{}, nil
	case "consolidation", "consolidating":
		return ConsolidationScan{}, nil
	case "volume":
		return VolumeScan{}, nil
	case "rsi":
		lo, err := num(0, 30)
		if err != nil {
			return nil, err
		}
		hi, err := num(1, 70)
		if err != nil {
			return nil, err
		}
		if lo > hi || lo < 0 || hi > 100 {
			return nil, errors.Wrapf(errors.ErrInvalidMode, "rsi bounds %g-%g", lo, hi)
		}
		return RSIScan{Min: lo, Max: hi}, nil
	case "cci":
		lo, err := num(0, -100)
		if err != nil {
			return nil, err
		}
		hi, err := num(1, 100)
		if err != nil {
			return nil, err
		}
		if lo > hi {
			return nil, errors.Wrapf(errors.ErrInvalidMode, "cci bounds %g-%g", lo, hi)
		}
		return CCIScan{Min: lo, Max: hi}, nil
	case "reversal":
		if len(args) == 0 {
			return nil, errors.Wrap(errors.ErrInvalidMode, "reversal needs a kind")
		}
		for kind, kname := range reversalNames {
			if kname != strings.ToLower(args[0]) {
				continue
			}
			m := ReversalScan{Kind: kind, MALength: 44, NRLength: 7}
			length, err := num(1, 0)
			if err != nil {
				return nil, err
			}
			if length > 0 {
				m.MALength, m.NRLength = int(length), int(length)
			}
			if m.MALength < 2 || m.NRLength < 2 {
				return nil, errors.Wrapf(errors.ErrInvalidMode, "reversal length %g", length)
			}
			return m, nil
		}
		return nil, errors.Wrapf(errors.ErrInvalidMode, "unknown reversal kind %q", args[0])
	case "pattern", "chart":
		if len(args) == 0 {
			return nil, errors.Wrap(errors.ErrInvalidMode, "pattern needs a kind")
		}
		for kind, kname := range chartPatternNames {
			if kname == strings.ToLower(args[0]) {
				return ChartPatternScan{Kind: kind}, nil
			}
		}
		return nil, errors.Wrapf(errors.ErrInvalidMode, "unknown chart pattern %q", args[0])
	}
	return nil, errors.Wrapf(errors.ErrInvalidMode, "unknown mode %q", name)
}

// ModeNames lists the accepted mode names for help text.
func ModeNames() []string {
	return []string{"full", "breakout", "consolidation", "volume", "rsi", "cci", "reversal", "pattern"}
}
