package screening

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"nse-screener/internal/analysis"
	"nse-screener/pkg/utils"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	bold   = color.New(color.Bold, color.FgCyan).SprintFunc()
)

// saveRecord renders the snapshot as plain values.
func saveRecord(symbol string, s *Snapshot) Record {
	pattern := "-"
	if s.Pattern != nil {
		pattern = s.Pattern.Name
	}
	return Record{
		ColStock:         symbol,
		ColConsolidation: fmt.Sprintf("%.2f", s.RangePercent),
		ColBreakout:      fmt.Sprintf("%.2f", s.Resistance),
		ColMASignal:      s.MASignal,
		ColVolume:        fmt.Sprintf("%.2f", s.VolumeRatio),
		ColLTP:           fmt.Sprintf("%.2f", s.LTP),
		Col52WkHigh:      fmt.Sprintf("%.2f", s.High52),
		Col52WkLow:       fmt.Sprintf("%.2f", s.Low52),
		ColChange:        fmt.Sprintf("%.2f", s.Change),
		ColRSI:           fmt.Sprintf("%.0f", s.RSI),
		ColTrend:         s.Trend,
		ColPattern:       pattern,
		ColCCI:           fmt.Sprintf("%.0f", s.CCI),
	}
}

// displayRecord renders the snapshot for the terminal.
func displayRecord(symbol string, s *Snapshot, volumeRatio float64) Record {
	consolidation := fmt.Sprintf("Range:%.2f%%", s.RangePercent)
	if s.Consolidating {
		consolidation = green(consolidation)
	} else {
		consolidation = red(consolidation)
	}

	breakout := fmt.Sprintf("BO:%.2f R:%.2f", s.Resistance, s.Support)
	if s.Breakout {
		breakout = green(breakout)
	} else {
		breakout = yellow(breakout)
	}

	volume := fmt.Sprintf("%.2fx", s.VolumeRatio)
	if s.VolumeRatio >= volumeRatio {
		volume = green(volume)
	}

	ltp := fmt.Sprintf("%.2f", s.LTP)
	change := utils.FormatPercent(s.Change)
	if s.Change >= 0 {
		ltp, change = green(ltp), green(change)
	} else {
		ltp, change = red(ltp), red(change)
	}

	rsi := fmt.Sprintf("%.0f", s.RSI)
	switch {
	case s.RSI >= 70:
		rsi = red(rsi)
	case s.RSI <= 30:
		rsi = green(rsi)
	}

	pattern := "-"
	if s.Pattern != nil {
		switch s.Pattern.Direction {
		case analysis.PatternBullish:
			pattern = green(s.Pattern.Name)
		case analysis.PatternBearish:
			pattern = red(s.Pattern.Name)
		default:
			pattern = yellow(s.Pattern.Name)
		}
	}

	return Record{
		ColStock:         bold(symbol),
		ColConsolidation: consolidation,
		ColBreakout:      breakout,
		ColMASignal:      colorSignal(s.MASignal),
		ColVolume:        volume,
		ColLTP:           ltp,
		Col52WkHigh:      fmt.Sprintf("%.2f", s.High52),
		Col52WkLow:       fmt.Sprintf("%.2f", s.Low52),
		ColChange:        change,
		ColRSI:           rsi,
		ColTrend:         colorTrend(s.Trend),
		ColPattern:       pattern,
		ColCCI:           fmt.Sprintf("%.0f", s.CCI),
	}
}

func colorSignal(signal string) string {
	switch signal {
	case SignalBullish, SignalGoldenCross:
		return green(signal)
	case SignalBearish, SignalDeathCross:
		return red(signal)
	}
	return signal
}

func colorTrend(trend string) string {
	switch {
	case strings.HasSuffix(trend, "Up"):
		return green(trend)
	case strings.HasSuffix(trend, "Down"):
		return red(trend)
	case trend == "Sideways":
		return yellow(trend)
	}
	return trend
}
