// Package logging builds the screener's zerolog logger and the field
// helpers shared by scans, workers and the data provider.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string
	Console    bool
	File       bool
	FilePath   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
}

var levelLabels = map[string]string{
	"debug": "\033[36mDBG\033[0m",
	"info":  "\033[32mINF\033[0m",
	"warn":  "\033[33mWRN\033[0m",
	"error": "\033[31mERR\033[0m",
	"fatal": "\033[35mFTL\033[0m",
}

// NewLoggerWithConfig creates the process logger. Console output goes to
// stderr so tables rendered on stdout stay clean; the file sink rotates
// through lumberjack.
func NewLoggerWithConfig(cfg LogConfig) zerolog.Logger {
	var sinks []io.Writer

	if cfg.Console {
		sinks = append(sinks, zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.TimeOnly,
			FormatLevel: func(i interface{}) string {
				s, _ := i.(string)
				if label, ok := levelLabels[s]; ok {
					return label
				}
				return strings.ToUpper(s)
			},
		})
	}

	if cfg.File && cfg.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err == nil {
			sinks = append(sinks, &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   true,
			})
		}
	}

	var out io.Writer = io.Discard
	if len(sinks) == 1 {
		out = sinks[0]
	} else if len(sinks) > 1 {
		out = zerolog.MultiLevelWriter(sinks...)
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	return zerolog.New(out).With().Timestamp().Logger()
}

// SetDebugLevel sets the global log level to debug.
func SetDebugLevel() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

// WithSymbol adds a symbol to the logger context.
func WithSymbol(logger zerolog.Logger, symbol string) zerolog.Logger {
	return logger.With().Str("symbol", symbol).Logger()
}

// WithOperation adds an operation name to the logger context.
func WithOperation(logger zerolog.Logger, operation string) zerolog.Logger {
	return logger.With().Str("operation", operation).Logger()
}

// WithRunID tags every event of one orchestration run.
func WithRunID(logger zerolog.Logger, runID string) zerolog.Logger {
	return logger.With().Str("run_id", runID).Logger()
}

// WithWorker adds a worker id to the logger context.
func WithWorker(logger zerolog.Logger, workerID int) zerolog.Logger {
	return logger.With().Int("worker_id", workerID).Logger()
}

// WithUnit identifies one work unit: a stock at a historical offset.
func WithUnit(logger zerolog.Logger, symbol string, offset int) zerolog.Logger {
	return logger.With().Str("symbol", symbol).Int("offset", offset).Logger()
}

// ScanSummary is the closing record of one run.
type ScanSummary struct {
	Mode      string
	Backtest  bool
	Units     int
	Processed int64
	Matched   int64
	Failed    int
	Cancelled bool
	Stalled   bool
	Duration  time.Duration
}

// LogScanSummary logs the outcome of one orchestration run. Runs that lost
// units to failures or a stall log at warn level.
func LogScanSummary(logger zerolog.Logger, s ScanSummary) {
	event := logger.Info()
	if s.Failed > 0 || s.Stalled {
		event = logger.Warn()
	}
	event.
		Str("event", "scan_complete").
		Str("mode", s.Mode).
		Bool("backtest", s.Backtest).
		Int("units", s.Units).
		Int64("processed", s.Processed).
		Int64("matched", s.Matched).
		Int("failed", s.Failed).
		Bool("cancelled", s.Cancelled).
		Bool("stalled", s.Stalled).
		Dur("duration", s.Duration).
		Msg("Scan finished")
}

// LogAPICall logs a data provider call.
func LogAPICall(logger zerolog.Logger, method, endpoint string, duration time.Duration, err error) {
	event := logger.Debug().
		Str("event", "api_call").
		Str("method", method).
		Str("endpoint", endpoint).
		Dur("duration", duration)

	if err != nil {
		event.Err(err).Msg("API call failed")
	} else {
		event.Msg("API call completed")
	}
}
