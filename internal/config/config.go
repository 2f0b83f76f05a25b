// Package config provides configuration management for the screener.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"nse-screener/internal/logging"
)

// Config holds all application configuration.
type Config struct {
	Screener    ScreenerConfig `mapstructure:"screener"`
	Backtest    BacktestConfig `mapstructure:"backtest"`
	Provider    ProviderConfig `mapstructure:"provider"`
	Universe    UniverseConfig `mapstructure:"universe"`
	Store       StoreConfig    `mapstructure:"store"`
	Report      ReportConfig   `mapstructure:"report"`
	Log         LogConfig      `mapstructure:"log"`
	Metrics     MetricsConfig  `mapstructure:"metrics"`
	Schedule    ScheduleConfig `mapstructure:"schedule"`
	Credentials Credentials    `mapstructure:"-"` // Loaded separately
	Dir         string         `mapstructure:"-"`
}

// ScreenerConfig holds the thresholds every work unit carries as a snapshot.
type ScreenerConfig struct {
	PeriodDays           int           `mapstructure:"period_days"`      // calendar days of history to fetch
	Interval             string        `mapstructure:"interval"`         // candle duration: day, 60minute, ...
	DaysToLookback       int           `mapstructure:"days_to_lookback"` // consolidation/breakout window
	MinCandles           int           `mapstructure:"min_candles"`
	VolumeRatio          float64       `mapstructure:"volume_ratio"`
	ConsolidationPercent float64       `mapstructure:"consolidation_percent"`
	MinLTP               float64       `mapstructure:"min_ltp"`
	MaxLTP               float64       `mapstructure:"max_ltp"`
	MinVolume            int64         `mapstructure:"min_volume"`
	Shuffle              bool          `mapstructure:"shuffle"`
	CacheEnabled         bool          `mapstructure:"cache_enabled"`
	MaxWorkers           int           `mapstructure:"max_workers"` // 0 = number of CPUs
	SiblingScans         int           `mapstructure:"sibling_scans"`
	DrainTimeout         time.Duration `mapstructure:"drain_timeout"`
}

// BacktestConfig holds backtest replay configuration.
type BacktestConfig struct {
	Period        int `mapstructure:"period"`
	UnitBudget    int `mapstructure:"unit_budget"`
	MaxIterations int `mapstructure:"max_iterations"`
	FlushEvery    int `mapstructure:"flush_every"`
}

// ProviderConfig holds data provider configuration.
type ProviderConfig struct {
	Exchange          string        `mapstructure:"exchange"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	RetryAttempts     int           `mapstructure:"retry_attempts"`
	RetryInitialDelay time.Duration `mapstructure:"retry_initial_delay"`
	RetryMaxDelay     time.Duration `mapstructure:"retry_max_delay"`
	Proxy             string        `mapstructure:"proxy"`
	WarmConcurrency   int           `mapstructure:"warm_concurrency"`
	BreakerThreshold  int           `mapstructure:"breaker_threshold"` // consecutive outage failures
	BreakerCooldown   time.Duration `mapstructure:"breaker_cooldown"`
}

// UniverseConfig selects where the list of stocks comes from.
type UniverseConfig struct {
	Source  string   `mapstructure:"source"` // static, file, instruments
	Symbols []string `mapstructure:"symbols"`
	File    string   `mapstructure:"file"`
}

// StoreConfig holds the sqlite database location.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// ReportConfig holds report output configuration.
type ReportConfig struct {
	OutputDir string `mapstructure:"output_dir"`
	XLSX      bool   `mapstructure:"xlsx"`
}

// LogConfig mirrors logging.LogConfig for file based configuration.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// MetricsConfig holds the optional prometheus listener.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// ScheduleConfig holds the default recurring scan.
type ScheduleConfig struct {
	Cron string   `mapstructure:"cron"`
	Mode string   `mapstructure:"mode"`
	Args []string `mapstructure:"args"`
}

// Credentials holds API credentials.
type Credentials struct {
	Kite KiteCredentials `mapstructure:"kite"`
}

// KiteCredentials holds Kite Connect API credentials.
type KiteCredentials struct {
	APIKey      string `mapstructure:"api_key"`
	APISecret   string `mapstructure:"api_secret"`
	AccessToken string `mapstructure:"access_token"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/nse-screener"
	}
	return filepath.Join(home, ".config", "nse-screener")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. Missing files
// are created from templates and the defaults are used.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{Dir: configDir}

	if err := loadConfigFile(configDir, cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	if err := loadCredentials(configDir, &cfg.Credentials); err != nil {
		return nil, fmt.Errorf("loading credentials.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a configuration built only from defaults. It panics if
// the built-in defaults do not decode, which is a programming error.
func Default() *Config {
	cfg, err := defaults(DefaultConfigDir())
	if err != nil {
		panic(err)
	}
	return cfg
}

func defaults(dir string) (*Config, error) {
	v := viper.New()
	setDefaults(v, dir)
	cfg := &Config{Dir: dir}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding defaults: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("screener.period_days", 450)
	v.SetDefault("screener.interval", "day")
	v.SetDefault("screener.days_to_lookback", 22)
	v.SetDefault("screener.min_candles", 60)
	v.SetDefault("screener.volume_ratio", 2.5)
	v.SetDefault("screener.consolidation_percent", 10.0)
	v.SetDefault("screener.min_ltp", 20.0)
	v.SetDefault("screener.max_ltp", 50000.0)
	v.SetDefault("screener.min_volume", 10000)
	v.SetDefault("screener.shuffle", true)
	v.SetDefault("screener.cache_enabled", true)
	v.SetDefault("screener.max_workers", 0)
	v.SetDefault("screener.sibling_scans", 1)
	v.SetDefault("screener.drain_timeout", "2m")

	v.SetDefault("backtest.period", 30)
	v.SetDefault("backtest.unit_budget", 3000)
	v.SetDefault("backtest.max_iterations", 60)
	v.SetDefault("backtest.flush_every", 50)

	v.SetDefault("provider.exchange", "NSE")
	v.SetDefault("provider.requests_per_second", 3.0)
	v.SetDefault("provider.burst", 3)
	v.SetDefault("provider.retry_attempts", 3)
	v.SetDefault("provider.retry_initial_delay", "500ms")
	v.SetDefault("provider.retry_max_delay", "5s")
	v.SetDefault("provider.warm_concurrency", 4)
	v.SetDefault("provider.breaker_threshold", 10)
	v.SetDefault("provider.breaker_cooldown", "30s")

	v.SetDefault("universe.source", "instruments")

	v.SetDefault("store.path", filepath.Join(configDir, "screener.db"))

	v.SetDefault("report.output_dir", filepath.Join(configDir, "reports"))
	v.SetDefault("report.xlsx", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", true)
	v.SetDefault("log.file", true)
	v.SetDefault("log.file_path", filepath.Join(configDir, "logs", "screener.log"))
	v.SetDefault("log.max_size", 50)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age", 14)

	v.SetDefault("schedule.cron", "45 15 * * 1-5")
	v.SetDefault("schedule.mode", "breakout")
}

func loadConfigFile(configDir string, cfg *Config) error {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v, configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		if err := createTemplateConfig(configDir); err != nil {
			return err
		}
	}

	return v.Unmarshal(cfg)
}

func loadCredentials(configDir string, creds *Credentials) error {
	v := viper.New()
	v.SetConfigName("credentials")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return createTemplateCredentials(configDir)
		}
		return err
	}

	return v.Unmarshal(creds)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("KITE_API_KEY"); v != "" {
		cfg.Credentials.Kite.APIKey = v
	}
	if v := os.Getenv("KITE_API_SECRET"); v != "" {
		cfg.Credentials.Kite.APISecret = v
	}
	if v := os.Getenv("KITE_ACCESS_TOKEN"); v != "" {
		cfg.Credentials.Kite.AccessToken = v
	}
	if v := os.Getenv("SCREENER_CACHE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Screener.CacheEnabled = b
		}
	}
	if v := os.Getenv("SCREENER_STOCKS"); v != "" {
		cfg.Universe.Source = "static"
		cfg.Universe.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("SCREENER_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	s := c.Screener
	if s.DaysToLookback < 2 {
		return fmt.Errorf("days_to_lookback must be at least 2")
	}
	if s.MinCandles < s.DaysToLookback {
		return fmt.Errorf("min_candles must be >= days_to_lookback")
	}
	if s.VolumeRatio <= 0 {
		return fmt.Errorf("volume_ratio must be positive")
	}
	if s.ConsolidationPercent <= 0 || s.ConsolidationPercent > 100 {
		return fmt.Errorf("consolidation_percent must be between 0 and 100")
	}
	if s.MinLTP < 0 || (s.MaxLTP > 0 && s.MaxLTP < s.MinLTP) {
		return fmt.Errorf("min_ltp/max_ltp out of order")
	}
	if s.SiblingScans < 1 {
		return fmt.Errorf("sibling_scans must be at least 1")
	}
	if s.MaxWorkers < 0 {
		return fmt.Errorf("max_workers must be non-negative")
	}

	b := c.Backtest
	if b.Period < 1 || b.Period > 30 {
		return fmt.Errorf("backtest period must be between 1 and 30")
	}
	if b.UnitBudget < 1 || b.MaxIterations < 1 {
		return fmt.Errorf("backtest unit_budget and max_iterations must be positive")
	}
	if b.FlushEvery < 1 {
		return fmt.Errorf("backtest flush_every must be positive")
	}

	if c.Provider.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests_per_second must be positive")
	}

	switch c.Universe.Source {
	case "static":
		if len(c.Universe.Symbols) == 0 {
			return fmt.Errorf("universe source 'static' needs at least one symbol")
		}
	case "file":
		if c.Universe.File == "" {
			return fmt.Errorf("universe source 'file' needs a file path")
		}
	case "instruments":
	default:
		return fmt.Errorf("invalid universe source: %s (must be 'static', 'file' or 'instruments')", c.Universe.Source)
	}

	if c.Schedule.Cron != "" {
		if _, err := ParseSchedule(c.Schedule.Cron); err != nil {
			return err
		}
	}

	return nil
}

var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ParseSchedule parses a standard five field cron expression.
func ParseSchedule(expr string) (cron.Schedule, error) {
	sched, err := scheduleParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return sched, nil
}

// Logging converts the [log] section into a logger configuration.
func (c *Config) Logging() logging.LogConfig {
	return logging.LogConfig{
		Level:      c.Log.Level,
		Console:    c.Log.Console,
		File:       c.Log.File,
		FilePath:   c.Log.FilePath,
		MaxSize:    c.Log.MaxSize,
		MaxBackups: c.Log.MaxBackups,
		MaxAge:     c.Log.MaxAge,
	}
}

// HasKiteCredentials reports whether a live Kite session can be created.
func (c *Config) HasKiteCredentials() bool {
	return c.Credentials.Kite.APIKey != "" && c.Credentials.Kite.AccessToken != ""
}
