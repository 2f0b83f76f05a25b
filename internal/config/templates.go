package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# NSE Screener Configuration

[screener]
# Calendar days of history fetched per stock
period_days = 450
# Candle duration: day, 60minute, 15minute
interval = "day"
# Window used for consolidation and breakout detection
days_to_lookback = 22
# Stocks with fewer candles are skipped
min_candles = 60
# Today's volume must exceed the 20 day average by this factor
volume_ratio = 2.5
# Maximum range (percent) of a consolidating stock
consolidation_percent = 10.0
# Price gates
min_ltp = 20.0
max_ltp = 50000.0
# Minimum 20 day average volume
min_volume = 10000
# Shuffle the universe before dispatch
shuffle = true
# Persist downloaded candles in the local database
cache_enabled = true
# Worker count cap, 0 uses every CPU
max_workers = 0
# Number of independent scans sharing this machine
sibling_scans = 1
# Give up waiting for results after this long without progress
drain_timeout = "2m"

[backtest]
# Forward periods graded (max 30)
period = 30
# Approximate number of work units one backtest run may dispatch
unit_budget = 3000
max_iterations = 60
# Emit an intermediate summary after this many matches
flush_every = 50

[provider]
exchange = "NSE"
# Kite historical API allows 3 requests per second
requests_per_second = 3.0
burst = 3
retry_attempts = 3
retry_initial_delay = "500ms"
retry_max_delay = "5s"
proxy = ""
warm_concurrency = 4
# stop calling the API for breaker_cooldown after this many outage errors in a row
breaker_threshold = 10
breaker_cooldown = "30s"

[universe]
# static, file or instruments
source = "instruments"
symbols = []
file = ""

[report]
xlsx = false

[log]
level = "info"
console = true
file = true

[metrics]
# e.g. ":9108" to expose /metrics while scanning
addr = ""

[schedule]
cron = "45 15 * * 1-5"
mode = "breakout"
`

const credentialsTemplate = `# NSE Screener Credentials
# WARNING: Keep this file secure! Do not commit to version control.

[kite]
api_key = ""
api_secret = ""
access_token = ""
`

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}
	return nil
}

func createTemplateCredentials(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "credentials.toml")
	// Use restricted permissions for credentials file
	if err := os.WriteFile(path, []byte(credentialsTemplate), 0600); err != nil {
		return fmt.Errorf("writing credentials template: %w", err)
	}
	return nil
}
