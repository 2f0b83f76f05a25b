// Command screener scans and backtests NSE stocks.
package main

import (
	"fmt"
	"os"

	"nse-screener/internal/cli"
	"nse-screener/internal/config"
	"nse-screener/internal/errors"
	"nse-screener/internal/logging"
)

func main() {
	cfg, err := config.Load(os.Getenv("SCREENER_CONFIG_DIR"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	logger := logging.NewLoggerWithConfig(cfg.Logging())

	if err := cli.NewRootCmd(cfg, logger).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, errors.ErrConfigInvalid), errors.Is(err, errors.ErrInvalidMode):
		return 2
	case errors.Is(err, errors.ErrNotAuthenticated):
		return 3
	}
	return 1
}
