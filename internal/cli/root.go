// Package cli provides the command-line interface for the screener.
package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"nse-screener/internal/config"
	"nse-screener/internal/logging"
	"nse-screener/internal/scan"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2024-05-01"
)

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	return newRootCmd(&App{
		Config:  cfg,
		Logger:  logger,
		Metrics: scan.NewMetrics(),
	})
}

func newRootCmd(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "screener",
		Short: "NSE stock screener and backtester",
		Long: `screener scans NSE stocks for technical setups and replays those scans
over past sessions to measure how often they were right.

Use 'screener scan --help' for the available scan modes.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if dir, _ := cmd.Flags().GetString("config"); dir != "" && dir != app.Config.Dir {
				cfg, err := config.Load(dir)
				if err != nil {
					return err
				}
				app.Config = cfg
			}

			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}

			addr, _ := cmd.Flags().GetString("metrics-addr")
			if addr == "" {
				addr = app.Config.Metrics.Addr
			}
			app.ServeMetrics(addr)
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.Close()
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/nse-screener)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().String("metrics-addr", "", "serve prometheus metrics on this address, e.g. :9108")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newScanCmd(app))
	rootCmd.AddCommand(newBacktestCmd(app))
	rootCmd.AddCommand(newScheduleCmd(app))
	rootCmd.AddCommand(newCacheCmd(app))
	rootCmd.AddCommand(newRunsCmd(app))

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("NSE Screener v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate the screener configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"screener": app.Config.Screener,
					"backtest": app.Config.Backtest,
					"provider": app.Config.Provider,
					"universe": app.Config.Universe,
					"store":    app.Config.Store,
					"report":   app.Config.Report,
					"schedule": app.Config.Schedule,
				})
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": app.Config.Dir})
			} else {
				output.Println(app.Config.Dir)
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("✓ Configuration is valid")
			}
			if !app.Config.HasKiteCredentials() {
				output.Warning("Kite credentials are missing; scans will fail until credentials.toml is filled in")
			}
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	s := cfg.Screener
	output.Bold("Screener")
	output.Printf("  History:          %d days (%s candles)\n", s.PeriodDays, s.Interval)
	output.Printf("  Lookback:         %d candles\n", s.DaysToLookback)
	output.Printf("  Volume Ratio:     %.1fx\n", s.VolumeRatio)
	output.Printf("  Consolidation:    %.1f%%\n", s.ConsolidationPercent)
	output.Printf("  LTP Range:        %.2f - %.2f\n", s.MinLTP, s.MaxLTP)
	output.Printf("  Min Volume:       %s\n", FormatCount(s.MinVolume))
	output.Printf("  Cache:            %v\n", s.CacheEnabled)
	output.Printf("  Shuffle:          %v\n", s.Shuffle)
	output.Printf("  Max Workers:      %d\n", s.MaxWorkers)
	output.Printf("  Drain Timeout:    %s\n", s.DrainTimeout)
	output.Println()

	b := cfg.Backtest
	output.Bold("Backtest")
	output.Printf("  Period:           %d\n", b.Period)
	output.Printf("  Unit Budget:      %d\n", b.UnitBudget)
	output.Printf("  Max Iterations:   %d\n", b.MaxIterations)
	output.Println()

	output.Bold("Data")
	output.Printf("  Exchange:         %s\n", cfg.Provider.Exchange)
	output.Printf("  Rate Limit:       %.1f req/s\n", cfg.Provider.RequestsPerSecond)
	output.Printf("  Universe:         %s\n", cfg.Universe.Source)
	output.Printf("  Store:            %s\n", cfg.Store.Path)
	output.Printf("  Reports:          %s\n", cfg.Report.OutputDir)
	output.Println()

	output.Bold("Schedule")
	output.Printf("  Cron:             %s\n", cfg.Schedule.Cron)
	output.Printf("  Mode:             %s %v\n", cfg.Schedule.Mode, cfg.Schedule.Args)
}
