package cli

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"nse-screener/internal/provider"
	"nse-screener/internal/store"
	"nse-screener/pkg/utils"
)

func newCacheCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Candle cache management",
		Long:  "Download, inspect and clear the candle history kept in the local database.",
	}

	cmd.AddCommand(newCacheWarmCmd(app))
	cmd.AddCommand(newCacheClearCmd(app))
	cmd.AddCommand(newCacheStatsCmd(app))
	return cmd
}

func newCacheWarmCmd(app *App) *cobra.Command {
	var stocks []string
	var concurrency int

	cmd := &cobra.Command{
		Use:   "warm",
		Short: "Download the history of every stock of the universe",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			symbols, err := app.Universe().Resolve(ctx, stocks, false)
			if err != nil {
				return err
			}
			cache, err := app.PriceCache()
			if err != nil {
				return err
			}

			if concurrency <= 0 {
				concurrency = app.Config.Provider.WarmConcurrency
			}
			progress := make(chan int, len(symbols))
			done := make(chan struct{})
			go func() {
				defer close(done)
				for n := range progress {
					output.Progress(n, len(symbols), "Downloading history")
				}
			}()

			stats, err := provider.Warm(ctx, cache, symbols, concurrency, func(n, _ int) { progress <- n })
			close(progress)
			<-done

			if output.IsJSON() {
				if jerr := output.JSON(stats); jerr != nil {
					return jerr
				}
			} else {
				output.Success("Loaded %s of %s stocks", FormatCount(stats.Loaded), FormatCount(int64(stats.Total)))
				if stats.Failed > 0 {
					output.Warning("%s stocks had no usable history", FormatCount(stats.Failed))
				}
			}
			return err
		},
	}
	cmd.Flags().StringSliceVar(&stocks, "stocks", nil, "comma separated stock codes, overrides the configured universe")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "parallel downloads (default from config)")
	return cmd
}

func newCacheClearCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "clear [symbols...]",
		Short: "Delete cached candles, of the given stocks or of all",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			s, err := app.DataStore()
			if err != nil {
				return err
			}

			targets := []string{""}
			if len(args) > 0 {
				targets = targets[:0]
				for _, a := range args {
					targets = append(targets, utils.NormalizeSymbol(a))
				}
			}

			var deleted int64
			for _, symbol := range targets {
				n, err := s.DeleteCandles(cmd.Context(), symbol)
				if err != nil {
					return err
				}
				deleted += n
			}

			if output.IsJSON() {
				return output.JSON(map[string]int64{"deleted": deleted})
			}
			output.Success("Deleted %s candles", FormatCount(deleted))
			return nil
		},
	}
}

func newCacheStatsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show what the candle cache holds",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			s, err := app.DataStore()
			if err != nil {
				return err
			}
			stats, err := s.CandleStats(cmd.Context())
			if err != nil {
				return err
			}
			synced := s.GetLastSync(store.SyncInstruments)

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"symbols":          stats.Symbols,
					"candles":          stats.Candles,
					"oldest":           stats.Oldest,
					"newest":           stats.Newest,
					"instruments_sync": synced,
				})
			}

			output.Bold("Candle Cache")
			output.Printf("  Stocks:           %s\n", FormatCount(int64(stats.Symbols)))
			output.Printf("  Candles:          %s\n", FormatCount(stats.Candles))
			output.Printf("  Oldest:           %s\n", FormatDate(stats.Oldest))
			output.Printf("  Newest:           %s\n", FormatDate(stats.Newest))
			output.Printf("  Instruments Sync: %s\n", FormatDateTime(synced))
			if !stats.Newest.IsZero() && !utils.IsFresh(stats.Newest, nowFunc()) {
				output.Warning("Cache is behind the last session (%s)", FormatDate(utils.LastSessionDate(nowFunc())))
			}
			return nil
		},
	}
}

var nowFunc = time.Now
