package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"nse-screener/internal/backtest"
	"nse-screener/internal/report"
	"nse-screener/internal/scan"
	"nse-screener/internal/screening"
	"nse-screener/internal/store"
)

const modeHelp = `Modes:
  full                          every stock that passes the price and volume gates
  breakout                      close above the lookback high
  consolidation                 trading range within consolidation_percent
  volume                        volume above volume_ratio times its average
  rsi [min] [max]               RSI inside [min, max] (default 30 70)
  cci [min] [max]               CCI inside [min, max] (default -100 100)
  reversal <kind> [length]      buy-signal, sell-signal, momentum, ma, vsa, nr
  pattern <kind>                bullish-inside-bar, bearish-inside-bar, confluence, trendline`

// runOptions are the flags shared by scan, backtest and schedule.
type runOptions struct {
	stocks     []string
	cache      bool
	shuffle    bool
	xlsx       bool
	save       bool
	period     int
	iterations int
	ledger     bool
}

func addRunFlags(cmd *cobra.Command, opts *runOptions) {
	cmd.Flags().StringSliceVar(&opts.stocks, "stocks", nil, "comma separated stock codes, overrides the configured universe")
	cmd.Flags().BoolVar(&opts.cache, "cache", true, "read and write the candle cache (default from config)")
	cmd.Flags().BoolVar(&opts.shuffle, "shuffle", true, "shuffle the universe before scanning (default from config)")
	cmd.Flags().BoolVar(&opts.xlsx, "xlsx", false, "export the result tables to an xlsx workbook")
	cmd.Flags().BoolVar(&opts.save, "save", false, "persist the run and its rows to the database")
}

// flagOrConfig returns the flag value when it was given explicitly and the
// configured value otherwise.
func flagOrConfig(cmd *cobra.Command, name string, flag, configured bool) bool {
	if cmd.Flags().Changed(name) {
		return flag
	}
	return configured
}

func newScanCmd(app *App) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:     "scan <mode> [args...]",
		Short:   "Screen the stock universe",
		Long:    "Screen every stock of the universe with one mode and print the matches.\n\n" + modeHelp,
		Example: "  screener scan breakout\n  screener scan rsi 20 40 --stocks SBIN,TCS,INFY\n  screener scan reversal ma 50 --xlsx",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := screening.ParseMode(args[0], args[1:])
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			_, err = executeRun(ctx, cmd, app, mode, opts, false)
			return err
		},
	}
	addRunFlags(cmd, opts)
	return cmd
}

func newBacktestCmd(app *App) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "backtest <mode> [args...]",
		Short: "Replay a scan over past sessions and grade its accuracy",
		Long: `Replay a scan over past sessions. Every match is graded against the closes
1, 2, 3, 4, 5, 10, 15, 22 and 30 sessions later (up to --period) and the
results are summarized per stock.

` + modeHelp,
		Example: "  screener backtest breakout --period 10\n  screener backtest reversal sell-signal --stocks ITC,HDFCBANK",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := screening.ParseMode(args[0], args[1:])
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			_, err = executeRun(ctx, cmd, app, mode, opts, true)
			return err
		},
	}
	addRunFlags(cmd, opts)
	cmd.Flags().IntVar(&opts.period, "period", 0, "sessions to grade each match over, 1-30 (default from config)")
	cmd.Flags().IntVar(&opts.iterations, "iterations", 0, "past sessions to replay (default derived from the unit budget)")
	cmd.Flags().BoolVar(&opts.ledger, "ledger", false, "print every graded match, not only the summary")
	return cmd
}

// executeRun resolves the universe, runs the scan and reports, persists
// and exports its outcome.
func executeRun(ctx context.Context, cmd *cobra.Command, app *App, mode screening.Mode, opts *runOptions, backtesting bool) (*scan.Outcome, error) {
	output := NewOutput(cmd)
	cfg := app.Config

	shuffle := flagOrConfig(cmd, "shuffle", opts.shuffle, cfg.Screener.Shuffle)
	symbols, err := app.Universe().Resolve(ctx, opts.stocks, shuffle)
	if err != nil {
		return nil, err
	}

	orch, err := app.Orchestrator()
	if err != nil {
		return nil, err
	}

	label := "Scanning"
	if backtesting {
		label = "Backtesting"
	}
	req := scan.Request{
		Mode:       mode,
		Symbols:    symbols,
		Backtest:   backtesting,
		Period:     opts.period,
		Iterations: opts.iterations,
		UseCache:   flagOrConfig(cmd, "cache", opts.cache, cfg.Screener.CacheEnabled),
		Progress: func(p scan.Progress) {
			output.Progress(p.Drained, p.Total, fmt.Sprintf("%s %s (%d found)", label, mode.Name(), p.Found))
		},
		Flush: func(s *backtest.Summary) {
			pct, _ := s.Total.Overall.Percent()
			app.Logger.Info().
				Int("stocks", len(s.Rows)).
				Int("graded", s.Total.Overall.Total()).
				Float64("accuracy", pct).
				Msg("Interim backtest summary")
		},
	}

	out, err := orch.Run(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := renderOutcome(output, out, opts.ledger); err != nil {
		return out, err
	}

	if opts.save {
		if err := saveOutcome(ctx, app, out); err != nil {
			output.Warning("Failed to save run: %v", err)
		} else if !output.IsJSON() {
			output.Dim("Saved run %s", out.RunID)
		}
	}

	if opts.xlsx || (!cmd.Flags().Changed("xlsx") && cfg.Report.XLSX) {
		path, err := exportOutcome(cfg.Report.OutputDir, out)
		if err != nil {
			output.Warning("Failed to export workbook: %v", err)
		} else if !output.IsJSON() {
			output.Info("Exported %s", path)
		}
	}

	return out, nil
}

type outcomeJSON struct {
	RunID     string             `json:"run_id"`
	Mode      string             `json:"mode"`
	Kind      string             `json:"kind"`
	Period    int                `json:"period,omitempty"`
	Units     int                `json:"units"`
	Workers   int                `json:"workers"`
	Processed int64              `json:"processed"`
	Matched   int64              `json:"matched"`
	Failed    int                `json:"failed"`
	Cancelled bool               `json:"cancelled"`
	Stalled   bool               `json:"stalled"`
	Duration  string             `json:"duration"`
	Rows      []screening.Record `json:"rows"`
	Summary   []screening.Record `json:"summary,omitempty"`
}

func kindOf(out *scan.Outcome) string {
	if out.Backtest {
		return "backtest"
	}
	return "scan"
}

func renderOutcome(output *Output, out *scan.Outcome, ledger bool) error {
	if output.IsJSON() {
		doc := outcomeJSON{
			RunID:     out.RunID,
			Mode:      out.Mode,
			Kind:      kindOf(out),
			Period:    out.Period,
			Units:     out.Units,
			Workers:   out.Workers,
			Processed: out.Processed,
			Matched:   out.Matched,
			Failed:    out.Failed,
			Cancelled: out.Cancelled,
			Stalled:   out.Stalled,
			Duration:  out.Duration.String(),
			Rows:      out.Tables.Save,
		}
		if out.Summary != nil {
			doc.Summary = out.Summary.Save()
		}
		return output.JSON(doc)
	}

	plain := !output.ColorEnabled()
	if !out.Backtest || ledger {
		t := &report.Table{
			Title:   fmt.Sprintf("%s %s", strings.ToUpper(out.Mode), kindOf(out)),
			Columns: out.Tables.Columns,
			Rows:    out.Tables.Display,
			Plain:   plain,
		}
		if err := t.Render(output.Writer()); err != nil {
			return err
		}
		output.Println()
	}

	if out.Summary != nil {
		t := &report.Table{
			Title:   fmt.Sprintf("Backtest summary (%d sessions)", out.Summary.Period),
			Columns: out.Summary.Columns(),
			Rows:    out.Summary.Display(),
			Plain:   plain,
		}
		if err := t.Render(output.Writer()); err != nil {
			return err
		}
		output.Println()
	}

	found := int64(out.Tables.Len())
	output.Bold("Found %s, processed %s units with %d workers in %s",
		FormatRatio(found, out.Processed), FormatCount(int64(out.Units)), out.Workers, FormatDuration(out.Duration))
	if out.Backtest {
		output.Dim("Replayed %d sessions, graded over %d sessions", out.Iterations, out.Period)
	}
	if out.Cancelled {
		output.Warning("Run cancelled; results are partial")
	}
	if out.Stalled {
		output.Warning("Result queue stalled; results are partial")
	}
	if out.Failed > 0 {
		output.Warning("%d units failed, see the log for details", out.Failed)
	}
	return nil
}

func saveOutcome(ctx context.Context, app *App, out *scan.Outcome) error {
	s, err := app.DataStore()
	if err != nil {
		return err
	}
	run := &store.Run{
		ID:        out.RunID,
		Kind:      kindOf(out),
		Mode:      out.Mode,
		StartedAt: out.StartedAt,
		Duration:  out.Duration,
		Units:     out.Units,
		Processed: out.Processed,
		Matched:   out.Matched,
		Cancelled: out.Cancelled,
		Period:    out.Period,
	}
	if err := s.SaveRun(ctx, run); err != nil {
		return err
	}

	saved := out.Tables.Save
	if out.Backtest {
		if err := s.SaveLedger(ctx, out.RunID, out.Ledger); err != nil {
			return err
		}
		// the summary is what runs show prints for a backtest
		saved = nil
		if out.Summary != nil {
			saved = out.Summary.Save()
		}
	}
	rows := make([]map[string]string, len(saved))
	for i, r := range saved {
		rows[i] = r
	}
	return s.SaveResults(ctx, out.RunID, rows)
}

func exportOutcome(dir string, out *scan.Outcome) (string, error) {
	path := filepath.Join(dir, report.FileName(kindOf(out), out.Mode, out.StartedAt))
	sheets := []report.Sheet{{
		Name:    "Results",
		Columns: out.Tables.Columns,
		Rows:    out.Tables.Save,
	}}
	if out.Summary != nil {
		sheets = append(sheets, report.Sheet{
			Name:    "Summary",
			Columns: out.Summary.Columns(),
			Rows:    out.Summary.Save(),
		})
	}
	return path, report.ExportXLSX(path, sheets...)
}
