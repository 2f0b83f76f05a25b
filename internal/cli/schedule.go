package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"nse-screener/internal/config"
	"nse-screener/internal/screening"
	"nse-screener/pkg/utils"
)

func newScheduleCmd(app *App) *cobra.Command {
	opts := &runOptions{}
	var expr string
	var runNow bool

	cmd := &cobra.Command{
		Use:   "schedule [mode] [args...]",
		Short: "Run a scan on a cron schedule",
		Long: `Run a scan repeatedly on a cron schedule in IST until interrupted.
The mode and schedule default to the [schedule] section of config.toml.
A run that is still going when the next one is due is skipped.

` + modeHelp,
		Example: "  screener schedule\n  screener schedule breakout --cron \"45 15 * * 1-5\" --save --xlsx",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			name, modeArgs := app.Config.Schedule.Mode, app.Config.Schedule.Args
			if len(args) > 0 {
				name, modeArgs = args[0], args[1:]
			}
			mode, err := screening.ParseMode(name, modeArgs)
			if err != nil {
				return err
			}

			if expr == "" {
				expr = app.Config.Schedule.Cron
			}
			sched, err := config.ParseSchedule(expr)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			job := func() {
				if ctx.Err() != nil {
					return
				}
				app.Logger.Info().Str("mode", mode.Name()).Msg("Scheduled scan starting")
				if _, err := executeRun(ctx, cmd, app, mode, opts, false); err != nil {
					app.Logger.Error().Err(err).Str("mode", mode.Name()).Msg("Scheduled scan failed")
				}
			}

			c := cron.New(
				cron.WithLocation(utils.IndiaLocation),
				cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
			)
			c.Schedule(sched, cron.FuncJob(job))

			if runNow {
				job()
			}

			c.Start()
			entries := c.Entries()
			if !output.IsJSON() && len(entries) > 0 {
				output.Info("Scheduled %s scan (%s), next run %s", mode.Name(), expr, FormatDateTime(entries[0].Next))
			}

			<-ctx.Done()
			waitForCron(c)
			if !output.IsJSON() {
				output.Dim("Scheduler stopped")
			}
			return nil
		},
	}
	addRunFlags(cmd, opts)
	cmd.Flags().StringVar(&expr, "cron", "", "five field cron expression in IST (default from config)")
	cmd.Flags().BoolVar(&runNow, "now", false, "run once immediately before waiting for the schedule")
	return cmd
}

// waitForCron stops c and waits for a running job to return.
func waitForCron(c *cron.Cron) {
	<-c.Stop().Done()
}
