package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"nse-screener/internal/backtest"
	"nse-screener/internal/report"
	"nse-screener/internal/screening"
)

func newRunsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Saved scan and backtest runs",
		Long:  "List and show runs saved with --save.",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			s, err := app.DataStore()
			if err != nil {
				return err
			}
			runs, err := s.GetRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(runs)
			}
			if len(runs) == 0 {
				output.Dim("No saved runs")
				return nil
			}

			t := &report.Table{
				Columns: []string{"ID", "Kind", "Mode", "Started", "Duration", "Units", "Found", "Period", "Status"},
				Plain:   !output.ColorEnabled(),
			}
			for _, r := range runs {
				status := "completed"
				if r.Cancelled {
					status = "cancelled"
				}
				period := "-"
				if r.Kind == "backtest" {
					period = fmt.Sprintf("%d", r.Period)
				}
				t.Rows = append(t.Rows, screening.Record{
					"ID":       r.ID,
					"Kind":     r.Kind,
					"Mode":     r.Mode,
					"Started":  FormatDateTime(r.StartedAt),
					"Duration": FormatDuration(r.Duration),
					"Units":    FormatCount(int64(r.Units)),
					"Found":    FormatCount(r.Matched),
					"Period":   period,
					"Status":   status,
				})
			}
			return t.Render(output.Writer())
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "number of runs to list")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the saved rows of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			s, err := app.DataStore()
			if err != nil {
				return err
			}
			run, err := s.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			rows, err := s.GetResults(cmd.Context(), run.ID)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"run": run, "rows": rows})
			}

			columns := screening.ScreenColumns
			if run.Kind == "backtest" {
				columns = (&backtest.Summary{Period: run.Period}).Columns()
			}
			t := &report.Table{
				Title:   fmt.Sprintf("%s %s, %s", run.Mode, run.Kind, FormatDateTime(run.StartedAt)),
				Columns: columns,
				Plain:   true,
			}
			for _, r := range rows {
				t.Rows = append(t.Rows, r)
			}
			if err := t.Render(output.Writer()); err != nil {
				return err
			}
			output.Dim("%s rows", FormatCount(int64(len(rows))))
			return nil
		},
	})

	return cmd
}
