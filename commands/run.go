package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"buildbank/logger"
	"buildbank/models"
	"buildbank/scheduler"
)

func init() {
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Runs one batch price update across every vendor link and prints the summary.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		manager := scheduler.NewRunManager(cmd.Context(), a.runner, logger.For("runs"))
		summary, err := manager.RunNow(cmd.Context())
		if summary != nil {
			printSummary(cmd.OutOrStdout(), summary)
		}
		return err
	},
}

func printSummary(out io.Writer, s *models.RunSummary) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"Run", "Ran at", "Duration", "Success", "Failed", "Cancelled"})
	t.AppendRow(table.Row{s.ID, s.RanAt.Format("2006-01-02 15:04:05Z07:00"), s.Duration().Round(time.Millisecond), s.SuccessCount, s.FailedCount, s.Cancelled})
	t.SetStyle(table.StyleRounded)
	t.Render()

	if len(s.Errors) == 0 {
		return
	}
	fmt.Fprintln(out)
	errs := table.NewWriter()
	errs.SetOutputMirror(out)
	errs.AppendHeader(table.Row{"Vendor", "Material", "Error", "URL"})
	for _, e := range s.Errors {
		errs.AppendRow(table.Row{e.VendorName, e.MaterialName, e.Message, e.URL})
	}
	errs.SetStyle(table.StyleRounded)
	errs.Render()
}
