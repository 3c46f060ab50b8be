package commands

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/1323216010/exam/cmd/examdoc/ui"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent conversion runs from the run ledger",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to show")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	store, err := openLedger()
	if err != nil {
		return err
	}
	if store == nil {
		ui.Info("Run ledger is disabled; set ledger.path or EXAMDOC_LEDGER_PATH to enable it")
		return nil
	}
	defer store.Close()

	runs, err := store.Recent(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		ui.Info("No runs recorded yet")
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.SourcePath,
			r.Mode,
			strconv.Itoa(r.Summary.Succeeded) + "/" + strconv.Itoa(r.Summary.TotalPages),
			ui.FormatPages(r.Summary.FailedPages),
			ui.FormatDuration(r.Duration),
		})
	}
	ui.Section("Recent Runs")
	ui.Table([]string{"Started", "Document", "Mode", "Pages OK", "Failed", "Duration"}, rows)
	return nil
}
