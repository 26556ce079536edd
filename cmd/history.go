package cmd

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/oactree/jobmon/internal/store/sqlite"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [job-id]",
	Short: "List recorded jobs, or print the log of one job",
	Example: `  jobmon history
  jobmon history --limit 5
  jobmon history 3f6c2a4e-...`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Store.Path == "" {
			return fmt.Errorf("store.path is not configured")
		}
		store, err := sqlite.Open(cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("opening job history: %w", err)
		}
		defer func() { _ = store.Close() }()

		out := cmd.OutOrStdout()
		if len(args) == 1 {
			records, err := store.LogRecords(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printLog(out, records)
			return nil
		}

		jobs, err := store.ListJobs(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		if len(jobs) == 0 {
			fmt.Fprintln(out, "no jobs recorded")
			return nil
		}
		fmt.Fprintln(out, historyTable(jobs))
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", sqlite.DefaultHistoryLimit, "maximum number of jobs to list")
}

func historyTable(jobs []sqlite.JobSummary) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "NAME", "STATUS", "LOGS", "UPDATED")
	for _, j := range jobs {
		t.Row(j.ID, j.Name, j.Status, fmt.Sprint(j.LogCount), j.UpdatedAt.Format(time.DateTime))
	}
	return t.String()
}
