package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/mfenderov/paperless-tagger/internal/journal"
	"github.com/spf13/cobra"
)

var (
	historyLimit int
	historyRun   string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past runs from the journal",
	Long: `Show recent runs recorded in the SQLite journal (journal.enabled).

Examples:
  # Last 20 runs
  paperless-tagger history

  # Per-document outcomes of one run
  paperless-tagger history --run 6f1c...`,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of runs to show")
	historyCmd.Flags().StringVar(&historyRun, "run", "", "Show the documents of this run id")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()
	if cfg.Journal.Path == "" {
		return fmt.Errorf("journal.path is not set")
	}

	j, err := journal.Open(ctx, cfg.Journal.Path)
	if err != nil {
		return err
	}
	defer j.Close()

	out := cmd.OutOrStdout()

	if historyRun != "" {
		entries, err := j.Entries(ctx, historyRun)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintf(out, "No documents recorded for run %s.\n", historyRun)
			return nil
		}
		for _, e := range entries {
			fmt.Fprintf(out, "%6d  %-8s  %s  %v\n", e.DocumentID, e.Status, e.Title, e.Tags)
			if e.Error != "" {
				fmt.Fprintf(out, "        error: %s\n", e.Error)
			}
		}
		return nil
	}

	runs, err := j.ListRuns(ctx, historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return nil
	}

	for _, r := range runs {
		mode := ""
		if r.DryRun {
			mode = " dry-run"
		}
		fmt.Fprintf(out, "%s  %s%s  selected=%d applied=%d partial=%d skipped=%d failed=%d  %s\n",
			r.StartedAt.Local().Format(time.DateTime), r.RunID, mode,
			r.Selected, r.Applied, r.Partial, r.Skipped, r.Failed, r.Duration.Round(time.Second))
		for _, e := range r.Errors {
			fmt.Fprintf(out, "    %s\n", e)
		}
	}
	return nil
}
