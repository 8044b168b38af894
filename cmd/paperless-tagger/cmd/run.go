package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/mfenderov/paperless-tagger/internal/journal"
	"github.com/mfenderov/paperless-tagger/internal/pipeline"
	"github.com/mfenderov/paperless-tagger/internal/processor"
	"github.com/spf13/cobra"
)

var (
	runDryRun   bool
	runLimit    int
	runDocument int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Enrich unprocessed documents",
	Long: `Find every document without the marker tag, ask the model for a title
and tags, and write them back. Each document is processed independently:
a model or API failure on one document does not stop the batch.

Examples:
  # Enrich everything that has not been processed yet
  paperless-tagger run

  # Show what the model would do without changing anything
  paperless-tagger run --dry-run

  # Only the 10 newest documents
  paperless-tagger run --limit 10

  # Re-run a single document, even if it already has the marker tag
  paperless-tagger run --document 1234`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Run the model but do not write anything to Paperless")
	runCmd.Flags().IntVar(&runLimit, "limit", 0, "Maximum number of documents to process (0 = all)")
	runCmd.Flags().IntVar(&runDocument, "document", 0, "Process only the document with this id")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}
	if runDryRun {
		cfg.Run.Save = false
	}
	if cmd.Flags().Changed("limit") {
		cfg.Run.Limit = runLimit
	}

	// Progress is part of the output of this command.
	logger := newLogger(slog.LevelInfo)

	api, err := newPaperlessClient(cfg)
	if err != nil {
		return err
	}
	runner, err := newRunner(cfg)
	if err != nil {
		return err
	}

	opts := []pipeline.Option{pipeline.WithLogger(logger)}

	if cfg.Journal.Enabled {
		j, err := journal.Open(ctx, cfg.Journal.Path)
		if err != nil {
			return err
		}
		defer j.Close()
		opts = append(opts, pipeline.WithObserver(j))
		logger.Debug("journal enabled", "path", cfg.Journal.Path)
	}

	if cfg.Elasticsearch.Enabled {
		mirror, err := newMirror(cfg)
		if err != nil {
			return err
		}
		if err := mirror.CreateIndex(ctx); err != nil {
			logger.Warn("search mirror unavailable, continuing without it", "error", err)
		} else {
			opts = append(opts, pipeline.WithObserver(mirror))
		}
	}

	p := pipeline.New(pipeline.Config{
		MarkerTag:  cfg.Run.MarkerTag,
		PageSize:   cfg.Paperless.PageSize,
		Save:       cfg.Run.Save,
		Limit:      cfg.Run.Limit,
		DocumentID: runDocument,
	}, api, runner, processor.New(cfg.Model.MaxContentChars), opts...)

	result, err := p.Run(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	mode := ""
	if !cfg.Run.Save {
		mode = " (dry run)"
	}
	fmt.Fprintf(out, "Run %s%s: %d selected, %d applied, %d partial, %d skipped, %d failed in %s\n",
		result.RunID, mode, result.Selected, result.Applied, result.Partial, result.Skipped, result.Failed,
		result.Duration.Round(time.Millisecond))

	if len(result.Errors) > 0 {
		fmt.Fprintf(out, "\nErrors (%d):\n", len(result.Errors))
		for _, e := range result.Errors {
			fmt.Fprintf(out, "  - %v\n", e)
		}
	}

	return nil
}
