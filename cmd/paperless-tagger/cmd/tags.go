package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/mfenderov/paperless-tagger/internal/tags"
	"github.com/spf13/cobra"
)

var tagsFormat string

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "List tags defined in Paperless",
	Long: `List every tag known to Paperless. These are the tags offered to the
model as existing tags.

Examples:
  paperless-tagger tags
  paperless-tagger tags --format json`,
	RunE: runTags,
}

func init() {
	rootCmd.AddCommand(tagsCmd)

	tagsCmd.Flags().StringVar(&tagsFormat, "format", "text", "Output format: text or json")
}

func runTags(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}

	api, err := newPaperlessClient(cfg)
	if err != nil {
		return err
	}

	catalog := tags.NewCatalog(api)
	if err := catalog.Load(ctx); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	all := catalog.Tags()

	if tagsFormat == "json" {
		output, err := json.MarshalIndent(all, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(output))
		return nil
	}

	if len(all) == 0 {
		fmt.Fprintln(out, "No tags found.")
		return nil
	}
	for _, t := range all {
		marker := ""
		if t.Name == cfg.Run.MarkerTag {
			marker = "  (marker)"
		}
		fmt.Fprintf(out, "%6d  %s%s\n", t.ID, t.Name, marker)
	}
	fmt.Fprintf(out, "\n%d tags\n", len(all))
	return nil
}
