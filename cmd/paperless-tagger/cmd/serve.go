package cmd

import (
	"context"
	"fmt"

	"github.com/mfenderov/paperless-tagger/internal/mcp"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the MCP server over stdio.

Tools:
  - list_unprocessed_documents: documents without the marker tag
  - list_tags: every tag in Paperless
  - search_documents, get_document: enriched documents (when the mirror is enabled)

Example:
  paperless-tagger serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}

	api, err := newPaperlessClient(cfg)
	if err != nil {
		return err
	}

	mcpConfig := mcp.Config{
		Name:      cfg.MCP.Name,
		Version:   cfg.MCP.Version,
		MarkerTag: cfg.Run.MarkerTag,
		PageSize:  cfg.Paperless.PageSize,
	}

	var server *mcp.Server
	if cfg.Elasticsearch.Enabled {
		mirror, err := newMirror(cfg)
		if err != nil {
			return err
		}
		if err := mirror.CreateIndex(context.Background()); err != nil {
			return fmt.Errorf("failed to prepare search mirror: %w", err)
		}
		server, err = mcp.NewServer(mcpConfig, api, mirror)
		if err != nil {
			return fmt.Errorf("failed to create MCP server: %w", err)
		}
	} else {
		server, err = mcp.NewServer(mcpConfig, api, nil)
		if err != nil {
			return fmt.Errorf("failed to create MCP server: %w", err)
		}
	}

	fmt.Fprintln(cmd.ErrOrStderr(), "Starting MCP server...")

	return server.ServeStdio()
}
