package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/mfenderov/paperless-tagger/internal/pipeline"
	"github.com/mfenderov/paperless-tagger/internal/tags"
	"github.com/mfenderov/paperless-tagger/pkg/models"
)

// Config holds MCP server configuration.
type Config struct {
	Name      string
	Version   string
	MarkerTag string
	PageSize  int
}

// Mirror is the search side of the enriched-document index.
type Mirror interface {
	Search(ctx context.Context, query string, limit int) ([]models.EnrichedDocument, error)
	GetDocument(ctx context.Context, id int) (*models.EnrichedDocument, error)
}

// Server exposes Paperless enrichment state as MCP tools.
// All tools are read-only.
type Server struct {
	mcpServer *server.MCPServer
	api       pipeline.Paperless
	mirror    Mirror // nil when the search mirror is disabled
	config    Config
}

// unprocessedDocument is the list_unprocessed_documents result row.
type unprocessedDocument struct {
	ID    int       `json:"id"`
	Title string    `json:"title"`
	Added time.Time `json:"added"`
}

// NewServer creates a new MCP server. mirror may be nil, in which case the
// search tools are not registered.
func NewServer(config Config, api pipeline.Paperless, mirror Mirror) (*Server, error) {
	if api == nil {
		return nil, fmt.Errorf("paperless client is required")
	}
	if config.MarkerTag == "" {
		config.MarkerTag = "AI"
	}

	mcpServer := server.NewMCPServer(
		config.Name,
		config.Version,
		server.WithToolCapabilities(true),
	)

	s := &Server{
		mcpServer: mcpServer,
		api:       api,
		mirror:    mirror,
		config:    config,
	}

	unprocessedTool := mcp.NewTool("list_unprocessed_documents",
		mcp.WithDescription("List Paperless documents that have not been enriched yet (no marker tag), newest first."),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of documents to return (default: 20)"),
		),
	)
	mcpServer.AddTool(unprocessedTool, s.listUnprocessedHandler)

	tagsTool := mcp.NewTool("list_tags",
		mcp.WithDescription("List all tags defined in Paperless."),
	)
	mcpServer.AddTool(tagsTool, s.listTagsHandler)

	if mirror != nil {
		searchTool := mcp.NewTool("search_documents",
			mcp.WithDescription("Search enriched documents by title, tags and content."),
			mcp.WithString("query",
				mcp.Required(),
				mcp.Description("Search query string"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of results to return (default: 10)"),
			),
		)
		mcpServer.AddTool(searchTool, s.searchHandler)

		getDocTool := mcp.NewTool("get_document",
			mcp.WithDescription("Get an enriched document by its Paperless id"),
			mcp.WithNumber("id",
				mcp.Required(),
				mcp.Description("Paperless document id"),
			),
		)
		mcpServer.AddTool(getDocTool, s.getDocumentHandler)
	}

	return s, nil
}

// listUnprocessedHandler handles the list_unprocessed_documents tool call.
func (s *Server) listUnprocessedHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 20)

	docs, err := s.handleListUnprocessed(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing documents failed: %v", err)), nil
	}
	return jsonResult(docs)
}

// listTagsHandler handles the list_tags tool call.
func (s *Server) listTagsHandler(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	all, err := s.handleListTags(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing tags failed: %v", err)), nil
	}
	return jsonResult(all)
}

// searchHandler handles the search_documents tool call.
func (s *Server) searchHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query parameter is required"), nil
	}

	limit := req.GetInt("limit", 10)

	docs, err := s.mirror.Search(ctx, query, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	return jsonResult(docs)
}

// getDocumentHandler handles the get_document tool call.
func (s *Server) getDocumentHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}

	doc, err := s.mirror.GetDocument(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("get document failed: %v", err)), nil
	}
	if doc == nil {
		return mcp.NewToolResultError(fmt.Sprintf("document not found: %d", id)), nil
	}
	return jsonResult(doc)
}

// handleListUnprocessed lists documents without the marker tag. It never
// creates the marker: with no marker in Paperless everything is unprocessed.
func (s *Server) handleListUnprocessed(ctx context.Context, limit int) ([]unprocessedDocument, error) {
	selector := pipeline.NewSelector(s.api, nil, s.config.MarkerTag, s.config.PageSize, slog.Default())
	selector.ReadOnly = true

	docs, err := selector.SelectUnprocessed(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}

	out := make([]unprocessedDocument, len(docs))
	for i, d := range docs {
		out[i] = unprocessedDocument{ID: d.ID, Title: d.Title, Added: d.Added}
	}
	return out, nil
}

// handleListTags loads the tag catalog.
func (s *Server) handleListTags(ctx context.Context) ([]models.Tag, error) {
	catalog := tags.NewCatalog(s.api, tags.WithLogger(slog.Default()))
	if err := catalog.Load(ctx); err != nil {
		return nil, err
	}
	return catalog.Tags(), nil
}

// ServeStdio starts the MCP server using stdio transport.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	result, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(result)), nil
}
