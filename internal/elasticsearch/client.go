// Package elasticsearch mirrors enriched documents into a search index.
//
// The mirror is optional and derived: it is rebuilt from run events and is
// never read to decide which documents need processing.
package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/mfenderov/paperless-tagger/internal/events"
	"github.com/mfenderov/paperless-tagger/pkg/models"
)

// Embedder turns text into a vector for semantic search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Config holds Elasticsearch client configuration.
type Config struct {
	Addresses  []string
	Index      string
	Username   string
	Password   string
	Embedder   Embedder // optional; enables hybrid search
	Dimensions int      // vector size produced by Embedder
}

// Client wraps the Elasticsearch client with mirror-specific operations.
type Client struct {
	es       *elasticsearch.Client
	index    string
	embedder Embedder
	dims     int
}

// New creates a new Elasticsearch client.
func New(config Config) (*Client, error) {
	cfg := elasticsearch.Config{
		Addresses: config.Addresses,
		Username:  config.Username,
		Password:  config.Password,
	}

	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create ES client: %w", err)
	}

	c := &Client{
		es:    es,
		index: config.Index,
	}
	if config.Embedder != nil && config.Dimensions > 0 {
		c.embedder = config.Embedder
		c.dims = config.Dimensions
	}
	return c, nil
}

// Ping checks if Elasticsearch is available.
func (c *Client) Ping(ctx context.Context) bool {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return false
	}
	defer res.Body.Close()
	return !res.IsError()
}

// indexMapping defines the ES index mapping for enriched documents.
// Paperless libraries are often multilingual, so text uses the standard analyzer.
// The vector field is only mapped when embeddings are enabled.
func (c *Client) indexMapping() ([]byte, error) {
	properties := map[string]any{
		"id":          map[string]any{"type": "integer"},
		"title":       map[string]any{"type": "text"},
		"content":     map[string]any{"type": "text", "analyzer": "standard"},
		"tags":        map[string]any{"type": "text", "fields": map[string]any{"keyword": map[string]any{"type": "keyword"}}},
		"tag_ids":     map[string]any{"type": "integer"},
		"run_id":      map[string]any{"type": "keyword"},
		"enriched_at": map[string]any{"type": "date"},
	}
	if c.dims > 0 {
		properties["embedding"] = map[string]any{
			"type":       "dense_vector",
			"dims":       c.dims,
			"index":      true,
			"similarity": "cosine",
		}
	}
	return json.Marshal(map[string]any{"mappings": map[string]any{"properties": properties}})
}

// CreateIndex creates the index with proper mapping.
func (c *Client) CreateIndex(ctx context.Context) error {
	mapping, err := c.indexMapping()
	if err != nil {
		return fmt.Errorf("failed to build index mapping: %w", err)
	}

	// Check if index exists
	res, err := c.es.Indices.Exists([]string{c.index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to check index: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 200 {
		return nil
	}

	res, err = c.es.Indices.Create(
		c.index,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(bytes.NewReader(mapping)),
	)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error creating index: %s", res.String())
	}

	return nil
}

// DeleteIndex removes the index (for testing/cleanup).
func (c *Client) DeleteIndex(ctx context.Context) error {
	res, err := c.es.Indices.Delete([]string{c.index}, c.es.Indices.Delete.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return nil
}

// IndexDocument indexes a single document, keyed by its Paperless id.
// Re-enriching a document overwrites its previous entry.
func (c *Client) IndexDocument(ctx context.Context, doc models.EnrichedDocument) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	res, err := c.es.Index(
		c.index,
		bytes.NewReader(data),
		c.es.Index.WithContext(ctx),
		c.es.Index.WithDocumentID(strconv.Itoa(doc.ID)),
	)
	if err != nil {
		return fmt.Errorf("failed to index document: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error indexing document (status %d): %s", res.StatusCode, res.String())
	}

	return nil
}

// Refresh makes indexed documents searchable immediately.
func (c *Client) Refresh(ctx context.Context) error {
	res, err := c.es.Indices.Refresh(
		c.es.Indices.Refresh.WithContext(ctx),
		c.es.Indices.Refresh.WithIndex(c.index),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return nil
}

// searchResponse represents ES search response structure.
type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source models.EnrichedDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// textFields are the BM25 fields searched, with boosts.
var textFields = []string{"title^2", "tags^2", "content"}

// sourceFilter keeps vectors out of search results.
var sourceFilter = map[string]any{"excludes": []string{"embedding"}}

// Search queries the mirror. With an embedder configured it runs a hybrid
// search and falls back to BM25 when the query cannot be embedded.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]models.EnrichedDocument, error) {
	if c.embedder != nil {
		vec, err := c.embedder.Embed(ctx, query)
		if err == nil {
			return c.HybridSearch(ctx, query, vec, limit)
		}
		slog.Warn("failed to embed query, using text search", "error", err)
	}
	return c.HybridSearch(ctx, query, nil, limit)
}

// HybridSearch performs a combined BM25 + vector search.
// If queryEmbedding is nil, falls back to BM25 only.
func (c *Client) HybridSearch(ctx context.Context, query string, queryEmbedding []float32, limit int) ([]models.EnrichedDocument, error) {
	if queryEmbedding == nil {
		return c.search(ctx, map[string]any{
			"query": map[string]any{
				"multi_match": map[string]any{"query": query, "fields": textFields},
			},
			"size":    limit,
			"_source": sourceFilter,
		})
	}

	// Use reciprocal rank fusion (RRF) to combine BM25 and vector results
	return c.search(ctx, map[string]any{
		"retriever": map[string]any{
			"rrf": map[string]any{
				"retrievers": []map[string]any{
					{
						"standard": map[string]any{
							"query": map[string]any{
								"multi_match": map[string]any{
									"query":  query,
									"fields": textFields,
								},
							},
						},
					},
					{
						"knn": map[string]any{
							"field":          "embedding",
							"query_vector":   queryEmbedding,
							"k":              limit,
							"num_candidates": limit * 2,
						},
					},
				},
			},
		},
		"size":    limit,
		"_source": sourceFilter,
	})
}

func (c *Client) search(ctx context.Context, searchQuery map[string]any) ([]models.EnrichedDocument, error) {
	data, err := json.Marshal(searchQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(data)),
	)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search error: %s", res.String())
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	docs := make([]models.EnrichedDocument, len(sr.Hits.Hits))
	for i, hit := range sr.Hits.Hits {
		docs[i] = hit.Source
	}

	return docs, nil
}

// getResponse represents ES get response structure.
type getResponse struct {
	Found  bool                    `json:"found"`
	Source models.EnrichedDocument `json:"_source"`
}

// GetDocument retrieves a mirrored document by Paperless id. It returns nil
// when the document has not been enriched yet.
func (c *Client) GetDocument(ctx context.Context, id int) (*models.EnrichedDocument, error) {
	res, err := c.es.Get(
		c.index,
		strconv.Itoa(id),
		c.es.Get.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("get failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 404 {
		return nil, nil
	}

	if res.IsError() {
		return nil, fmt.Errorf("get error: %s", res.String())
	}

	var gr getResponse
	if err := json.NewDecoder(res.Body).Decode(&gr); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if !gr.Found {
		return nil, nil
	}

	return &gr.Source, nil
}

// DocumentProcessed mirrors a document whose tags or title were written.
// Skipped and failed documents are left out of the index.
func (c *Client) DocumentProcessed(ctx context.Context, e events.DocumentProcessedEvent) error {
	if e.Status != events.StatusApplied && e.Status != events.StatusPartial {
		return nil
	}
	doc := models.EnrichedDocument{
		ID:         e.DocumentID,
		Title:      e.Title,
		Content:    e.Content,
		Tags:       e.Tags,
		TagIDs:     e.TagIDs,
		RunID:      e.RunID,
		EnrichedAt: e.Timestamp,
	}

	// A missing vector only degrades search for this document.
	if c.embedder != nil {
		vec, err := c.embedder.Embed(ctx, e.Title+"\n\n"+e.Content)
		if err != nil {
			slog.Warn("failed to generate embedding", "document_id", e.DocumentID, "error", err)
		} else {
			doc.Embedding = vec
		}
	}

	return c.IndexDocument(ctx, doc)
}

// RunComplete refreshes the index so the run's documents are searchable.
func (c *Client) RunComplete(ctx context.Context, e events.RunCompleteEvent) error {
	if e.Applied+e.Partial == 0 {
		return nil
	}
	return c.Refresh(ctx)
}
