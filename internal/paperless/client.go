// Package paperless is a minimal client for the Paperless-ngx REST API.
package paperless

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mfenderov/paperless-tagger/pkg/models"
	"golang.org/x/time/rate"
)

// DefaultAPIVersion is the Paperless REST API version requested via the Accept header.
const DefaultAPIVersion = 6

// Config holds Paperless client configuration.
type Config struct {
	BaseURL           string        // e.g. "http://paperless:8000"; a trailing "/api" is tolerated
	Token             string        // API token, sent as "Authorization: Token <token>"
	APIVersion        int           // Accept header version (default: 6)
	RequestsPerSecond float64       // Client-side throttle; 0 disables it
	Timeout           time.Duration // Per-request timeout (default: 30s)
}

// Client talks to one Paperless-ngx instance.
type Client struct {
	httpClient *http.Client
	base       *url.URL
	token      string
	accept     string
	limiter    *rate.Limiter
}

// New creates a new Paperless client.
func New(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if config.Token == "" {
		return nil, fmt.Errorf("token is required")
	}

	base, err := url.Parse(strings.TrimSuffix(strings.TrimSuffix(config.BaseURL, "/"), "/api"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: scheme and host are required", config.BaseURL)
	}

	if config.APIVersion <= 0 {
		config.APIVersion = DefaultAPIVersion
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	limit := rate.Inf
	if config.RequestsPerSecond > 0 {
		limit = rate.Limit(config.RequestsPerSecond)
	}

	return &Client{
		httpClient: &http.Client{Timeout: config.Timeout},
		base:       base,
		token:      config.Token,
		accept:     fmt.Sprintf("application/json; version=%d", config.APIVersion),
		limiter:    rate.NewLimiter(limit, 1),
	}, nil
}

// endpoint builds an absolute API URL from a path and query.
func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	u.RawQuery = query.Encode()
	return u.String()
}

// do sends one request and decodes a JSON response into out (if non-nil).
func (c *Client) do(ctx context.Context, method, rawURL string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Accept", c.accept)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(method, req.URL.Path, resp.StatusCode, respBody)
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

// ListTags returns every tag, following pagination to the end.
func (c *Client) ListTags(ctx context.Context) ([]models.Tag, error) {
	return collect[models.Tag](ctx, c, c.endpoint("/api/tags/", nil))
}

// FindTagsByName returns the first page of tags matching the name filter.
func (c *Client) FindTagsByName(ctx context.Context, name string) ([]models.Tag, error) {
	var page models.Page[models.Tag]
	if err := c.do(ctx, http.MethodGet, c.endpoint("/api/tags/", url.Values{"name": {name}}), nil, &page); err != nil {
		return nil, err
	}
	return page.Results, nil
}

type createTagRequest struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// CreateTag creates a tag. An empty color leaves the choice to Paperless.
func (c *Client) CreateTag(ctx context.Context, name, color string) (models.Tag, error) {
	var tag models.Tag
	err := c.do(ctx, http.MethodPost, c.endpoint("/api/tags/", nil), createTagRequest{Name: name, Color: color}, &tag)
	if err != nil {
		return models.Tag{}, err
	}
	return tag, nil
}

// DocumentQuery filters a document listing.
type DocumentQuery struct {
	ExcludeTagID int    // tags__exclude; 0 disables the filter
	Ordering     string // e.g. "-added"
	PageSize     int    // page_size hint; 0 uses the server default
}

// ListDocuments returns every document matching q, following pagination.
func (c *Client) ListDocuments(ctx context.Context, q DocumentQuery) ([]models.Document, error) {
	query := url.Values{}
	if q.ExcludeTagID > 0 {
		query.Set("tags__exclude", strconv.Itoa(q.ExcludeTagID))
	}
	if q.Ordering != "" {
		query.Set("ordering", q.Ordering)
	}
	if q.PageSize > 0 {
		query.Set("page_size", strconv.Itoa(q.PageSize))
	}
	return collect[models.Document](ctx, c, c.endpoint("/api/documents/", query))
}

// GetDocument fetches a single document by id.
func (c *Client) GetDocument(ctx context.Context, id int) (models.Document, error) {
	var doc models.Document
	if err := c.do(ctx, http.MethodGet, c.endpoint(fmt.Sprintf("/api/documents/%d/", id), nil), nil, &doc); err != nil {
		return models.Document{}, err
	}
	return doc, nil
}

type bulkEditRequest struct {
	Documents  []int          `json:"documents"`
	Method     string         `json:"method"`
	Parameters bulkEditParams `json:"parameters"`
}

type bulkEditParams struct {
	AddTags    []int `json:"add_tags"`
	RemoveTags []int `json:"remove_tags"`
}

// AddTags adds tagIDs to a document through the bulk edit endpoint.
// remove_tags is always sent as an empty list; Paperless rejects it when omitted.
func (c *Client) AddTags(ctx context.Context, documentID int, tagIDs []int) error {
	req := bulkEditRequest{
		Documents: []int{documentID},
		Method:    "modify_tags",
		Parameters: bulkEditParams{
			AddTags:    tagIDs,
			RemoveTags: []int{},
		},
	}
	return c.do(ctx, http.MethodPost, c.endpoint("/api/documents/bulk_edit/", nil), req, nil)
}

// UpdateTitle sets a document's title.
func (c *Client) UpdateTitle(ctx context.Context, documentID int, title string) error {
	body := map[string]string{"title": title}
	return c.do(ctx, http.MethodPatch, c.endpoint(fmt.Sprintf("/api/documents/%d/", documentID), nil), body, nil)
}
