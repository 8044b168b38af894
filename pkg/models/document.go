package models

import (
	"slices"
	"time"
)

// Document represents a Paperless-ngx document as returned by /api/documents/.
type Document struct {
	ID      int       `json:"id"`
	Title   string    `json:"title"`
	Content string    `json:"content"` // OCR / extracted text
	Tags    []int     `json:"tags"`    // Tag IDs
	Added   time.Time `json:"added"`   // When the document was consumed
	Created time.Time `json:"created"` // Document date as detected by Paperless
}

// HasTag reports whether the document carries the given tag id.
func (d Document) HasTag(id int) bool {
	return slices.Contains(d.Tags, id)
}

// Tag represents a Paperless-ngx tag.
type Tag struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// Page is one page of a paginated Paperless list response.
// Next holds the absolute URL of the following page, or nil on the last page.
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// EnrichedDocument is the search mirror's view of a document after enrichment.
type EnrichedDocument struct {
	ID         int       `json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	Tags       []string  `json:"tags"`
	TagIDs     []int     `json:"tag_ids"`
	RunID      string    `json:"run_id"`
	EnrichedAt time.Time `json:"enriched_at"`
	Embedding  []float32 `json:"embedding,omitempty"`
}
