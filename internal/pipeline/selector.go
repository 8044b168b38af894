package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/mfenderov/paperless-tagger/internal/paperless"
	"github.com/mfenderov/paperless-tagger/internal/tags"
	"github.com/mfenderov/paperless-tagger/pkg/models"
)

// ErrSelection is returned when the unprocessed document list cannot be built.
var ErrSelection = errors.New("failed to select documents")

// Paperless is the part of the Paperless API the pipeline drives.
type Paperless interface {
	tags.Store
	FindTagsByName(ctx context.Context, name string) ([]models.Tag, error)
	ListDocuments(ctx context.Context, q paperless.DocumentQuery) ([]models.Document, error)
	GetDocument(ctx context.Context, id int) (models.Document, error)
	AddTags(ctx context.Context, documentID int, tagIDs []int) error
	UpdateTitle(ctx context.Context, documentID int, title string) error
}

// Selector finds the documents that do not carry the marker tag yet.
type Selector struct {
	api      Paperless
	catalog  *tags.Catalog
	marker   string
	pageSize int
	logger   *slog.Logger

	// ReadOnly stops the selector from creating a missing marker tag.
	// With no marker tag in Paperless every document is unprocessed.
	ReadOnly bool
}

// NewSelector creates a Selector. catalog may be nil.
func NewSelector(api Paperless, catalog *tags.Catalog, marker string, pageSize int, logger *slog.Logger) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{
		api:      api,
		catalog:  catalog,
		marker:   marker,
		pageSize: pageSize,
		logger:   logger,
	}
}

// MarkerID returns the id of the marker tag, creating it unless the
// selector is read-only. found is false only in read-only mode when the
// tag does not exist.
func (s *Selector) MarkerID(ctx context.Context) (id int, found bool, err error) {
	candidates, err := s.api.FindTagsByName(ctx, s.marker)
	if err != nil {
		return 0, false, fmt.Errorf("failed to look up marker tag %q: %w", s.marker, err)
	}

	// Older Paperless versions ignore a bare name filter and return every tag.
	for _, t := range candidates {
		if strings.EqualFold(t.Name, s.marker) {
			return t.ID, true, nil
		}
	}

	if s.ReadOnly {
		return 0, false, nil
	}

	s.logger.Info("marker tag not found, creating it", "name", s.marker)
	tag, err := s.api.CreateTag(ctx, s.marker, "")
	if err != nil {
		return 0, false, fmt.Errorf("failed to create marker tag %q: %w", s.marker, err)
	}
	if s.catalog != nil {
		s.catalog.Remember(tag)
	}
	return tag.ID, true, nil
}

// SelectUnprocessed returns every document without the marker tag, newest first.
func (s *Selector) SelectUnprocessed(ctx context.Context) ([]models.Document, error) {
	markerID, found, err := s.MarkerID(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSelection, err)
	}
	return s.unprocessed(ctx, markerID, found)
}

// unprocessed lists the documents without markerID. found is false when
// there is no marker tag to exclude.
func (s *Selector) unprocessed(ctx context.Context, markerID int, found bool) ([]models.Document, error) {
	query := paperless.DocumentQuery{Ordering: "-added", PageSize: s.pageSize}
	if found {
		query.ExcludeTagID = markerID
	}

	docs, err := s.api.ListDocuments(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSelection, err)
	}

	if found {
		docs = slices.DeleteFunc(docs, func(d models.Document) bool { return d.HasTag(markerID) })
	}

	s.logger.Info("selected unprocessed documents", "count", len(docs), "marker", s.marker)
	return docs, nil
}
