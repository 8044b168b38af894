package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/mfenderov/paperless-tagger/internal/analysis"
	"github.com/mfenderov/paperless-tagger/internal/events"
	"github.com/mfenderov/paperless-tagger/internal/paperless"
	"github.com/mfenderov/paperless-tagger/internal/tags"
	"github.com/mfenderov/paperless-tagger/pkg/models"
)

// MaxTitleLength is the longest title Paperless accepts.
const MaxTitleLength = 255

// Writer applies changes to a document.
type Writer interface {
	AddTags(ctx context.Context, documentID int, tagIDs []int) error
	UpdateTitle(ctx context.Context, documentID int, title string) error
}

// Outcome records what Apply did to one document.
type Outcome struct {
	DocumentID   int
	TagNames     []string // names whose ids were sent, in order
	TagIDs       []int
	Title        string // title sent, after truncation
	TagsApplied  bool
	TitleApplied bool
	Errors       []error
}

// Status summarises the outcome.
func (o Outcome) Status() events.DocumentStatus {
	switch {
	case len(o.Errors) == 0:
		return events.StatusApplied
	case o.TagsApplied || o.TitleApplied:
		return events.StatusPartial
	default:
		return events.StatusFailed
	}
}

// Err joins the outcome's errors, or returns nil.
func (o Outcome) Err() error {
	return errors.Join(o.Errors...)
}

// Reconciler writes a parsed model result back to Paperless.
type Reconciler struct {
	api     Writer
	catalog *tags.Catalog
	marker  string
	logger  *slog.Logger

	// MarkerID is the id of the marker tag when it is already known. It is
	// attached as is, so a marker name that Sanitize would rewrite still
	// lands on the tag the selector excludes. Zero resolves the marker by name.
	MarkerID int
}

// NewReconciler creates a Reconciler that always attaches the marker tag.
func NewReconciler(api Writer, catalog *tags.Catalog, marker string, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{api: api, catalog: catalog, marker: marker, logger: logger}
}

// Apply attaches the result's tags plus the marker and sets the title.
// Tag and title writes are independent: one failing does not stop the other.
// Failures are logged and recorded on the Outcome.
func (r *Reconciler) Apply(ctx context.Context, doc models.Document, result analysis.Result) Outcome {
	logger := r.logger.With("document_id", doc.ID)
	out := Outcome{DocumentID: doc.ID}

	names := result.Tags
	if r.MarkerID == 0 && !slices.Contains(names, r.marker) {
		names = append(slices.Clone(names), r.marker)
	}

	for _, invalid := range result.Invalid {
		logger.Warn("skipping tag", "value", invalid, "error", tags.ErrInvalidTagName)
	}

	for _, name := range names {
		id, ok := r.catalog.ResolveOrCreate(ctx, name)
		if !ok {
			logger.Warn("tag could not be resolved", "name", name)
			if name == r.marker {
				out.Errors = append(out.Errors, fmt.Errorf("marker tag %q could not be resolved", r.marker))
			}
			continue
		}
		if slices.Contains(out.TagIDs, id) {
			continue
		}
		out.TagIDs = append(out.TagIDs, id)
		if canonical, ok := r.catalog.NameOf(id); ok {
			name = canonical
		}
		out.TagNames = append(out.TagNames, name)
	}
	if r.MarkerID != 0 && !slices.Contains(out.TagIDs, r.MarkerID) {
		out.TagIDs = append(out.TagIDs, r.MarkerID)
		out.TagNames = append(out.TagNames, r.marker)
	}

	if len(out.TagIDs) == 0 {
		logger.Warn("no usable tags, skipping tag update")
	} else {
		logger.Debug("bulk edit", "add_tags", out.TagIDs)
		if err := r.api.AddTags(ctx, doc.ID, out.TagIDs); err != nil {
			r.logWriteError(logger, "failed to add tags", err)
			out.Errors = append(out.Errors, fmt.Errorf("failed to add tags to document %d: %w", doc.ID, err))
		} else {
			out.TagsApplied = true
			logger.Info("tags added", "tags", out.TagNames)
		}
	}

	if result.Title == "" {
		logger.Warn("model returned no title, keeping current title", "title", doc.Title)
		return out
	}

	out.Title = truncateTitle(result.Title)
	if err := r.api.UpdateTitle(ctx, doc.ID, out.Title); err != nil {
		r.logWriteError(logger, "failed to update title", err)
		out.Errors = append(out.Errors, fmt.Errorf("failed to update title of document %d: %w", doc.ID, err))
	} else {
		out.TitleApplied = true
		logger.Info("title updated", "old", doc.Title, "new", out.Title)
	}

	return out
}

func (r *Reconciler) logWriteError(logger *slog.Logger, msg string, err error) {
	var apiErr *paperless.APIError
	if errors.As(err, &apiErr) {
		logger.Error(msg, "status", apiErr.StatusCode, "body", apiErr.Body)
		return
	}
	logger.Error(msg, "error", err)
}

func truncateTitle(title string) string {
	runes := []rune(title)
	if len(runes) <= MaxTitleLength {
		return title
	}
	return string(runes[:MaxTitleLength])
}
