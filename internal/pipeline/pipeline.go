package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mfenderov/paperless-tagger/internal/analysis"
	"github.com/mfenderov/paperless-tagger/internal/events"
	"github.com/mfenderov/paperless-tagger/internal/llm"
	"github.com/mfenderov/paperless-tagger/internal/processor"
	"github.com/mfenderov/paperless-tagger/internal/tags"
	"github.com/mfenderov/paperless-tagger/pkg/models"
)

// ErrCatalogLoad is returned when the tag catalog cannot be loaded.
var ErrCatalogLoad = errors.New("failed to load tag catalog")

// Config holds pipeline configuration.
type Config struct {
	MarkerTag  string // Tag attached to every processed document (default "AI")
	PageSize   int    // page_size for document listing; 0 uses the server default
	Save       bool   // false runs the model but writes nothing
	Limit      int    // Max documents per run; 0 processes all
	DocumentID int    // Process only this document, marker or not; 0 runs the batch
}

// Result holds pipeline execution results.
type Result struct {
	RunID    string
	Selected int
	Applied  int
	Partial  int
	Skipped  int
	Failed   int
	Duration time.Duration
	Errors   []error
}

// Observer receives run events. Errors are logged and never stop a run.
type Observer interface {
	DocumentProcessed(ctx context.Context, event events.DocumentProcessedEvent) error
	RunComplete(ctx context.Context, event events.RunCompleteEvent) error
}

// Pipeline orchestrates catalog loading, selection, model calls and write-back.
// Documents are processed one at a time.
type Pipeline struct {
	config    Config
	api       Paperless
	runner    llm.Runner
	processor *processor.Processor
	observers []Observer
	logger    *slog.Logger
	pick      tags.ColorPicker
	newRunID  func() string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithObserver adds an observer for run events.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) { p.observers = append(p.observers, o) }
}

// WithLogger sets the base logger; each run adds its run_id.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithColorPicker replaces the random color choice for new tags.
func WithColorPicker(pick tags.ColorPicker) Option {
	return func(p *Pipeline) { p.pick = pick }
}

// New creates a new Pipeline.
func New(config Config, api Paperless, runner llm.Runner, proc *processor.Processor, opts ...Option) *Pipeline {
	if config.MarkerTag == "" {
		config.MarkerTag = "AI"
	}
	if proc == nil {
		proc = processor.New(0)
	}
	p := &Pipeline{
		config:    config,
		api:       api,
		runner:    runner,
		processor: proc,
		logger:    slog.Default(),
		pick:      tags.RandomColor,
		newRunID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes one batch. Catalog and selection failures are returned;
// per-document failures are logged and collected in Result.Errors.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	result := &Result{RunID: p.newRunID()}
	logger := p.logger.With("run_id", result.RunID)

	catalog := tags.NewCatalog(p.api, tags.WithLogger(logger), tags.WithColorPicker(p.pick))
	if err := catalog.Load(ctx); err != nil {
		err = fmt.Errorf("%w: %w", ErrCatalogLoad, err)
		p.finish(ctx, logger, start, result, err)
		return nil, err
	}
	if catalog.Len() == 0 {
		logger.Warn("no tags found in Paperless, the model gets no tags to reuse")
	}
	logger.Debug("tag catalog loaded", "tags", catalog.Len())

	docs, markerID, err := p.documents(ctx, logger, catalog)
	if err != nil {
		p.finish(ctx, logger, start, result, err)
		return nil, err
	}
	if p.config.Limit > 0 && len(docs) > p.config.Limit {
		logger.Info("limiting run", "selected", len(docs), "limit", p.config.Limit)
		docs = docs[:p.config.Limit]
	}
	result.Selected = len(docs)

	for _, doc := range docs {
		logger.Info("document queued", "title", doc.Title, "id", doc.ID)
	}

	reconciler := NewReconciler(p.api, catalog, p.config.MarkerTag, logger)
	reconciler.MarkerID = markerID

	for i, doc := range docs {
		if ctx.Err() != nil {
			logger.Warn("run interrupted", "processed", i, "remaining", len(docs)-i)
			result.Errors = append(result.Errors, fmt.Errorf("run interrupted: %w", ctx.Err()))
			break
		}

		docLogger := logger.With("document_id", doc.ID)
		docLogger.Info(fmt.Sprintf("[%d/%d] processing document", i+1, len(docs)), "title", doc.Title)

		event, err := p.processDocument(ctx, docLogger, catalog, reconciler, doc)
		event.RunID = result.RunID
		event.Timestamp = time.Now()

		switch event.Status {
		case events.StatusApplied:
			result.Applied++
		case events.StatusPartial:
			result.Partial++
		case events.StatusSkipped:
			result.Skipped++
		default:
			result.Failed++
		}
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("document %d: %w", doc.ID, err))
		}

		for _, o := range p.observers {
			if oerr := o.DocumentProcessed(context.WithoutCancel(ctx), event); oerr != nil {
				docLogger.Warn("observer failed", "error", oerr)
			}
		}
	}

	p.finish(ctx, logger, start, result, nil)
	return result, nil
}

// documents returns the run's work list and the marker tag id, which is
// zero when a dry run finds no marker tag.
func (p *Pipeline) documents(ctx context.Context, logger *slog.Logger, catalog *tags.Catalog) ([]models.Document, int, error) {
	selector := NewSelector(p.api, catalog, p.config.MarkerTag, p.config.PageSize, logger)
	selector.ReadOnly = !p.config.Save

	markerID, found, err := selector.MarkerID(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrSelection, err)
	}

	if p.config.DocumentID > 0 {
		doc, err := p.api.GetDocument(ctx, p.config.DocumentID)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %w", ErrSelection, err)
		}
		return []models.Document{doc}, markerID, nil
	}

	docs, err := selector.unprocessed(ctx, markerID, found)
	if err != nil {
		return nil, 0, err
	}
	return docs, markerID, nil
}

// processDocument runs one document through the model and writes the result.
// The returned event is always populated, even when err is non-nil.
func (p *Pipeline) processDocument(ctx context.Context, logger *slog.Logger, catalog *tags.Catalog, reconciler *Reconciler, doc models.Document) (events.DocumentProcessedEvent, error) {
	event := events.DocumentProcessedEvent{DocumentID: doc.ID, Status: events.StatusFailed}

	content := p.processor.Normalize(doc.Content)
	if content == "" {
		logger.Warn("skipping document with empty content")
		event.Status = events.StatusSkipped
		return event, nil
	}
	event.Content = content

	prompt := analysis.BuildPrompt(content, catalog.Names())
	logger.Debug("running model", "prompt_len", len(prompt))
	modelStart := time.Now()
	raw, err := p.runner.Run(ctx, prompt)
	if err != nil {
		logger.Error("model failed", "error", err, "duration", time.Since(modelStart))
		event.Error = err.Error()
		return event, err
	}
	event.RawOutput = raw
	logger.Debug("model output", "duration", time.Since(modelStart), "raw", raw)

	parsed, err := analysis.Parse(raw)
	if err != nil {
		logger.Error("could not parse model output", "error", err)
		event.Error = err.Error()
		return event, err
	}
	event.Title = parsed.Title
	event.Tags = parsed.Tags

	if !p.config.Save {
		logger.Info("dry run, not saving", "title", parsed.Title, "tags", parsed.Tags)
		event.Status = events.StatusSkipped
		return event, nil
	}

	outcome := reconciler.Apply(ctx, doc, parsed)
	event.Title = outcome.Title
	event.Tags = outcome.TagNames
	event.TagIDs = outcome.TagIDs
	event.Status = outcome.Status()
	if err := outcome.Err(); err != nil {
		event.Error = err.Error()
		return event, err
	}
	return event, nil
}

func (p *Pipeline) finish(ctx context.Context, logger *slog.Logger, start time.Time, result *Result, fatal error) {
	result.Duration = time.Since(start)

	event := events.RunCompleteEvent{
		RunID:     result.RunID,
		StartedAt: start,
		Duration:  result.Duration,
		Selected:  result.Selected,
		Applied:   result.Applied,
		Partial:   result.Partial,
		Skipped:   result.Skipped,
		Failed:    result.Failed,
		DryRun:    !p.config.Save,
	}
	for _, err := range result.Errors {
		event.Errors = append(event.Errors, err.Error())
	}
	if fatal != nil {
		event.Errors = append(event.Errors, fatal.Error())
		logger.Error("run failed", "error", fatal)
	} else {
		logger.Info("run complete",
			"selected", result.Selected,
			"applied", result.Applied,
			"partial", result.Partial,
			"skipped", result.Skipped,
			"failed", result.Failed,
			"duration", result.Duration)
	}

	// Observers still get the summary after cancellation.
	ctx = context.WithoutCancel(ctx)
	for _, o := range p.observers {
		if err := o.RunComplete(ctx, event); err != nil {
			logger.Warn("observer failed", "error", err)
		}
	}
}
