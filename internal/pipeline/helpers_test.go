package pipeline

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/mfenderov/paperless-tagger/internal/events"
	"github.com/mfenderov/paperless-tagger/internal/paperless"
	"github.com/mfenderov/paperless-tagger/internal/paperless/paperlesstest"
	"github.com/mfenderov/paperless-tagger/internal/tags"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func firstColor(palette []string) string { return palette[0] }

func newAPI(t *testing.T, fake *paperlesstest.Server) *paperless.Client {
	t.Helper()
	c, err := paperless.New(paperless.Config{BaseURL: fake.URL, Token: paperlesstest.Token})
	require.NoError(t, err)
	return c
}

func loadedCatalog(t *testing.T, api tags.Store) *tags.Catalog {
	t.Helper()
	catalog := tags.NewCatalog(api, tags.WithLogger(discardLogger()), tags.WithColorPicker(firstColor))
	require.NoError(t, catalog.Load(context.Background()))
	return catalog
}

// runnerFunc adapts a function to llm.Runner.
type runnerFunc func(ctx context.Context, prompt string) (string, error)

func (f runnerFunc) Run(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// staticRunner answers every prompt with the same output.
func staticRunner(out string) runnerFunc {
	return func(context.Context, string) (string, error) { return out, nil }
}

type recordingObserver struct {
	mu        sync.Mutex
	documents []events.DocumentProcessedEvent
	runs      []events.RunCompleteEvent
	err       error
}

func (o *recordingObserver) DocumentProcessed(_ context.Context, e events.DocumentProcessedEvent) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.documents = append(o.documents, e)
	return o.err
}

func (o *recordingObserver) RunComplete(_ context.Context, e events.RunCompleteEvent) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.runs = append(o.runs, e)
	return o.err
}
