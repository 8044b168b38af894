package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mfenderov/paperless-tagger/internal/paperless"
	"github.com/mfenderov/paperless-tagger/internal/paperless/paperlesstest"
	"github.com/mfenderov/paperless-tagger/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedDocuments(fake *paperlesstest.Server, markerID int) {
	now := time.Now()
	fake.AddDocument(models.Document{ID: 1, Title: "old", Content: "a", Added: now.Add(-2 * time.Hour)})
	fake.AddDocument(models.Document{ID: 2, Title: "done", Content: "b", Tags: []int{markerID}, Added: now.Add(-time.Hour)})
	fake.AddDocument(models.Document{ID: 3, Title: "new", Content: "c", Added: now})
}

func TestSelector_ExcludesMarkedDocuments(t *testing.T) {
	fake := paperlesstest.New(t)
	fake.AddTag(7, "AI")
	seedDocuments(fake, 7)

	api := newAPI(t, fake)
	s := NewSelector(api, loadedCatalog(t, api), "AI", 0, discardLogger())

	docs, err := s.SelectUnprocessed(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, 3, docs[0].ID, "newest first")
	assert.Equal(t, 1, docs[1].ID)
}

func TestSelector_PageSizeFollowsAllPages(t *testing.T) {
	fake := paperlesstest.New(t)
	fake.AddTag(7, "AI")
	for i := 1; i <= 5; i++ {
		fake.AddDocument(models.Document{ID: i, Content: "x", Added: time.Now().Add(time.Duration(i) * time.Minute)})
	}

	api := newAPI(t, fake)
	docs, err := NewSelector(api, nil, "AI", 1, discardLogger()).SelectUnprocessed(context.Background())
	require.NoError(t, err)
	assert.Len(t, docs, 5)
}

func TestSelector_CreatesMissingMarker(t *testing.T) {
	fake := paperlesstest.New(t)
	fake.AddTag(1, "Invoice")
	seedDocuments(fake, 999)

	api := newAPI(t, fake)
	catalog := loadedCatalog(t, api)
	s := NewSelector(api, catalog, "AI", 0, discardLogger())

	docs, err := s.SelectUnprocessed(context.Background())
	require.NoError(t, err)
	assert.Len(t, docs, 3)
	assert.Equal(t, []string{"AI"}, fake.TagCreates())

	id, ok := catalog.FindID("AI")
	require.True(t, ok, "created marker must be visible to the catalog")

	// Resolving the marker later reuses it instead of creating a duplicate.
	again, ok := catalog.ResolveOrCreate(context.Background(), "AI")
	require.True(t, ok)
	assert.Equal(t, id, again)
	assert.Len(t, fake.TagCreates(), 1)
}

func TestSelector_IgnoresUnfilteredTagResults(t *testing.T) {
	// Some Paperless versions ignore ?name= and return every tag.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"count":2,"next":null,"previous":null,"results":[{"id":1,"name":"Invoice"},{"id":7,"name":"AI"}]}`)
	}))
	defer server.Close()

	api, err := paperless.New(paperless.Config{BaseURL: server.URL, Token: "x"})
	require.NoError(t, err)

	id, found, err := NewSelector(api, nil, "AI", 0, discardLogger()).MarkerID(context.Background())
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 7, id)
}

func TestSelector_ReadOnlyDoesNotCreate(t *testing.T) {
	fake := paperlesstest.New(t)
	seedDocuments(fake, 999)

	api := newAPI(t, fake)
	s := NewSelector(api, nil, "AI", 0, discardLogger())
	s.ReadOnly = true

	docs, err := s.SelectUnprocessed(context.Background())
	require.NoError(t, err)
	assert.Len(t, docs, 3)
	assert.Empty(t, fake.TagCreates())
}

func TestSelector_FetchErrorIsSelectionError(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
	}{
		{"tag lookup", "GET /api/tags/"},
		{"document list", "GET /api/documents/"},
		{"marker create", "POST /api/tags/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := paperlesstest.New(t)
			seedDocuments(fake, 999)
			fake.Fail(tt.prefix, http.StatusInternalServerError)

			docs, err := NewSelector(newAPI(t, fake), nil, "AI", 0, discardLogger()).SelectUnprocessed(context.Background())
			require.ErrorIs(t, err, ErrSelection)
			assert.Empty(t, docs)
		})
	}
}
