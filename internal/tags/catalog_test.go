package tags

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfenderov/paperless-tagger/pkg/models"
)

type fakeStore struct {
	mu        sync.Mutex
	tags      []models.Tag
	nextID    int
	creates   []models.Tag
	listErr   error
	createErr error
}

func (f *fakeStore) ListTags(context.Context) ([]models.Tag, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]models.Tag(nil), f.tags...), nil
}

func (f *fakeStore) CreateTag(_ context.Context, name, color string) (models.Tag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return models.Tag{}, f.createErr
	}
	f.nextID++
	tag := models.Tag{ID: f.nextID, Name: name, Color: color}
	f.creates = append(f.creates, tag)
	f.tags = append(f.tags, tag)
	return tag, nil
}

func (f *fakeStore) createCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.creates)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func firstColor(palette []string) string { return palette[0] }

func newTestCatalog(t *testing.T, store *fakeStore) *Catalog {
	t.Helper()
	c := NewCatalog(store, WithColorPicker(firstColor), WithLogger(quietLogger()))
	require.NoError(t, c.Load(context.Background()))
	return c
}

func TestCatalog_LoadError(t *testing.T) {
	store := &fakeStore{listErr: errors.New("connection refused")}
	c := NewCatalog(store, WithLogger(quietLogger()))

	err := c.Load(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestCatalog_FindID(t *testing.T) {
	store := &fakeStore{tags: []models.Tag{
		{ID: 3, Name: "Invoices"},
		{ID: 4, Name: "invoices"},
		{ID: 9, Name: "Steuer"},
	}, nextID: 100}
	c := newTestCatalog(t, store)

	tests := []struct {
		name   string
		query  string
		wantID int
		wantOK bool
	}{
		{"exact", "Invoices", 3, true},
		{"case-insensitive returns first match", "INVOICES", 3, true},
		{"sanitized before matching", " Steuer! ", 9, true},
		{"unknown", "Travel", 0, false},
		{"invalid name", "!!!", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := c.FindID(tt.query)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestCatalog_CreateUsesSanitizedNameAndPaletteColor(t *testing.T) {
	store := &fakeStore{}
	c := newTestCatalog(t, store)

	id, ok := c.Create(context.Background(), "Health/Insurance")

	require.True(t, ok)
	require.Len(t, store.creates, 1)
	assert.Equal(t, "HealthInsurance", store.creates[0].Name)
	assert.Equal(t, Palette[0], store.creates[0].Color)
	assert.Equal(t, store.creates[0].ID, id)

	found, ok := c.FindID("healthinsurance")
	assert.True(t, ok, "created tag must be visible locally")
	assert.Equal(t, id, found)
}

func TestCatalog_CreateFailureIsNotRaised(t *testing.T) {
	store := &fakeStore{createErr: errors.New("400 Bad Request")}
	c := newTestCatalog(t, store)

	id, ok := c.Create(context.Background(), "Finance")

	assert.False(t, ok)
	assert.Zero(t, id)
	assert.Zero(t, c.Len())
}

func TestCatalog_CreateInvalidNameSkipsStore(t *testing.T) {
	store := &fakeStore{}
	c := newTestCatalog(t, store)

	_, ok := c.Create(context.Background(), "???")

	assert.False(t, ok)
	assert.Zero(t, store.createCount())
}

func TestCatalog_ResolveOrCreateCreatesOnce(t *testing.T) {
	store := &fakeStore{}
	c := newTestCatalog(t, store)
	ctx := context.Background()

	first, ok := c.ResolveOrCreate(ctx, "Invoices")
	require.True(t, ok)
	second, ok := c.ResolveOrCreate(ctx, "Invoices")
	require.True(t, ok)
	third, ok := c.ResolveOrCreate(ctx, "invoices!")
	require.True(t, ok)

	assert.Equal(t, 1, store.createCount())
	assert.Equal(t, first, second)
	assert.Equal(t, first, third)
}

func TestCatalog_ResolveOrCreatePrefersExisting(t *testing.T) {
	store := &fakeStore{tags: []models.Tag{{ID: 12, Name: "Finance"}}, nextID: 50}
	c := newTestCatalog(t, store)

	id, ok := c.ResolveOrCreate(context.Background(), "finance")

	require.True(t, ok)
	assert.Equal(t, 12, id)
	assert.Zero(t, store.createCount())
}

func TestCatalog_ResolveOrCreateConcurrentSameName(t *testing.T) {
	store := &fakeStore{}
	c := newTestCatalog(t, store)
	ctx := context.Background()

	const callers = 32
	ids := make([]int, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			name := "Insurance"
			if i%2 == 0 {
				name = strings.ToUpper(name)
			}
			ids[i], _ = c.ResolveOrCreate(ctx, name)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, store.createCount())
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestCatalog_RememberIgnoresDuplicates(t *testing.T) {
	store := &fakeStore{tags: []models.Tag{{ID: 1, Name: "AI"}}}
	c := newTestCatalog(t, store)

	c.Remember(models.Tag{ID: 1, Name: "AI"})
	c.Remember(models.Tag{ID: 2, Name: "Finance"})

	assert.Equal(t, 2, c.Len())
	name, ok := c.NameOf(2)
	assert.True(t, ok)
	assert.Equal(t, "Finance", name)
	assert.Equal(t, []string{"AI", "Finance"}, c.Names())
}
