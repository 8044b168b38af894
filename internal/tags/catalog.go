package tags

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/mfenderov/paperless-tagger/pkg/models"
	"golang.org/x/sync/singleflight"
)

// Palette is the fixed set of colors new tags are created with.
var Palette = []string{"#FF5733", "#33FF57", "#3357FF", "#FF33A1", "#A1FF33", "#33A1FF"}

// Store is the subset of the Paperless API the catalog needs.
type Store interface {
	ListTags(ctx context.Context) ([]models.Tag, error)
	CreateTag(ctx context.Context, name, color string) (models.Tag, error)
}

// errCreateFailed marks a flight whose create was already logged.
var errCreateFailed = errors.New("tag create failed")

// ColorPicker chooses one color from the palette.
type ColorPicker func(palette []string) string

// RandomColor picks a palette entry uniformly at random.
func RandomColor(palette []string) string {
	return palette[rand.IntN(len(palette))]
}

// Catalog is the run-scoped view of all known tags.
//
// It is read-through on Load and write-through on Create: a tag created
// during the run is visible to every later lookup, so the same name is never
// created twice. Safe for concurrent use.
type Catalog struct {
	store  Store
	pick   ColorPicker
	logger *slog.Logger

	mu   sync.RWMutex
	tags []models.Tag

	creates singleflight.Group
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithColorPicker replaces the random color choice.
func WithColorPicker(pick ColorPicker) Option {
	return func(c *Catalog) { c.pick = pick }
}

// WithLogger sets the logger used for skipped names and failed creates.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Catalog) { c.logger = logger }
}

// NewCatalog creates an empty catalog backed by store.
func NewCatalog(store Store, opts ...Option) *Catalog {
	c := &Catalog{
		store:  store,
		pick:   RandomColor,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load replaces the local view with every tag the store knows about.
func (c *Catalog) Load(ctx context.Context) error {
	all, err := c.store.ListTags(ctx)
	if err != nil {
		return fmt.Errorf("failed to load tags: %w", err)
	}

	c.mu.Lock()
	c.tags = all
	c.mu.Unlock()
	return nil
}

// Tags returns a snapshot of the local view.
func (c *Catalog) Tags() []models.Tag {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.Tag(nil), c.tags...)
}

// Names returns the names of all known tags, in catalog order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.tags))
	for _, t := range c.tags {
		if t.Name != "" {
			names = append(names, t.Name)
		}
	}
	return names
}

// Len returns the number of known tags.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tags)
}

// NameOf returns the name of the tag with the given id.
func (c *Catalog) NameOf(id int) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, t := range c.tags {
		if t.ID == id {
			return t.Name, true
		}
	}
	return "", false
}

// Remember adds a tag created outside the catalog to the local view.
func (c *Catalog) Remember(tag models.Tag) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.tags {
		if t.ID == tag.ID {
			return
		}
	}
	c.tags = append(c.tags, tag)
}

// FindID returns the id of the first tag whose name matches name
// case-insensitively after sanitization.
func (c *Catalog) FindID(name string) (int, bool) {
	sanitized, ok := Sanitize(name)
	if !ok {
		c.logger.Warn("skipping tag", "name", name, "error", ErrInvalidTagName)
		return 0, false
	}
	return c.lookup(sanitized)
}

func (c *Catalog) lookup(sanitized string) (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, t := range c.tags {
		if strings.EqualFold(t.Name, sanitized) {
			return t.ID, true
		}
	}
	return 0, false
}

// Create creates a tag named after the sanitized name and records it locally.
// Failures are logged; ok is false when the tag is unusable.
func (c *Catalog) Create(ctx context.Context, name string) (int, bool) {
	sanitized, ok := Sanitize(name)
	if !ok {
		c.logger.Warn("not creating tag", "name", name, "error", ErrInvalidTagName)
		return 0, false
	}
	return c.create(ctx, sanitized)
}

func (c *Catalog) create(ctx context.Context, sanitized string) (int, bool) {
	tag, err := c.store.CreateTag(ctx, sanitized, c.pick(Palette))
	if err != nil {
		c.logger.Error("failed to create tag", "name", sanitized, "error", err)
		return 0, false
	}

	c.Remember(tag)
	c.logger.Info("created tag", "name", tag.Name, "id", tag.ID, "color", tag.Color)
	return tag.ID, true
}

// ResolveOrCreate returns the id of the tag matching name, creating it when
// the catalog has no match. Concurrent calls for the same name share a
// single create.
func (c *Catalog) ResolveOrCreate(ctx context.Context, name string) (int, bool) {
	sanitized, ok := Sanitize(name)
	if !ok {
		c.logger.Warn("skipping tag", "name", name, "error", ErrInvalidTagName)
		return 0, false
	}
	if id, ok := c.lookup(sanitized); ok {
		return id, true
	}

	v, err, _ := c.creates.Do(strings.ToLower(sanitized), func() (any, error) {
		// Re-check inside the flight: an earlier flight may have finished
		// between lookup and Do.
		if id, ok := c.lookup(sanitized); ok {
			return id, nil
		}
		if id, ok := c.create(ctx, sanitized); ok {
			return id, nil
		}
		return 0, errCreateFailed
	})
	if err != nil {
		return 0, false
	}
	return v.(int), true
}
