package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMissing is returned by Validate when a required setting is absent.
var ErrMissing = errors.New("missing required configuration")

// Model backends.
const (
	BackendExec = "exec" // local CLI, prompt on stdin
	BackendHTTP = "http" // OpenAI-compatible chat completions endpoint
)

// Config holds all application configuration.
type Config struct {
	Paperless     Paperless     `mapstructure:"paperless"`
	Model         Model         `mapstructure:"model"`
	Run           Run           `mapstructure:"run"`
	Journal       Journal       `mapstructure:"journal"`
	Elasticsearch Elasticsearch `mapstructure:"elasticsearch"`
	Embeddings    Embeddings    `mapstructure:"embeddings"`
	MCP           MCP           `mapstructure:"mcp"`
}

// Paperless holds connection settings for the Paperless-ngx API.
type Paperless struct {
	URL               string        `mapstructure:"url"`
	Token             string        `mapstructure:"token"`
	APIVersion        int           `mapstructure:"api_version"`
	PageSize          int           `mapstructure:"page_size"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

// Model holds settings for the language model that proposes titles and tags.
type Model struct {
	Backend         string        `mapstructure:"backend"`
	Command         string        `mapstructure:"command"` // exec backend, split on whitespace
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxContentChars int           `mapstructure:"max_content_chars"`
	SocketPath      string        `mapstructure:"socket_path"` // http backend via Docker Model Runner
	BaseURL         string        `mapstructure:"base_url"`    // http backend via TCP
	Name            string        `mapstructure:"name"`        // http backend model name
}

// Args returns the exec command line.
func (m Model) Args() []string {
	return strings.Fields(m.Command)
}

// Run holds batch behaviour.
type Run struct {
	Save      bool   `mapstructure:"save"`
	MarkerTag string `mapstructure:"marker_tag"`
	Limit     int    `mapstructure:"limit"`
}

// Journal holds the SQLite run history configuration.
type Journal struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Elasticsearch holds the search mirror configuration.
type Elasticsearch struct {
	Enabled   bool     `mapstructure:"enabled"`
	Addresses []string `mapstructure:"addresses"`
	Index     string   `mapstructure:"index"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
}

// Embeddings holds vector generation settings for hybrid search in the mirror.
type Embeddings struct {
	Enabled    bool   `mapstructure:"enabled"`
	SocketPath string `mapstructure:"socket_path"`
	BaseURL    string `mapstructure:"base_url"`
	Model      string `mapstructure:"model"`
}

// MCP holds MCP server configuration.
type MCP struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Paperless: Paperless{
			APIVersion: 6,
			Timeout:    30 * time.Second,
		},
		Model: Model{
			Backend:         BackendExec,
			Command:         "ollama run llama3.2:3b",
			Timeout:         60 * time.Second,
			MaxContentChars: 20000,
			Name:            "ai/gemma3",
		},
		Run: Run{
			Save:      true,
			MarkerTag: "AI",
		},
		Journal: Journal{
			Enabled: false,
			Path:    "paperless-tagger.db",
		},
		Elasticsearch: Elasticsearch{
			Enabled:   false, // Optional mirror, requires a running cluster
			Addresses: []string{"http://localhost:9200"},
			Index:     "paperless-documents",
		},
		Embeddings: Embeddings{
			Enabled: false, // Requires the mirror and an embeddings endpoint
			Model:   "ai/embeddinggemma",
		},
		MCP: MCP{
			Name:    "paperless-tagger",
			Version: "1.0.0",
		},
	}
}

// Validate checks the settings every command needs.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Paperless.URL) == "" {
		return fmt.Errorf("%w: paperless.url (PAPERLESS_URL)", ErrMissing)
	}
	if strings.TrimSpace(c.Paperless.Token) == "" {
		return fmt.Errorf("%w: paperless.token (API_KEY)", ErrMissing)
	}
	if strings.TrimSpace(c.Run.MarkerTag) == "" {
		return fmt.Errorf("%w: run.marker_tag", ErrMissing)
	}

	switch c.Model.Backend {
	case BackendExec:
		if len(c.Model.Args()) == 0 {
			return fmt.Errorf("%w: model.command", ErrMissing)
		}
	case BackendHTTP:
		if c.Model.SocketPath == "" && c.Model.BaseURL == "" {
			return fmt.Errorf("%w: model.socket_path or model.base_url", ErrMissing)
		}
	default:
		return fmt.Errorf("unknown model backend %q (want %q or %q)", c.Model.Backend, BackendExec, BackendHTTP)
	}

	if c.Journal.Enabled && c.Journal.Path == "" {
		return fmt.Errorf("%w: journal.path", ErrMissing)
	}
	if c.Elasticsearch.Enabled && len(c.Elasticsearch.Addresses) == 0 {
		return fmt.Errorf("%w: elasticsearch.addresses", ErrMissing)
	}
	if c.Embeddings.Enabled && c.Embeddings.SocketPath == "" && c.Embeddings.BaseURL == "" {
		return fmt.Errorf("%w: embeddings.socket_path or embeddings.base_url", ErrMissing)
	}
	return nil
}
