package config

import (
	"errors"
	"strings"
	"testing"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Paperless.URL = "http://paperless:8000"
	cfg.Paperless.Token = "secret"
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Run.MarkerTag != "AI" {
		t.Errorf("expected marker tag AI, got %q", cfg.Run.MarkerTag)
	}
	if !cfg.Run.Save {
		t.Error("expected save to default to true")
	}
	if got := cfg.Model.Args(); len(got) != 3 || got[0] != "ollama" || got[2] != "llama3.2:3b" {
		t.Errorf("unexpected default command %v", got)
	}
	if cfg.Paperless.APIVersion != 6 {
		t.Errorf("expected API version 6, got %d", cfg.Paperless.APIVersion)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		missing bool
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing url", mutate: func(c *Config) { c.Paperless.URL = "" }, missing: true, wantErr: "PAPERLESS_URL"},
		{name: "missing token", mutate: func(c *Config) { c.Paperless.Token = " " }, missing: true, wantErr: "API_KEY"},
		{name: "missing marker", mutate: func(c *Config) { c.Run.MarkerTag = "" }, missing: true, wantErr: "marker_tag"},
		{name: "empty command", mutate: func(c *Config) { c.Model.Command = "  " }, missing: true, wantErr: "model.command"},
		{
			name:    "http without endpoint",
			mutate:  func(c *Config) { c.Model.Backend = BackendHTTP },
			missing: true,
			wantErr: "socket_path",
		},
		{
			name: "http with base url",
			mutate: func(c *Config) {
				c.Model.Backend = BackendHTTP
				c.Model.BaseURL = "http://localhost:12434"
			},
		},
		{
			name:    "embeddings without endpoint",
			mutate:  func(c *Config) { c.Embeddings.Enabled = true },
			missing: true,
			wantErr: "embeddings.socket_path",
		},
		{name: "unknown backend", mutate: func(c *Config) { c.Model.Backend = "grpc" }, wantErr: "unknown model backend"},
		{
			name: "journal without path",
			mutate: func(c *Config) {
				c.Journal.Enabled = true
				c.Journal.Path = ""
			},
			missing: true,
			wantErr: "journal.path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()

			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
			if errors.Is(err, ErrMissing) != tt.missing {
				t.Errorf("errors.Is(err, ErrMissing) = %v, want %v", !tt.missing, tt.missing)
			}
		})
	}
}
