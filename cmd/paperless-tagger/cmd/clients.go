package cmd

import (
	"fmt"
	"log/slog"

	"github.com/mfenderov/paperless-tagger/internal/config"
	"github.com/mfenderov/paperless-tagger/internal/elasticsearch"
	"github.com/mfenderov/paperless-tagger/internal/embeddings"
	"github.com/mfenderov/paperless-tagger/internal/llm"
	"github.com/mfenderov/paperless-tagger/internal/paperless"
)

func newPaperlessClient(cfg config.Config) (*paperless.Client, error) {
	client, err := paperless.New(paperless.Config{
		BaseURL:           cfg.Paperless.URL,
		Token:             cfg.Paperless.Token,
		APIVersion:        cfg.Paperless.APIVersion,
		RequestsPerSecond: cfg.Paperless.RequestsPerSecond,
		Timeout:           cfg.Paperless.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Paperless client: %w", err)
	}
	return client, nil
}

// newRunner builds the model backend selected by model.backend.
func newRunner(cfg config.Config) (llm.Runner, error) {
	switch cfg.Model.Backend {
	case config.BackendHTTP:
		client, err := llm.New(llm.Config{
			SocketPath: cfg.Model.SocketPath,
			BaseURL:    cfg.Model.BaseURL,
			Model:      cfg.Model.Name,
			Timeout:    cfg.Model.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create model client: %w", err)
		}
		slog.Debug("using HTTP model backend", "model", cfg.Model.Name)
		return client, nil
	default:
		runner, err := llm.NewExecRunner(llm.ExecConfig{
			Command: cfg.Model.Args(),
			Timeout: cfg.Model.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create model runner: %w", err)
		}
		slog.Debug("using exec model backend", "command", cfg.Model.Command)
		return runner, nil
	}
}

// newMirror builds the search mirror client, with hybrid search when
// embeddings are enabled.
func newMirror(cfg config.Config) (*elasticsearch.Client, error) {
	esConfig := elasticsearch.Config{
		Addresses: cfg.Elasticsearch.Addresses,
		Index:     cfg.Elasticsearch.Index,
		Username:  cfg.Elasticsearch.Username,
		Password:  cfg.Elasticsearch.Password,
	}

	if cfg.Embeddings.Enabled {
		embedClient, err := embeddings.New(embeddings.Config{
			SocketPath: cfg.Embeddings.SocketPath,
			BaseURL:    cfg.Embeddings.BaseURL,
			Model:      cfg.Embeddings.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create embeddings client: %w", err)
		}
		esConfig.Embedder = embedClient
		esConfig.Dimensions = embeddings.Dimensions(cfg.Embeddings.Model)
		slog.Debug("embeddings enabled", "model", cfg.Embeddings.Model)
	}

	client, err := elasticsearch.New(esConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Elasticsearch: %w", err)
	}
	return client, nil
}
