package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:    "no socket path or base URL",
			config:  Config{Model: "test-model"},
			wantErr: true,
		},
		{
			name:    "empty model",
			config:  Config{SocketPath: "/tmp/test.sock"},
			wantErr: true,
		},
		{
			name:    "socket config",
			config:  Config{SocketPath: "/tmp/test.sock", Model: "test-model"},
			wantErr: false,
		},
		{
			name:    "base URL config",
			config:  Config{BaseURL: "http://localhost:11434/", Model: "llama3.2"},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNew_BaseURLEndpoint(t *testing.T) {
	c, err := New(Config{BaseURL: "http://localhost:11434/", Model: "llama3.2"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if c.endpoint != "http://localhost:11434/v1/chat/completions" {
		t.Errorf("endpoint = %q", c.endpoint)
	}
	if c.timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", c.timeout, DefaultTimeout)
	}
}

func chatHandler(t *testing.T, reply string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Expected application/json content type")
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":` + mustJSON(t, reply) + `}}]}`))
	}
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(data)
}

func TestRun_UnixSocket(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "test.sock")

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Skipf("Unix sockets not available: %v", err)
	}
	defer listener.Close()

	server := &http.Server{Handler: chatHandler(t, "  {\"title\":\"Lease\",\"tags\":[\"Housing\"]}\n")}
	go server.Serve(listener)
	defer server.Close()

	client, err := New(Config{SocketPath: socketPath, Model: "test-model"})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	got, err := client.Run(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got != `{"title":"Lease","tags":["Housing"]}` {
		t.Errorf("Run() = %q", got)
	}
}

func TestRun_BaseURL(t *testing.T) {
	server := httptest.NewServer(chatHandler(t, "ok"))
	defer server.Close()

	client, err := New(Config{BaseURL: server.URL, Model: "test-model"})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	got, err := client.Run(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got != "ok" {
		t.Errorf("Run() = %q, want ok", got)
	}
}

func TestRun_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("internal error"))
	}))
	defer server.Close()

	client, _ := New(Config{BaseURL: server.URL, Model: "test-model"})

	_, err := client.Run(context.Background(), "prompt")
	if err == nil {
		t.Error("Run() expected error for server error response")
	}
}

func TestRun_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client, _ := New(Config{BaseURL: server.URL, Model: "test-model"})

	_, err := client.Run(context.Background(), "prompt")
	if err == nil {
		t.Error("Run() expected error for empty response")
	}
}

func TestRun_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client, _ := New(Config{BaseURL: server.URL, Model: "test-model", Timeout: 50 * time.Millisecond})

	_, err := client.Run(context.Background(), "prompt")
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Run() error = %v, want ErrTimeout", err)
	}
}
