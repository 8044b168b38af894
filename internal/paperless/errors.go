package paperless

import (
	"fmt"
	"strings"
)

// maxErrorBody caps how much of a response body an APIError keeps.
const maxErrorBody = 2048

// APIError is returned for any non-2xx response from Paperless.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("paperless API error: %s %s returned %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("paperless API error: %s %s returned %d: %s", e.Method, e.Path, e.StatusCode, body)
}

func newAPIError(method, path string, status int, body []byte) *APIError {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return &APIError{Method: method, Path: path, StatusCode: status, Body: string(body)}
}
