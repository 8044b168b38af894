// Package llm invokes the language model that suggests titles and tags.
//
// Two backends implement Runner: ExecRunner pipes the prompt through a
// local CLI such as "ollama run", and Client talks to an OpenAI-compatible
// chat completions endpoint.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultTimeout bounds a single model invocation.
const DefaultTimeout = 60 * time.Second

// ErrTimeout is returned when the model does not answer within the timeout.
var ErrTimeout = errors.New("model timed out")

// Runner sends a prompt to the model and returns its raw output.
type Runner interface {
	Run(ctx context.Context, prompt string) (string, error)
}

// ProcessError reports a model process that exited unsuccessfully.
type ProcessError struct {
	ExitCode int
	Stderr   string
}

func (e *ProcessError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		msg = "no error output"
	}
	return fmt.Sprintf("model exited with code %d: %s", e.ExitCode, msg)
}
