package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultCommand runs a small local model through Ollama.
var DefaultCommand = []string{"ollama", "run", "llama3.2:3b"}

// waitDelay bounds how long Run waits for output pipes after the process is killed.
const waitDelay = 2 * time.Second

// ExecConfig holds subprocess runner configuration.
type ExecConfig struct {
	Command []string      // Program and arguments; the prompt is written to stdin
	Timeout time.Duration // Per-invocation limit (default: 60s)
}

// ExecRunner runs the model as a child process, one process per prompt.
type ExecRunner struct {
	name    string
	args    []string
	timeout time.Duration
}

// NewExecRunner creates a subprocess runner.
func NewExecRunner(config ExecConfig) (*ExecRunner, error) {
	if len(config.Command) == 0 || strings.TrimSpace(config.Command[0]) == "" {
		return nil, fmt.Errorf("model command is required")
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}

	return &ExecRunner{
		name:    config.Command[0],
		args:    append([]string(nil), config.Command[1:]...),
		timeout: config.Timeout,
	}, nil
}

// Run writes prompt to the process's stdin and returns its stdout once it exits.
// The process is killed and reaped on timeout or cancellation.
func (r *ExecRunner) Run(ctx context.Context, prompt string) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, r.name, r.args...)
	cmd.Stdin = strings.NewReader(prompt)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	err := cmd.Run()
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return "", fmt.Errorf("model run cancelled: %w", ctx.Err())
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return "", fmt.Errorf("%w after %s", ErrTimeout, r.timeout)
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", &ProcessError{ExitCode: exitErr.ExitCode(), Stderr: stderr.String()}
		}
		return "", fmt.Errorf("failed to run model: %w", err)
	}

	return strings.TrimSpace(stdout.String()), nil
}
