package llm

import (
	"context"
	"errors"
	"os/exec"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireUnixTools(t *testing.T, tools ...string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("subprocess tests need a POSIX shell")
	}
	for _, tool := range tools {
		if _, err := exec.LookPath(tool); err != nil {
			t.Skipf("%s not available: %v", tool, err)
		}
	}
}

func TestNewExecRunner_Validation(t *testing.T) {
	_, err := NewExecRunner(ExecConfig{})
	assert.Error(t, err)

	_, err = NewExecRunner(ExecConfig{Command: []string{"  "}})
	assert.Error(t, err)

	r, err := NewExecRunner(ExecConfig{Command: DefaultCommand})
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout, r.timeout)
	assert.Equal(t, "ollama", r.name)
	assert.Equal(t, []string{"run", "llama3.2:3b"}, r.args)
}

func TestExecRunner_PromptOnStdin(t *testing.T) {
	requireUnixTools(t, "cat")

	r, err := NewExecRunner(ExecConfig{Command: []string{"cat"}, Timeout: 5 * time.Second})
	require.NoError(t, err)

	out, err := r.Run(context.Background(), "  {\"title\":\"x\",\"tags\":[]}\n")

	require.NoError(t, err)
	assert.Equal(t, `{"title":"x","tags":[]}`, out)
}

func TestExecRunner_NonZeroExit(t *testing.T) {
	requireUnixTools(t, "sh")

	r, err := NewExecRunner(ExecConfig{
		Command: []string{"sh", "-c", "echo 'model not found' >&2; exit 3"},
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)

	_, err = r.Run(context.Background(), "prompt")

	var procErr *ProcessError
	require.True(t, errors.As(err, &procErr), "got %v", err)
	assert.Equal(t, 3, procErr.ExitCode)
	assert.Contains(t, procErr.Stderr, "model not found")
	assert.Contains(t, procErr.Error(), "code 3")
}

func TestExecRunner_Timeout(t *testing.T) {
	requireUnixTools(t, "sleep")

	r, err := NewExecRunner(ExecConfig{Command: []string{"sleep", "10"}, Timeout: 100 * time.Millisecond})
	require.NoError(t, err)

	start := time.Now()
	_, err = r.Run(context.Background(), "prompt")

	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 5*time.Second, "process must be killed on timeout")
}

func TestExecRunner_ParentCancelled(t *testing.T) {
	requireUnixTools(t, "sleep")

	r, err := NewExecRunner(ExecConfig{Command: []string{"sleep", "10"}, Timeout: time.Minute})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err = r.Run(ctx, "prompt")

	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestExecRunner_MissingBinary(t *testing.T) {
	r, err := NewExecRunner(ExecConfig{Command: []string{"paperless-tagger-no-such-model-binary"}})
	require.NoError(t, err)

	_, err = r.Run(context.Background(), "prompt")

	require.Error(t, err)
	var procErr *ProcessError
	assert.False(t, errors.As(err, &procErr))
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestProcessError_EmptyStderr(t *testing.T) {
	err := &ProcessError{ExitCode: 1}
	assert.Equal(t, "model exited with code 1: no error output", err.Error())
}
