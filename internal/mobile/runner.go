package mobile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"
)

// DefaultToolTimeout bounds a single external tool call. bundletool on a
// large bundle takes minutes, so the limit is generous.
const DefaultToolTimeout = 5 * time.Minute

// waitDelay bounds how long Run waits for the output pipes after the tool
// was killed. Wrapper scripts leave children behind that keep them open.
const waitDelay = 2 * time.Second

// Runner invokes external tools. It returns the combined stdout and
// stderr; a non-zero exit is reported as a *ToolError.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// ExecRunner runs tools as subprocesses.
type ExecRunner struct {
	Timeout time.Duration
}

// NewExecRunner returns a runner with the given per-call timeout. A
// non-positive timeout selects DefaultToolTimeout.
func NewExecRunner(timeout time.Duration) *ExecRunner {
	if timeout <= 0 {
		timeout = DefaultToolTimeout
	}
	return &ExecRunner{Timeout: timeout}
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	if _, err := exec.LookPath(name); err != nil {
		return "", &ToolError{Tool: name, Args: args, ExitCode: -1, Err: fmt.Errorf("%w: %v", ErrToolNotFound, err)}
	}

	limit := r.Timeout
	if limit <= 0 {
		limit = DefaultToolTimeout
	}
	timeout, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(timeout, name, args...)
	killProcessGroup(cmd)
	cmd.WaitDelay = waitDelay
	out, err := cmd.CombinedOutput()
	slog.Debug("Ran external tool", "tool", name, "args", args, "duration", time.Since(start))
	if err == nil {
		return string(out), nil
	}

	toolErr := &ToolError{Tool: name, Args: args, ExitCode: -1, Output: string(out)}
	var exitErr *exec.ExitError
	switch {
	case errors.Is(timeout.Err(), context.DeadlineExceeded):
		toolErr.Err = fmt.Errorf("timed out after %s", limit)
	case errors.As(err, &exitErr):
		toolErr.ExitCode = exitErr.ExitCode()
	default:
		toolErr.Err = err
	}
	return string(out), toolErr
}
