package mobile

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks a package that is not applicable: it lacks the
	// platform marker entry or belongs to another build.
	ErrValidation = errors.New("package validation failed")
	// ErrNotFound is returned by the store for unknown build GUIDs.
	ErrNotFound = errors.New("appendix not found")
	// ErrArchitectureDetection is wrapped by platform errors raised before
	// any architecture was identified.
	ErrArchitectureDetection = errors.New("architecture detection failed")
	// ErrToolNotFound is wrapped by ToolError when the executable is missing.
	ErrToolNotFound = errors.New("tool not found")
)

// ToolError reports a failed external tool invocation.
type ToolError struct {
	Tool     string
	Args     []string
	ExitCode int
	Output   string
	Err      error
}

func (e *ToolError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "running %s", e.Tool)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	} else {
		fmt.Fprintf(&b, ": exit code %d", e.ExitCode)
	}
	if out := strings.TrimSpace(e.Output); out != "" {
		fmt.Fprintf(&b, "\n%s", out)
	}
	return b.String()
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// AnalysisError carries the last state an analysis reached before failing.
type AnalysisError struct {
	Path  string
	State State
	Err   error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analyzing %s (%s): %v", e.Path, e.State, e.Err)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}
