package mobile

import (
	"context"
	"errors"
	"log/slog"
)

// State is the progress of one package analysis.
type State int

const (
	StateUnvalidated State = iota
	StateValidated
	StateArchitecturesDetected
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateValidated:
		return "validated"
	case StateArchitecturesDetected:
		return "architectures detected"
	case StateComplete:
		return "complete"
	default:
		return "unvalidated"
	}
}

// Analyzer runs a platform over mobile packages.
type Analyzer struct {
	platform Platform
}

// NewAnalyzer returns an analyzer for the given platform.
func NewAnalyzer(platform Platform) *Analyzer {
	return &Analyzer{platform: platform}
}

// Platform returns the platform the analyzer was built with.
func (a *Analyzer) Platform() Platform {
	return a.platform
}

// Analyze opens the package at path and estimates its per-architecture
// download sizes. Any failure yields an *AnalysisError and no partial
// result.
func (a *Analyzer) Analyze(ctx context.Context, path string) ([]ArchInfo, error) {
	pkg, err := OpenPackage(path)
	if err != nil {
		return nil, &AnalysisError{Path: path, State: StateUnvalidated, Err: err}
	}
	return a.AnalyzePackage(ctx, pkg)
}

// AnalyzePackage is Analyze for an already opened package.
func (a *Analyzer) AnalyzePackage(ctx context.Context, pkg *Package) ([]ArchInfo, error) {
	if err := a.platform.Validate(pkg); err != nil {
		return nil, &AnalysisError{Path: pkg.Path, State: StateUnvalidated, Err: err}
	}

	archs, err := a.platform.ArchitectureInfo(ctx, pkg)
	if err != nil {
		state := StateArchitecturesDetected
		if errors.Is(err, ErrArchitectureDetection) {
			state = StateValidated
		}
		return nil, &AnalysisError{Path: pkg.Path, State: state, Err: err}
	}

	slog.Debug("Analyzed mobile package", "path", pkg.Path, "platform", a.platform.Name(), "architectures", len(archs))
	return archs, nil
}
