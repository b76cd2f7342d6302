package mobile

import (
	"context"
	"fmt"
)

// Segments holds executable segment sizes of one architecture slice.
type Segments struct {
	Text     int64 `json:"text"`
	Data     int64 `json:"data"`
	LLVM     int64 `json:"llvm"`
	Linkedit int64 `json:"linkedit"`
}

// ArchInfo is the estimated download size of one architecture.
type ArchInfo struct {
	Name         string    `json:"name"`
	DownloadSize int64     `json:"downloadSize"`
	Segments     *Segments `json:"segments,omitempty"`
}

// Platform computes architecture information for one package family.
type Platform interface {
	Name() string
	// Validate checks that the package belongs to the platform. Failures
	// wrap ErrValidation.
	Validate(pkg *Package) error
	// ArchitectureInfo detects the architectures and estimates their
	// download sizes. Errors raised before any architecture is known wrap
	// ErrArchitectureDetection.
	ArchitectureInfo(ctx context.Context, pkg *Package) ([]ArchInfo, error)
}

func detectionError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrArchitectureDetection, fmt.Sprintf(format, args...))
}
