package mobile

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
)

// File is one non-empty entry of a mobile package.
type File struct {
	Path             string `json:"path"`
	CompressedSize   uint64 `json:"compressedSize"`
	UncompressedSize uint64 `json:"uncompressedSize"`
}

// Appendix is the mobile-specific part of a build report.
type Appendix struct {
	BuildSize     uint64     `json:"buildSize"`
	Files         []File     `json:"files"`
	Architectures []ArchInfo `json:"architectures,omitempty"`
}

// Clone returns a deep copy of a.
func (a *Appendix) Clone() *Appendix {
	c := &Appendix{
		BuildSize:     a.BuildSize,
		Files:         slices.Clone(a.Files),
		Architectures: slices.Clone(a.Architectures),
	}
	for i, arch := range c.Architectures {
		if arch.Segments != nil {
			seg := *arch.Segments
			c.Architectures[i].Segments = &seg
		}
	}
	return c
}

// BuildAppendix lists the package files and, when an analyzer is given,
// estimates per-architecture download sizes. A package without any
// platform marker fails with ErrValidation. Architecture failures are
// logged and leave Architectures nil.
func BuildAppendix(ctx context.Context, path string, analyzer *Analyzer) (*Appendix, error) {
	pkg, err := OpenPackage(path)
	if err != nil {
		return nil, err
	}
	if !pkg.HasMarker() {
		return nil, fmt.Errorf("%w: %s is not a mobile package", ErrValidation, path)
	}

	app := &Appendix{BuildSize: uint64(pkg.Size)}
	for _, e := range pkg.Dir.Entries {
		// Directory markers and empty files carry no size.
		if e.UncompressedSize == 0 {
			continue
		}
		app.Files = append(app.Files, File{
			Path:             e.Name,
			CompressedSize:   e.CompressedSize,
			UncompressedSize: e.UncompressedSize,
		})
	}

	if analyzer == nil {
		return app, nil
	}
	archs, err := analyzer.AnalyzePackage(ctx, pkg)
	if err != nil {
		slog.Warn("Failed to collect architecture data", "path", path, "error", err)
		return app, nil
	}
	app.Architectures = archs
	return app, nil
}
