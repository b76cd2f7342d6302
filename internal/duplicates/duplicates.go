// Package duplicates finds source assets whose content was packed into
// more than one AssetBundle.
package duplicates

import (
	"cmp"
	"log/slog"
	"math/bits"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/buildlens/buildlens/internal/archivemap"
	"github.com/buildlens/buildlens/internal/report"
)

const (
	// ManifestObjectPath is reported for the per-bundle manifest object.
	// Its content differs per bundle.
	ManifestObjectPath = "AssetBundle Object"
	// BuiltinExtraPath holds the built-in engine resources. Bundles pick
	// independent subsets of it, so copies cannot be compared as a whole.
	BuiltinExtraPath = "Resources/unity_builtin_extra"
)

// DefaultScriptExtensions lists the extensions of script assets. Each
// bundle gets its own small script metadata object, which is not
// duplicated content.
var DefaultScriptExtensions = []string{".cs"}

// ArchiveSize is the size an asset contributes to one archive.
type ArchiveSize struct {
	Archive string `json:"archive"`
	Size    uint64 `json:"size"`
}

// AssetStats describes one source asset found in several archives.
type AssetStats struct {
	Path      string        `json:"path"`
	TotalSize uint64        `json:"totalSize"`
	Archives  []ArchiveSize `json:"archives"`
}

// ArchiveCount is the number of distinct archives holding the asset.
func (a *AssetStats) ArchiveCount() int {
	return len(a.Archives)
}

// SizeIn returns the bytes the asset contributes to archive.
func (a *AssetStats) SizeIn(archive string) (uint64, bool) {
	for _, s := range a.Archives {
		if s.Archive == archive {
			return s.Size, true
		}
	}
	return 0, false
}

// UniformSize reports whether every copy has the same size. Sub-assets
// of model files can legitimately differ between bundles.
func (a *AssetStats) UniformSize() bool {
	if len(a.Archives) == 0 {
		return true
	}
	for _, s := range a.Archives[1:] {
		if s.Size != a.Archives[0].Size {
			return false
		}
	}
	return true
}

// DuplicateSize estimates the bytes saved by moving the asset into one
// shared bundle: (copies-1) times the average copy size.
func (a *AssetStats) DuplicateSize() uint64 {
	n := uint64(len(a.Archives))
	if n < 2 {
		return 0
	}
	hi, lo := bits.Mul64(n-1, a.TotalSize)
	q, _ := bits.Div64(hi, lo, n)
	return q
}

// Result is the outcome of Detect.
type Result struct {
	// Assets holds only assets found in more than one archive, largest
	// first.
	Assets []AssetStats `json:"assets"`
	// TotalSize counts every packed byte considered, duplicated or not.
	TotalSize     uint64 `json:"totalSize"`
	DuplicateSize uint64 `json:"duplicateSize"`
}

// Asset looks up a duplicated asset by source path.
func (r *Result) Asset(path string) (*AssetStats, bool) {
	for i := range r.Assets {
		if r.Assets[i].Path == path {
			return &r.Assets[i], true
		}
	}
	return nil, false
}

type options struct {
	ignore           []string
	scriptExtensions []string
}

// Option configures Detect.
type Option func(*options)

// WithIgnore skips source paths matching any of the doublestar patterns.
func WithIgnore(patterns ...string) Option {
	return func(o *options) {
		o.ignore = append(o.ignore, patterns...)
	}
}

// WithScriptExtensions replaces the list of script extensions to skip.
func WithScriptExtensions(exts ...string) Option {
	return func(o *options) {
		o.scriptExtensions = exts
	}
}

// Detect accumulates packed sizes per source asset and archive. Player
// builds have no archives and never report duplicates.
func Detect(rep *report.Report, mapping *archivemap.Mapping, opts ...Option) *Result {
	o := options{scriptExtensions: DefaultScriptExtensions}
	for _, opt := range opts {
		opt(&o)
	}

	res := &Result{}
	if rep == nil {
		return res
	}

	var (
		order  []string
		assets = make(map[string]*AssetStats)
	)
	for _, packed := range rep.PackedAssets {
		for _, obj := range packed.Contents {
			res.TotalSize += obj.PackedSize
		}
		archive, ok := mapping.ArchiveFor(packed.ShortPath)
		if !ok {
			continue
		}
		for _, obj := range packed.Contents {
			if o.skip(obj.SourceAssetPath) {
				continue
			}
			stats, ok := assets[obj.SourceAssetPath]
			if !ok {
				stats = &AssetStats{Path: obj.SourceAssetPath}
				assets[obj.SourceAssetPath] = stats
				order = append(order, obj.SourceAssetPath)
			}
			stats.add(archive, obj.PackedSize)
		}
	}

	for _, path := range order {
		stats := assets[path]
		if stats.ArchiveCount() < 2 {
			continue
		}
		if !stats.UniformSize() {
			slog.Debug("Duplicated asset differs in size between archives", "path", path, "archives", stats.ArchiveCount())
		}
		res.Assets = append(res.Assets, *stats)
		res.DuplicateSize += stats.DuplicateSize()
	}
	slices.SortStableFunc(res.Assets, func(x, y AssetStats) int {
		return cmp.Compare(y.TotalSize, x.TotalSize)
	})
	return res
}

func (a *AssetStats) add(archive string, size uint64) {
	a.TotalSize += size
	for i := range a.Archives {
		if a.Archives[i].Archive == archive {
			a.Archives[i].Size += size
			return
		}
	}
	a.Archives = append(a.Archives, ArchiveSize{Archive: archive, Size: size})
}

func (o *options) skip(path string) bool {
	switch path {
	case "", ManifestObjectPath, BuiltinExtraPath:
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range o.scriptExtensions {
		if ext == strings.ToLower(s) {
			return true
		}
	}
	for _, pattern := range o.ignore {
		if ok, _ := doublestar.Match(pattern, path); ok {
			return true
		}
	}
	return false
}
