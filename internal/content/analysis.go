// Package content aggregates the packed objects of a build report into
// per-asset, per-type and per-output-file size breakdowns.
package content

import (
	"cmp"
	"path/filepath"
	"slices"

	"github.com/buildlens/buildlens/internal/archivemap"
	"github.com/buildlens/buildlens/internal/report"
)

// Entry is the total size of one type from one source asset inside one
// output file. Objects sharing type and source asset are coalesced, so a
// prefab with thousands of GameObjects produces a single row.
type Entry struct {
	SourceAssetID string `json:"sourceAssetGuid,omitempty"`
	// Path is the source asset path, or GeneratedPath for build output
	// that has no source asset.
	Path       string `json:"path"`
	OutputFile string `json:"outputFile"`
	// InternalArchivePath is the file name inside the AssetBundle. Empty
	// for player builds.
	InternalArchivePath string `json:"internalArchivePath,omitempty"`
	Type                string `json:"type"`
	Size                uint64 `json:"size"`
	ObjectCount         int    `json:"objectCount"`
	Extension           string `json:"extension,omitempty"`
}

// SizeTotal is one named bucket of an aggregate view.
type SizeTotal struct {
	Name string `json:"name"`
	Size uint64 `json:"size"`
}

// Analysis is the result of Analyze. All slices are sorted by size,
// largest first.
type Analysis struct {
	Entries     []Entry     `json:"entries"`
	OutputFiles []SizeTotal `json:"outputFiles"`
	Types       []SizeTotal `json:"types"`
	// Truncated is set when rows were dropped because of the entry cap.
	Truncated  bool `json:"truncated"`
	MaxEntries int  `json:"maxEntries,omitempty"`
}

// TotalSize returns the sum of all entry sizes.
func (a *Analysis) TotalSize() uint64 {
	var total uint64
	for _, e := range a.Entries {
		total += e.Size
	}
	return total
}

type entryKey struct {
	typ   string
	asset string
}

// Analyze builds the content breakdown. maxEntries <= 0 disables the cap.
// Once the cap is reached no further rows or totals are accumulated.
func Analyze(rep *report.Report, mapping *archivemap.Mapping, maxEntries int) *Analysis {
	a := &Analysis{MaxEntries: max(maxEntries, 0)}
	if rep == nil {
		return a
	}

	outputFiles := newTotals()
	types := newTotals()
	capped := func() bool { return maxEntries > 0 && len(a.Entries) >= maxEntries }

files:
	for _, packed := range rep.PackedAssets {
		if capped() {
			if len(packed.Contents) > 0 {
				a.Truncated = true
				break
			}
			continue
		}
		outputFile, internalPath := packed.ShortPath, ""
		if archive, ok := mapping.ArchiveFor(packed.ShortPath); ok {
			outputFile, internalPath = archive, packed.ShortPath
		}
		outputFiles.add(outputFile, packed.Overhead)

		var (
			rows  []Entry
			index = make(map[entryKey]int)
		)
		for _, obj := range packed.Contents {
			typ := report.NormalizeType(obj.Type)
			key := entryKey{typ: typ, asset: obj.AssetKey()}
			if i, ok := index[key]; ok {
				rows[i].Size += obj.PackedSize
				rows[i].ObjectCount++
				continue
			}

			path := obj.SourceAssetPath
			if path == "" {
				path = report.GeneratedPath
			}
			index[key] = len(rows)
			rows = append(rows, Entry{
				SourceAssetID:       obj.SourceAssetID,
				Path:                path,
				OutputFile:          outputFile,
				InternalArchivePath: internalPath,
				Type:                typ,
				Size:                obj.PackedSize,
				ObjectCount:         1,
				Extension:           filepath.Ext(path),
			})
		}

		for _, row := range rows {
			if capped() {
				a.Truncated = true
				break files
			}
			a.Entries = append(a.Entries, row)
			outputFiles.add(outputFile, row.Size)
			types.add(row.Type, row.Size)
		}
	}

	slices.SortStableFunc(a.Entries, func(x, y Entry) int {
		return cmp.Compare(y.Size, x.Size)
	})
	a.OutputFiles = outputFiles.sorted()
	a.Types = types.sorted()
	return a
}

// totals accumulates named sizes while remembering first-seen order so
// ties sort deterministically.
type totals struct {
	order []string
	sizes map[string]uint64
}

func newTotals() *totals {
	return &totals{sizes: make(map[string]uint64)}
}

func (t *totals) add(name string, size uint64) {
	if _, ok := t.sizes[name]; !ok {
		t.order = append(t.order, name)
	}
	t.sizes[name] += size
}

func (t *totals) sorted() []SizeTotal {
	out := make([]SizeTotal, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, SizeTotal{Name: name, Size: t.sizes[name]})
	}
	sortBySizeDesc(out)
	return out
}

func sortBySizeDesc(s []SizeTotal) {
	slices.SortStableFunc(s, func(x, y SizeTotal) int {
		return cmp.Compare(y.Size, x.Size)
	})
}
