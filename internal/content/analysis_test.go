package content

import (
	"fmt"
	"math"
	"testing"

	"github.com/buildlens/buildlens/internal/archivemap"
	"github.com/buildlens/buildlens/internal/report"
	"github.com/stretchr/testify/require"
)

func bundleReport() *report.Report {
	return &report.Report{
		Summary: report.Summary{BuildType: report.BuildTypeAssetBundle},
		Files: []report.OutputFile{
			{Path: "levels", Role: report.RoleAssetBundle, Size: 1000},
			{Path: "levels/CAB-1", Role: "SerializedFile"},
			{Path: "levels/CAB-1.resS", Role: "StreamingResourceFile"},
		},
		PackedAssets: []report.PackedFile{
			{
				ShortPath: "CAB-1",
				Overhead:  16,
				Contents: []report.PackedObject{
					{SourceAssetID: "a", SourceAssetPath: "Assets/Hero.prefab", Type: "GameObject", PackedSize: 100},
					{SourceAssetID: "a", SourceAssetPath: "Assets/Hero.prefab", Type: "GameObject", PackedSize: 200},
					{SourceAssetID: "a", SourceAssetPath: "Assets/Hero.prefab", Type: "Transform", PackedSize: 40},
					{SourceAssetID: "a", SourceAssetPath: "Assets/Hero.prefab", Type: "GameObject", PackedSize: 50},
					{Type: "AssetBundle", PackedSize: 8},
				},
			},
			{
				ShortPath: "CAB-1.resS",
				Contents: []report.PackedObject{
					{SourceAssetID: "b", SourceAssetPath: "Assets/Hero.png", Type: "TextureImporter", PackedSize: 4096},
				},
			},
		},
	}
}

func TestAnalyzeCoalescesByTypeAndAsset(t *testing.T) {
	t.Parallel()

	rep := bundleReport()
	a := Analyze(rep, archivemap.Build(rep), 0)

	require.False(t, a.Truncated)
	require.Len(t, a.Entries, 4)

	var gameObject *Entry
	for i := range a.Entries {
		if a.Entries[i].Type == "GameObject" {
			gameObject = &a.Entries[i]
		}
	}
	require.NotNil(t, gameObject)
	require.Equal(t, uint64(350), gameObject.Size)
	require.Equal(t, 3, gameObject.ObjectCount)
	require.Equal(t, "levels", gameObject.OutputFile)
	require.Equal(t, "CAB-1", gameObject.InternalArchivePath)
	require.Equal(t, ".prefab", gameObject.Extension)

	// Largest first, importer suffix removed.
	require.Equal(t, "Texture", a.Entries[0].Type)
	require.Equal(t, uint64(4096), a.Entries[0].Size)
	require.Equal(t, "CAB-1.resS", a.Entries[0].InternalArchivePath)

	generated := a.Entries[len(a.Entries)-1]
	require.Equal(t, report.GeneratedPath, generated.Path)
	require.Empty(t, generated.Extension)
}

func TestAnalyzeConservesSize(t *testing.T) {
	t.Parallel()

	rep := bundleReport()
	a := Analyze(rep, archivemap.Build(rep), 0)

	var packed, count uint64
	for _, f := range rep.PackedAssets {
		for _, obj := range f.Contents {
			packed += obj.PackedSize
			count++
		}
	}
	require.Equal(t, packed, a.TotalSize())

	var objects int
	for _, e := range a.Entries {
		objects += e.ObjectCount
	}
	require.Equal(t, int(count), objects)

	// Output file totals carry the overhead on top of the entries.
	require.Equal(t, []SizeTotal{{Name: "levels", Size: packed + 16}}, a.OutputFiles)

	var typeTotal uint64
	for _, st := range a.Types {
		typeTotal += st.Size
	}
	require.Equal(t, packed, typeTotal)
}

func TestAnalyzeOneEntryPerKeyPerFile(t *testing.T) {
	t.Parallel()

	rep := bundleReport()
	a := Analyze(rep, archivemap.Build(rep), 0)

	seen := make(map[string]bool)
	for _, e := range a.Entries {
		key := fmt.Sprintf("%s|%s|%s", e.InternalArchivePath, e.Type, e.Path)
		require.False(t, seen[key], "duplicate entry %s", key)
		seen[key] = true
	}
}

func TestAnalyzePlayerBuild(t *testing.T) {
	t.Parallel()

	rep := &report.Report{
		Summary: report.Summary{BuildType: report.BuildTypePlayer},
		PackedAssets: []report.PackedFile{{
			ShortPath: "sharedassets0.assets",
			Overhead:  4,
			Contents: []report.PackedObject{
				{SourceAssetPath: "Assets/Theme.ogg", Type: "AudioClip", PackedSize: 10},
			},
		}},
	}
	a := Analyze(rep, archivemap.Build(rep), 0)

	require.Len(t, a.Entries, 1)
	require.Equal(t, "sharedassets0.assets", a.Entries[0].OutputFile)
	require.Empty(t, a.Entries[0].InternalArchivePath)
	require.Equal(t, []SizeTotal{{Name: "sharedassets0.assets", Size: 14}}, a.OutputFiles)
}

func TestAnalyzeMaxEntries(t *testing.T) {
	t.Parallel()

	rep := &report.Report{}
	for f := range 2 {
		packed := report.PackedFile{ShortPath: fmt.Sprintf("file%d", f)}
		for i := range 10 {
			packed.Contents = append(packed.Contents, report.PackedObject{
				SourceAssetPath: fmt.Sprintf("Assets/%d/%d.asset", f, i),
				Type:            "MonoBehaviour",
				PackedSize:      uint64(i + 1),
			})
		}
		rep.PackedAssets = append(rep.PackedAssets, packed)
	}

	a := Analyze(rep, nil, 5)
	require.Len(t, a.Entries, 5)
	require.True(t, a.Truncated)
	require.Equal(t, 5, a.MaxEntries)
	require.Equal(t, []SizeTotal{{Name: "file0", Size: 1 + 2 + 3 + 4 + 5}}, a.OutputFiles)

	exact := Analyze(rep, nil, 20)
	require.Len(t, exact.Entries, 20)
	require.False(t, exact.Truncated)
}

func TestAnalyzeCapIgnoresTrailingEmptyFiles(t *testing.T) {
	t.Parallel()

	rep := &report.Report{PackedAssets: []report.PackedFile{
		{ShortPath: "a", Contents: []report.PackedObject{{SourceAssetPath: "Assets/x", Type: "Mesh", PackedSize: 1}}},
		{ShortPath: "b", Overhead: 100},
	}}
	a := Analyze(rep, nil, 1)
	require.Len(t, a.Entries, 1)
	require.False(t, a.Truncated)
	require.Len(t, a.OutputFiles, 1)
}

func TestAnalyzeSortsLargeSizes(t *testing.T) {
	t.Parallel()

	rep := &report.Report{PackedAssets: []report.PackedFile{{
		ShortPath: "big",
		Contents: []report.PackedObject{
			{SourceAssetPath: "Assets/small", Type: "Mesh", PackedSize: 1},
			{SourceAssetPath: "Assets/huge", Type: "Mesh", PackedSize: math.MaxUint64 - 1},
			{SourceAssetPath: "Assets/mid", Type: "Mesh", PackedSize: 1 << 40},
		},
	}}}
	a := Analyze(rep, nil, 0)
	require.Equal(t, "Assets/huge", a.Entries[0].Path)
	require.Equal(t, "Assets/mid", a.Entries[1].Path)
	require.Equal(t, "Assets/small", a.Entries[2].Path)
}

func TestAnalyzeNilReport(t *testing.T) {
	t.Parallel()

	a := Analyze(nil, nil, -3)
	require.Empty(t, a.Entries)
	require.Zero(t, a.MaxEntries)
}
