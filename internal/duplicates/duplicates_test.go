package duplicates

import (
	"fmt"
	"math"
	"testing"

	"github.com/buildlens/buildlens/internal/archivemap"
	"github.com/buildlens/buildlens/internal/report"
	"github.com/stretchr/testify/require"
)

// bundle adds an archive with one internal file holding objects.
func bundle(rep *report.Report, archive, internal string, objects ...report.PackedObject) {
	rep.Files = append(rep.Files,
		report.OutputFile{Path: "Build/" + archive, Role: report.RoleAssetBundle},
		report.OutputFile{Path: "Build/" + archive + "/" + internal, Role: "SerializedFile"},
	)
	rep.PackedAssets = append(rep.PackedAssets, report.PackedFile{ShortPath: internal, Contents: objects})
}

func obj(path string, size uint64) report.PackedObject {
	return report.PackedObject{SourceAssetPath: path, Type: "Mesh", PackedSize: size}
}

func TestDetectSharedAsset(t *testing.T) {
	t.Parallel()

	rep := &report.Report{Summary: report.Summary{BuildType: report.BuildTypeAssetBundle}}
	bundle(rep, "scene1.bundle", "CAB-1", obj("GUID-A", 120), obj("GUID-A", 180), obj("Assets/only1.fbx", 10))
	bundle(rep, "scene2.bundle", "CAB-2", obj("GUID-A", 300))

	res := Detect(rep, archivemap.Build(rep))

	require.Len(t, res.Assets, 1)
	a, ok := res.Asset("GUID-A")
	require.True(t, ok)
	require.Equal(t, []ArchiveSize{
		{Archive: "scene1.bundle", Size: 300},
		{Archive: "scene2.bundle", Size: 300},
	}, a.Archives)
	require.True(t, a.UniformSize())
	require.Equal(t, uint64(300), res.DuplicateSize)
	require.Equal(t, uint64(610), res.TotalSize)

	size, ok := a.SizeIn("scene2.bundle")
	require.True(t, ok)
	require.Equal(t, uint64(300), size)

	_, ok = res.Asset("Assets/only1.fbx")
	require.False(t, ok)
}

func TestDetectSkipPolicy(t *testing.T) {
	t.Parallel()

	shared := []string{
		"",
		"Assets/Scripts/Player.cs",
		"Assets/Scripts/Enemy.CS",
		ManifestObjectPath,
		BuiltinExtraPath,
		"Assets/Generated/Cache/a.asset",
		"Assets/Textures/hero.png",
	}
	rep := &report.Report{}
	for _, archive := range []string{"a.bundle", "b.bundle", "c.bundle"} {
		var objects []report.PackedObject
		for _, p := range shared {
			objects = append(objects, obj(p, 30))
		}
		bundle(rep, archive, "CAB-"+archive, objects...)
	}
	// Files outside any archive are never attributed.
	rep.PackedAssets = append(rep.PackedAssets, report.PackedFile{
		ShortPath: "loose.assets",
		Contents:  []report.PackedObject{obj("Assets/Textures/hero.png", 30)},
	})

	res := Detect(rep, archivemap.Build(rep), WithIgnore("Assets/Generated/**"))

	require.Len(t, res.Assets, 1)
	require.Equal(t, "Assets/Textures/hero.png", res.Assets[0].Path)
	require.Equal(t, 3, res.Assets[0].ArchiveCount())
	require.Equal(t, uint64(90), res.Assets[0].TotalSize)
	require.Equal(t, uint64(60), res.DuplicateSize)
	require.Equal(t, uint64(30*len(shared)*3+30), res.TotalSize)
}

func TestDetectScriptExtensionsOption(t *testing.T) {
	t.Parallel()

	rep := &report.Report{}
	bundle(rep, "a", "CAB-a", obj("Assets/logic.lua", 10), obj("Assets/Player.cs", 5))
	bundle(rep, "b", "CAB-b", obj("Assets/logic.lua", 10), obj("Assets/Player.cs", 5))

	res := Detect(rep, archivemap.Build(rep), WithScriptExtensions(".lua"))
	require.Len(t, res.Assets, 1)
	require.Equal(t, "Assets/Player.cs", res.Assets[0].Path)
}

func TestDetectAveragesUnevenCopies(t *testing.T) {
	t.Parallel()

	rep := &report.Report{}
	bundle(rep, "a", "CAB-a", obj("Assets/model.fbx", 100))
	bundle(rep, "b", "CAB-b", obj("Assets/model.fbx", 200))
	bundle(rep, "c", "CAB-c", obj("Assets/model.fbx", 300))

	res := Detect(rep, archivemap.Build(rep))
	require.False(t, res.Assets[0].UniformSize())
	// (3-1) * 600/3
	require.Equal(t, uint64(400), res.DuplicateSize)
}

func TestDetectBounds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		archive []uint64
	}{
		{name: "single archive", archive: []uint64{500}},
		{name: "two archives", archive: []uint64{7, 11}},
		{name: "many archives", archive: []uint64{1, 2, 3, 4, 5, 6, 7}},
		{name: "huge sizes", archive: []uint64{math.MaxUint64 / 4, math.MaxUint64 / 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rep := &report.Report{}
			for i, size := range tt.archive {
				bundle(rep, fmt.Sprintf("b%d", i), fmt.Sprintf("CAB-%d", i), obj("Assets/x.asset", size))
			}
			res := Detect(rep, archivemap.Build(rep))
			require.LessOrEqual(t, res.DuplicateSize, res.TotalSize)
			if len(tt.archive) < 2 {
				require.Zero(t, res.DuplicateSize)
				require.Empty(t, res.Assets)
			} else {
				require.Positive(t, res.DuplicateSize)
			}
		})
	}
}

func TestDetectPlayerBuild(t *testing.T) {
	t.Parallel()

	rep := &report.Report{Summary: report.Summary{BuildType: report.BuildTypePlayer}}
	bundle(rep, "a", "CAB-a", obj("Assets/x.asset", 10))
	bundle(rep, "b", "CAB-b", obj("Assets/x.asset", 10))

	res := Detect(rep, archivemap.Build(rep))
	require.Empty(t, res.Assets)
	require.Zero(t, res.DuplicateSize)
	require.Equal(t, uint64(20), res.TotalSize)
}

func TestDuplicateSizeDoesNotOverflow(t *testing.T) {
	t.Parallel()

	a := AssetStats{
		TotalSize: math.MaxUint64 - 2,
		Archives:  []ArchiveSize{{Archive: "a"}, {Archive: "b"}, {Archive: "c"}},
	}
	require.Equal(t, uint64((math.MaxUint64-2)/3*2), a.DuplicateSize())
}
