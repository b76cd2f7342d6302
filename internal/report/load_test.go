package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const yamlReport = `
summary:
  guid: 5c1f3a0e9b2d4c7e8f6a1b2c3d4e5f60
  buildType: AssetBundle
files:
  - path: C:/Src/Build/AssetBundles/audio.bundle/CAB-76a378bdc9304bd3c3a82de8dd97981a.resource
    role: StreamingResourceFile
    size: 4096
  - path: C:/Src/Build/AssetBundles/audio.bundle
    role: AssetBundle
    size: 5000
packedAssets:
  - shortPath: CAB-76a378bdc9304bd3c3a82de8dd97981a.resource
    contents:
      - sourceAssetGuid: 0f1e2d3c4b5a69788796a5b4c3d2e1f0
        sourceAssetPath: Assets/Audio/theme.ogg
        type: AudioClip
        packedSize: 4000
`

func TestDecodeYAML(t *testing.T) {
	t.Parallel()

	rep, err := Decode(strings.NewReader(yamlReport), FormatYAML)
	require.NoError(t, err)
	require.Len(t, rep.Files, 2)
	require.True(t, rep.Files[1].IsArchive())
	require.False(t, rep.Files[0].IsArchive())
	require.Len(t, rep.PackedAssets, 1)
	require.True(t, rep.PackedAssets[0].IsResourceFile())
	require.Equal(t, uint64(4000), rep.PackedAssets[0].Contents[0].PackedSize)
	require.False(t, rep.IsPlayerBuild())
	require.Equal(t, 1, rep.ObjectCount())
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	const doc = `{
		"summary": {"guid": "", "buildType": "Player"},
		"files": [{"path": "Build/data.unity3d", "role": "UnityArchive", "size": 10}],
		"packedAssets": [{"shortPath": "sharedassets0.assets", "overhead": 100,
			"contents": [{"type": "TextureImporter", "packedSize": 18446744073709551615}]}]
	}`
	rep, err := Decode(strings.NewReader(doc), FormatJSON)
	require.NoError(t, err)
	require.True(t, rep.IsPlayerBuild())
	obj := rep.PackedAssets[0].Contents[0]
	require.True(t, obj.IsInternal())
	require.Equal(t, uint64(18446744073709551615), obj.PackedSize)
	require.Equal(t, "Texture", NormalizeType(obj.Type))
}

func TestDecodeRejectsBadGUID(t *testing.T) {
	t.Parallel()

	_, err := Decode(strings.NewReader(`{"summary":{"guid":"not-a-guid"}}`), FormatJSON)
	require.Error(t, err)
}

func TestDecodeRejectsPackedFileWithoutPath(t *testing.T) {
	t.Parallel()

	_, err := Decode(strings.NewReader(`{"packedAssets":[{"shortPath":" "}]}`), FormatJSON)
	require.Error(t, err)
}

func TestLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "report.yml")
	require.NoError(t, os.WriteFile(path, []byte(yamlReport), 0o644))

	rep, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "5c1f3a0e9b2d4c7e8f6a1b2c3d4e5f60", rep.Summary.GUID)

	_, err = Load(filepath.Join(dir, "report.txt"))
	require.ErrorIs(t, err, errUnknownFormat)

	_, err = Load(filepath.Join(dir, "missing.json"))
	require.Error(t, err)
}

func TestAssetKey(t *testing.T) {
	t.Parallel()

	require.Equal(t, "guid", PackedObject{SourceAssetID: "guid", SourceAssetPath: "a"}.AssetKey())
	require.Equal(t, "a", PackedObject{SourceAssetPath: "a"}.AssetKey())
	require.Equal(t, "", PackedObject{}.AssetKey())
}
