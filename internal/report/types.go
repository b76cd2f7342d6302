package report

import "strings"

// FileRole tags an output file with the part it plays in the build.
type FileRole string

// Roles the analyzers care about. Any other role string is kept verbatim.
const (
	RoleAssetBundle           FileRole = "AssetBundle"
	RoleManifestAssetBundle   FileRole = "ManifestAssetBundle"
	RoleStreamingResourceFile FileRole = "StreamingResourceFile"
)

// Build types reported in the summary.
const (
	BuildTypePlayer      = "Player"
	BuildTypeAssetBundle = "AssetBundle"
)

// GeneratedPath is reported for objects that have no source asset.
const GeneratedPath = "Generated"

// OutputFile is one file written by the build.
type OutputFile struct {
	Path string   `json:"path" yaml:"path"`
	Role FileRole `json:"role" yaml:"role"`
	Size uint64   `json:"size" yaml:"size"`
}

// IsArchive reports whether the file is an AssetBundle container.
func (f OutputFile) IsArchive() bool {
	return f.Role == RoleAssetBundle || f.Role == RoleManifestAssetBundle
}

// PackedObject is one object or resource blob packed into an output file.
type PackedObject struct {
	SourceAssetID   string `json:"sourceAssetGuid,omitempty" yaml:"sourceAssetGuid,omitempty"`
	SourceAssetPath string `json:"sourceAssetPath,omitempty" yaml:"sourceAssetPath,omitempty"`
	Type            string `json:"type" yaml:"type"`
	PackedSize      uint64 `json:"packedSize" yaml:"packedSize"`
}

// IsInternal reports whether the object was generated by the build and
// cannot be traced back to a source asset.
func (o PackedObject) IsInternal() bool {
	return o.SourceAssetID == "" && o.SourceAssetPath == ""
}

// AssetKey identifies the source asset, falling back to the path when the
// report carries no id.
func (o PackedObject) AssetKey() string {
	if o.SourceAssetID != "" {
		return o.SourceAssetID
	}
	return o.SourceAssetPath
}

// PackedFile groups the packed objects of one serialized or resource file.
type PackedFile struct {
	ShortPath string         `json:"shortPath" yaml:"shortPath"`
	Overhead  uint64         `json:"overhead,omitempty" yaml:"overhead,omitempty"`
	Contents  []PackedObject `json:"contents" yaml:"contents"`
}

// IsResourceFile reports whether the file only holds streamed blobs
// (audio, video, texture or mesh data) referenced from serialized files.
func (f PackedFile) IsResourceFile() bool {
	return strings.HasSuffix(f.ShortPath, ".resS") || strings.HasSuffix(f.ShortPath, ".resource")
}

// Summary carries build-level metadata.
type Summary struct {
	GUID       string `json:"guid" yaml:"guid"`
	Platform   string `json:"platform,omitempty" yaml:"platform,omitempty"`
	BuildType  string `json:"buildType,omitempty" yaml:"buildType,omitempty"`
	OutputPath string `json:"outputPath,omitempty" yaml:"outputPath,omitempty"`
	TotalSize  uint64 `json:"totalSize,omitempty" yaml:"totalSize,omitempty"`
}

// Report is the structured build report the analyzers consume. It is
// produced by the engine and treated as read-only.
type Report struct {
	Summary      Summary      `json:"summary" yaml:"summary"`
	Files        []OutputFile `json:"files" yaml:"files"`
	PackedAssets []PackedFile `json:"packedAssets" yaml:"packedAssets"`
}

// IsPlayerBuild reports whether the report describes a player build.
func (r *Report) IsPlayerBuild() bool {
	return strings.EqualFold(r.Summary.BuildType, BuildTypePlayer)
}

// ObjectCount returns the number of packed objects across all files.
func (r *Report) ObjectCount() int {
	n := 0
	for _, f := range r.PackedAssets {
		n += len(f.Contents)
	}
	return n
}

// NormalizeType strips the importer suffix some type names carry.
func NormalizeType(t string) string {
	return strings.TrimSuffix(t, "Importer")
}
