package content

import (
	"cmp"
	"slices"

	"github.com/buildlens/buildlens/internal/report"
)

// TypeStats accumulates everything packed for one type. Sizes include
// resource data owned by the objects.
type TypeStats struct {
	Type          string `json:"type"`
	Size          uint64 `json:"size"`
	ObjectCount   int    `json:"objectCount"`
	ResourceCount int    `json:"resourceCount"`
}

// AssetStats accumulates everything packed from one source asset.
type AssetStats struct {
	SourceAssetID   string `json:"sourceAssetGuid,omitempty"`
	SourceAssetPath string `json:"sourceAssetPath"`
	Size            uint64 `json:"size"`
	ObjectCount     int    `json:"objectCount"`
	ResourceCount   int    `json:"resourceCount"`
}

// Statistics summarizes the build output. Sizes are uncompressed: they do
// not account for compression of the containing archive.
type Statistics struct {
	SerializedFileCount int `json:"serializedFileCount"`
	ResourceFileCount   int `json:"resourceFileCount"`
	ObjectCount         int `json:"objectCount"`
	// InternalObjectCount counts objects that map to no source asset,
	// e.g. objects generated for AssetBundles.
	InternalObjectCount int `json:"internalObjectCount"`

	TotalSerializedFileSize uint64 `json:"totalSerializedFileSize"`
	TotalHeaderSize         uint64 `json:"totalHeaderSize"`
	TotalResourceSize       uint64 `json:"totalResourceSize"`

	Types  []TypeStats  `json:"types"`
	Assets []AssetStats `json:"assets"`
}

// TotalSize is the combined size of serialized and resource files.
func (s *Statistics) TotalSize() uint64 {
	return s.TotalSerializedFileSize + s.TotalResourceSize
}

// Summarize computes the per-type and per-asset statistics of a report.
// Internal objects count towards the type and file totals but never
// towards an asset.
func Summarize(rep *report.Report) *Statistics {
	s := &Statistics{}
	if rep == nil {
		return s
	}

	typeIndex := make(map[string]int)
	assetIndex := make(map[string]int)

	for _, packed := range rep.PackedAssets {
		resource := packed.IsResourceFile()
		if resource {
			s.ResourceFileCount++
			s.TotalResourceSize += packed.Overhead
		} else {
			s.SerializedFileCount++
			s.TotalSerializedFileSize += packed.Overhead
			s.TotalHeaderSize += packed.Overhead
		}

		for _, obj := range packed.Contents {
			if resource {
				s.TotalResourceSize += obj.PackedSize
			} else {
				s.TotalSerializedFileSize += obj.PackedSize
				s.ObjectCount++
			}

			typ := report.NormalizeType(obj.Type)
			i, ok := typeIndex[typ]
			if !ok {
				i = len(s.Types)
				typeIndex[typ] = i
				s.Types = append(s.Types, TypeStats{Type: typ})
			}
			s.Types[i].add(obj.PackedSize, resource)

			if obj.SourceAssetPath == "" {
				s.InternalObjectCount++
				continue
			}
			key := obj.AssetKey()
			j, ok := assetIndex[key]
			if !ok {
				j = len(s.Assets)
				assetIndex[key] = j
				s.Assets = append(s.Assets, AssetStats{
					SourceAssetID:   obj.SourceAssetID,
					SourceAssetPath: obj.SourceAssetPath,
				})
			}
			s.Assets[j].add(obj.PackedSize, resource)
		}
	}

	slices.SortStableFunc(s.Types, func(x, y TypeStats) int { return cmp.Compare(y.Size, x.Size) })
	slices.SortStableFunc(s.Assets, func(x, y AssetStats) int { return cmp.Compare(y.Size, x.Size) })
	return s
}

func (t *TypeStats) add(size uint64, resource bool) {
	t.Size += size
	if resource {
		t.ResourceCount++
	} else {
		t.ObjectCount++
	}
}

func (a *AssetStats) add(size uint64, resource bool) {
	a.Size += size
	if resource {
		a.ResourceCount++
	} else {
		a.ObjectCount++
	}
}
