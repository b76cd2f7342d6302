package incremental

import (
	"maps"
	"slices"
)

// ChangeKind classifies what happened to a bundle between two snapshots.
type ChangeKind string

const (
	NotRebuilt             ChangeKind = "not rebuilt"
	TimestampMatchModified ChangeKind = "timestamp match with new content"
	HashConflict           ChangeKind = "new crc, unchanged hash"
	ContentChangedSameHash ChangeKind = "new file content, unchanged hash"
	RebuiltIdentical       ChangeKind = "rebuilt, identical content"
	RebuiltNewHashSame     ChangeKind = "rebuilt, new hash produced identical content"
	RebuiltNewContent      ChangeKind = "rebuilt, new content"
	BrandNew               ChangeKind = "brand new"
	Obsolete               ChangeKind = "obsolete"
)

// Suspicious reports whether the change points at a broken incremental
// build or a hash collision. Builds with suspicious changes should not be
// released without a closer look.
func (k ChangeKind) Suspicious() bool {
	switch k {
	case TimestampMatchModified, HashConflict, ContentChangedSameHash:
		return true
	}
	return false
}

// Change is the comparison result for one bundle path.
type Change struct {
	Path     string      `json:"path"`
	Kind     ChangeKind  `json:"kind"`
	Previous *BundleInfo `json:"previous,omitempty"`
	Current  *BundleInfo `json:"current,omitempty"`
}

// Compare classifies every bundle of next against prev. Bundles of next
// come first in path order, followed by bundles only prev has.
func Compare(prev, next *Snapshot) []Change {
	var changes []Change
	for _, path := range slices.Sorted(maps.Keys(next.Bundles)) {
		cur := next.Bundles[path]
		old, ok := prev.Bundles[path]
		if !ok {
			changes = append(changes, Change{Path: path, Kind: BrandNew, Current: &cur})
			continue
		}
		changes = append(changes, Change{Path: path, Kind: classify(old, cur), Previous: &old, Current: &cur})
	}
	for _, path := range slices.Sorted(maps.Keys(prev.Bundles)) {
		if _, ok := next.Bundles[path]; ok {
			continue
		}
		old := prev.Bundles[path]
		changes = append(changes, Change{Path: path, Kind: Obsolete, Previous: &old})
	}
	return changes
}

func classify(old, cur BundleInfo) ChangeKind {
	switch {
	case old.ModTime.Equal(cur.ModTime):
		if old.CRC != cur.CRC || old.ContentHash != cur.ContentHash {
			return TimestampMatchModified
		}
		return NotRebuilt
	case old.Hash == cur.Hash:
		switch {
		case old.CRC != cur.CRC:
			return HashConflict
		case old.ContentHash != cur.ContentHash:
			return ContentChangedSameHash
		}
		return RebuiltIdentical
	case old.ContentHash == cur.ContentHash:
		return RebuiltNewHashSame
	}
	return RebuiltNewContent
}

// Counts tallies changes per kind.
func Counts(changes []Change) map[ChangeKind]int {
	counts := make(map[ChangeKind]int)
	for _, c := range changes {
		counts[c.Kind]++
	}
	return counts
}
