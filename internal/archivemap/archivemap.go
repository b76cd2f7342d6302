// Package archivemap maps the content-addressed file names found inside
// AssetBundles back to the bundle file that contains them.
//
// Given the output file list
//
//	Build/AssetBundles/audio.bundle/CAB-76a378bd.resource  StreamingResourceFile
//	Build/AssetBundles/audio.bundle                        AssetBundle
//
// the mapping resolves "CAB-76a378bd.resource" to "audio.bundle".
package archivemap

import (
	"path"
	"strings"

	"github.com/buildlens/buildlens/internal/report"
)

// Mapping is immutable once built.
type Mapping struct {
	internal map[string]string
}

// Build creates the mapping for a report. Player builds get an empty
// mapping: their packed files are reported under their own names.
func Build(rep *report.Report) *Mapping {
	if rep == nil || rep.IsPlayerBuild() {
		return &Mapping{internal: map[string]string{}}
	}
	return FromFiles(rep.Files)
}

// FromFiles creates the mapping from an output file list. Internal files
// must sit exactly one directory below their archive; deeper layouts do
// not match and stay unmapped.
func FromFiles(files []report.OutputFile) *Mapping {
	m := &Mapping{internal: map[string]string{}}

	archives := make(map[string]string)
	for _, f := range files {
		if !f.IsArchive() {
			continue
		}
		p := normalize(f.Path)
		archives[p] = path.Base(p)
	}
	if len(archives) == 0 {
		return m
	}

	for _, f := range files {
		p := normalize(f.Path)
		dir := path.Dir(p)
		if dir == "." || dir == "/" {
			continue
		}
		if archive, ok := archives[dir]; ok {
			m.internal[path.Base(p)] = archive
		}
	}
	return m
}

// ArchiveFor returns the archive file name for an internal file name.
func (m *Mapping) ArchiveFor(internalName string) (string, bool) {
	if m == nil {
		return "", false
	}
	archive, ok := m.internal[internalName]
	return archive, ok
}

// Len returns the number of mapped internal names.
func (m *Mapping) Len() int {
	if m == nil {
		return 0
	}
	return len(m.internal)
}

func normalize(p string) string {
	return strings.TrimSuffix(strings.ReplaceAll(p, `\`, "/"), "/")
}
