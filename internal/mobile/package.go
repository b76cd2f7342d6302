// Package mobile estimates per-architecture download sizes of finished
// Android (APK, AAB) and iOS (IPA) packages and keeps the results as
// appendices to the build report.
package mobile

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/buildlens/buildlens/internal/zipdir"
	kzip "github.com/klauspost/compress/zip"
)

// Marker entries identifying a package type.
const (
	androidManifestEntry = "AndroidManifest.xml"
	bundleConfigEntry    = "BundleConfig.pb"
	infoPlistName        = "Info.plist"
)

// Package is an opened mobile package: its size on disk and its zip
// directory. The file itself is not held open.
type Package struct {
	Path string
	Size int64
	Dir  *zipdir.Directory
}

// OpenPackage reads the zip directory of the package at path.
func OpenPackage(path string) (*Package, error) {
	dir, err := zipdir.Open(path)
	if err != nil {
		return nil, err
	}
	return &Package{Path: path, Size: dir.Size, Dir: dir}, nil
}

// HasMarker reports whether the package carries any entry that marks it
// as an Android or Apple package.
func (p *Package) HasMarker() bool {
	for _, e := range p.Dir.Entries {
		if e.Name == androidManifestEntry || e.Name == bundleConfigEntry || e.BaseName() == infoPlistName {
			return true
		}
	}
	return false
}

// readEntry returns the uncompressed content of the first entry
// matching fn.
func (p *Package) readEntry(match func(name string) bool) ([]byte, error) {
	zr, err := kzip.OpenReader(p.Path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", p.Path, err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if !match(f.Name) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("opening entry %s: %w", f.Name, err)
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, os.ErrNotExist
}

// extractEntry writes the content of entry name to dst.
func (p *Package) extractEntry(name, dst string) error {
	zr, err := kzip.OpenReader(p.Path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", p.Path, err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("opening entry %s: %w", name, err)
		}
		defer rc.Close()

		out, err := os.Create(dst)
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, rc); err != nil {
			out.Close()
			return fmt.Errorf("extracting %s: %w", name, err)
		}
		return out.Close()
	}
	return fmt.Errorf("entry %s: %w", name, os.ErrNotExist)
}

// withTempDir creates a scratch directory, calls fn with its path and
// removes it with everything inside on return, even when fn fails.
func withTempDir(pattern string, fn func(dir string) error) error {
	dir, err := os.MkdirTemp("", pattern)
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)
	return fn(filepath.Clean(dir))
}
