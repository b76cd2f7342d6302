// Package incremental records the state of an AssetBundle build folder
// and explains what an incremental build changed in it.
package incremental

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charlievieth/fastwalk"
	"github.com/zeebo/xxh3"
	"gopkg.in/yaml.v3"
)

const manifestExt = ".manifest"

// BundleInfo describes one AssetBundle file on disk.
type BundleInfo struct {
	// Hash is the asset file hash the engine wrote to the bundle manifest.
	Hash    string    `json:"hash"`
	CRC     uint32    `json:"crc"`
	ModTime time.Time `json:"modTime"`
	Size    int64     `json:"size"`
	// ContentHash is an xxh3-128 digest of the bundle file. It changes
	// with the compression mode even when the content does not.
	ContentHash string `json:"contentHash"`
}

func (b BundleInfo) String() string {
	return fmt.Sprintf("hash %s content %s crc %08X written %s", b.Hash, b.ContentHash, b.CRC, b.ModTime.Format(time.RFC3339))
}

// Snapshot maps bundle paths, relative to the build folder and slash
// separated, to their state.
type Snapshot struct {
	Root    string                `json:"root"`
	Taken   time.Time             `json:"taken"`
	Bundles map[string]BundleInfo `json:"bundles"`
}

type bundleManifest struct {
	CRC    uint32 `yaml:"CRC"`
	Hashes struct {
		AssetFileHash struct {
			Hash string `yaml:"Hash"`
		} `yaml:"AssetFileHash"`
	} `yaml:"Hashes"`
}

// Take records every bundle under root that has a sibling .manifest file.
// A missing root yields an empty snapshot, as before a first build.
// Bundles are hashed concurrently.
func Take(root string) (*Snapshot, error) {
	snap := &Snapshot{Root: root, Taken: time.Now(), Bundles: make(map[string]BundleInfo)}
	if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
		return snap, nil
	}

	var mu sync.Mutex
	err := fastwalk.Walk(&fastwalk.Config{}, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasSuffix(path, manifestExt) {
			return nil
		}
		if _, err := os.Stat(path + manifestExt); err != nil {
			return nil
		}

		info, err := readBundle(path)
		if err != nil {
			slog.Warn("Skipping bundle", "path", path, "error", err)
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		mu.Lock()
		snap.Bundles[filepath.ToSlash(rel)] = info
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	return snap, nil
}

func readBundle(path string) (BundleInfo, error) {
	data, err := os.ReadFile(path + manifestExt)
	if err != nil {
		return BundleInfo{}, err
	}
	var m bundleManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return BundleInfo{}, fmt.Errorf("parsing manifest: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return BundleInfo{}, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return BundleInfo{}, err
	}
	h := xxh3.New()
	if _, err := io.Copy(h, f); err != nil {
		return BundleInfo{}, fmt.Errorf("hashing bundle: %w", err)
	}
	sum := h.Sum128()

	return BundleInfo{
		Hash:        m.Hashes.AssetFileHash.Hash,
		CRC:         m.CRC,
		ModTime:     stat.ModTime(),
		Size:        stat.Size(),
		ContentHash: fmt.Sprintf("%016x%016x", sum.Hi, sum.Lo),
	}, nil
}

// Save writes the snapshot as JSON.
func (s *Snapshot) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}

// Load reads a snapshot written by Save.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding snapshot %s: %w", path, err)
	}
	if s.Bundles == nil {
		s.Bundles = make(map[string]BundleInfo)
	}
	return &s, nil
}
