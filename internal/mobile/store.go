package mobile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/singleflight"
)

const (
	appendixExt            = ".appendix.zst"
	defaultStoreCacheItems = 64
)

// StoreStats tracks cache counters.
type StoreStats struct {
	Hits   int64
	Misses int64
}

// Store persists appendices in a flat directory, one zstd-compressed JSON
// file per build GUID. Entries are never evicted from disk. Concurrent
// saves of the same GUID are last-writer-wins.
type Store struct {
	dir     string
	cache   *lru.Cache[string, *Appendix]
	flight  singleflight.Group
	encoder *zstd.Encoder
	decoder *zstd.Decoder

	hits   atomic.Int64
	misses atomic.Int64
}

// NewStore opens (creating if needed) the store directory. cacheItems
// bounds the in-memory cache; non-positive selects a default.
func NewStore(dir string, cacheItems int) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating appendix directory: %w", err)
	}
	if cacheItems <= 0 {
		cacheItems = defaultStoreCacheItems
	}
	cache, err := lru.New[string, *Appendix](cacheItems)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, err
	}
	return &Store{dir: dir, cache: cache, encoder: enc, decoder: dec}, nil
}

// Close releases the codecs.
func (s *Store) Close() error {
	s.decoder.Close()
	return s.encoder.Close()
}

// Dir returns the store directory.
func (s *Store) Dir() string {
	return s.dir
}

// Stats returns cache counters.
func (s *Store) Stats() StoreStats {
	return StoreStats{Hits: s.hits.Load(), Misses: s.misses.Load()}
}

// CanonicalKey normalizes a build GUID to 32 lowercase hex digits, the
// form the engine writes into build reports.
func CanonicalKey(guid string) (string, error) {
	id, err := uuid.Parse(strings.TrimSpace(guid))
	if err != nil {
		return "", fmt.Errorf("invalid build guid %q: %w", guid, err)
	}
	return strings.ReplaceAll(id.String(), "-", ""), nil
}

// Save writes the appendix for guid, replacing any previous one.
func (s *Store) Save(guid string, app *Appendix) error {
	key, err := CanonicalKey(guid)
	if err != nil {
		return err
	}
	data, err := json.Marshal(app)
	if err != nil {
		return fmt.Errorf("encoding appendix: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("saving appendix: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(s.encoder.EncodeAll(data, nil)); err != nil {
		tmp.Close()
		return fmt.Errorf("saving appendix: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("saving appendix: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		return fmt.Errorf("saving appendix: %w", err)
	}

	s.cache.Add(key, app.Clone())
	return nil
}

// Load returns the appendix for guid, or ErrNotFound. Every call returns
// its own copy.
func (s *Store) Load(guid string) (*Appendix, error) {
	key, err := CanonicalKey(guid)
	if err != nil {
		return nil, err
	}
	if app, ok := s.cache.Get(key); ok {
		s.hits.Add(1)
		return app.Clone(), nil
	}
	s.misses.Add(1)

	v, err, _ := s.flight.Do(key, func() (any, error) {
		app, err := s.read(key)
		if err != nil {
			return nil, err
		}
		s.cache.Add(key, app)
		return app, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Appendix).Clone(), nil
}

// Keys lists the GUIDs with a stored appendix.
func (s *Store) Keys() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, e := range entries {
		if key, ok := strings.CutSuffix(e.Name(), appendixExt); ok && !e.IsDir() {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (s *Store) read(key string) (*Appendix, error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("reading appendix: %w", err)
	}
	raw, err := s.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing appendix %s: %w", key, err)
	}
	var app Appendix
	if err := json.Unmarshal(raw, &app); err != nil {
		return nil, fmt.Errorf("decoding appendix %s: %w", key, err)
	}
	return &app, nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, key+appendixExt)
}
