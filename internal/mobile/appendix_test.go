package mobile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

const testGUID = "8c3f0a5e2b9d4e71a6f01234abcd5678"

func TestBuildAppendix(t *testing.T) {
	t.Parallel()

	path := writePackage(t, "game.apk",
		text("AndroidManifest.xml", "manifest"),
		text("assets/empty.txt", ""),
		text("lib/arm64-v8a/libunity.so", strings.Repeat("so", 500)),
	)
	runner := &fakeRunner{handler: func(string, []string) (string, error) { return "4242", nil }}
	analyzer := NewAnalyzer(&Android{SDKRoot: fakeSDK(t), Runner: runner})

	app, err := BuildAppendix(context.Background(), path, analyzer)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, uint64(info.Size()), app.BuildSize)
	require.Len(t, app.Files, 2)
	require.Equal(t, "AndroidManifest.xml", app.Files[0].Path)
	require.Equal(t, uint64(1000), app.Files[1].UncompressedSize)
	require.Equal(t, []ArchInfo{{Name: "arm64-v8a", DownloadSize: 4242}}, app.Architectures)
}

func TestBuildAppendixArchitectureFailure(t *testing.T) {
	t.Parallel()

	path := writePackage(t, "game.apk", text("AndroidManifest.xml", "m"), text("lib/arm64-v8a/libunity.so", "so"))
	runner := &fakeRunner{handler: func(name string, _ []string) (string, error) {
		return "", &ToolError{Tool: name, ExitCode: 2}
	}}

	app, err := BuildAppendix(context.Background(), path, NewAnalyzer(&Android{SDKRoot: fakeSDK(t), Runner: runner}))
	require.NoError(t, err)
	require.Len(t, app.Files, 2)
	require.Nil(t, app.Architectures)
}

func TestBuildAppendixRejectsUnknownPackages(t *testing.T) {
	t.Parallel()

	path := writePackage(t, "assets.zip", text("a.txt", "a"))
	_, err := BuildAppendix(context.Background(), path, nil)
	require.ErrorIs(t, err, ErrValidation)

	_, err = BuildAppendix(context.Background(), filepath.Join(t.TempDir(), "missing.apk"), nil)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func sampleAppendix() *Appendix {
	return &Appendix{
		BuildSize: 1 << 40,
		Files: []File{
			{Path: "Payload/Game.app/Game", CompressedSize: 10, UncompressedSize: 30},
			{Path: "Payload/Game.app/Data/data.unity3d", CompressedSize: 1 << 33, UncompressedSize: 1 << 34},
		},
		Architectures: []ArchInfo{
			{Name: "arm64", DownloadSize: 123, Segments: &Segments{Text: 1, Data: 2, LLVM: 3, Linkedit: 4}},
			{Name: "armv7", DownloadSize: -1},
		},
	}
}

func newTestStore(t *testing.T, dir string) *Store {
	t.Helper()
	s, err := NewStore(dir, 2)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreRoundTrip(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "appendices")
	store := newTestStore(t, dir)
	want := sampleAppendix()
	require.NoError(t, store.Save(testGUID, want))

	// A fresh store reads from disk.
	fresh := newTestStore(t, dir)
	got, err := fresh.Load(testGUID)
	require.NoError(t, err)
	require.Equal(t, want, got)
	require.Equal(t, StoreStats{Misses: 1}, fresh.Stats())

	// The dashed form names the same build.
	again, err := fresh.Load("8c3f0a5e-2b9d-4e71-a6f0-1234abcd5678")
	require.NoError(t, err)
	require.Equal(t, got, again)
	require.NotSame(t, got, again)
	require.Equal(t, StoreStats{Hits: 1, Misses: 1}, fresh.Stats())

	keys, err := fresh.Keys()
	require.NoError(t, err)
	require.Equal(t, []string{testGUID}, keys)
}

func TestStoreOverwrite(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := newTestStore(t, dir)
	require.NoError(t, store.Save(testGUID, sampleAppendix()))
	require.NoError(t, store.Save(testGUID, &Appendix{BuildSize: 7}))

	got, err := newTestStore(t, dir).Load(testGUID)
	require.NoError(t, err)
	require.Equal(t, uint64(7), got.BuildSize)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestStoreErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := newTestStore(t, dir)

	_, err := store.Load(testGUID)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = store.Load("not-a-guid")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotFound)
	require.Error(t, store.Save("", &Appendix{}))

	require.NoError(t, os.WriteFile(filepath.Join(dir, testGUID+appendixExt), []byte("garbage"), 0o644))
	_, err = store.Load(testGUID)
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrNotFound))
}

func TestStoreConcurrentLoads(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, newTestStore(t, dir).Save(testGUID, sampleAppendix()))
	store := newTestStore(t, dir)

	var wg sync.WaitGroup
	results := make([]*Appendix, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app, err := store.Load(testGUID)
			if err == nil {
				results[i] = app
			}
		}()
	}
	wg.Wait()
	for _, app := range results {
		require.Equal(t, sampleAppendix(), app)
	}
}

func TestStoreReturnsCopies(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, t.TempDir())
	saved := sampleAppendix()
	require.NoError(t, store.Save(testGUID, saved))
	saved.BuildSize = 1

	got, err := store.Load(testGUID)
	require.NoError(t, err)
	require.Equal(t, sampleAppendix(), got)

	got.Files[0].Path = "changed"
	got.Architectures = nil
	again, err := store.Load(testGUID)
	require.NoError(t, err)
	require.Equal(t, sampleAppendix(), again)
}
