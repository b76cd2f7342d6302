package content

import (
	"context"
	"database/sql"
	"math"
	"path/filepath"
	"testing"

	"github.com/buildlens/buildlens/internal/archivemap"
	"github.com/buildlens/buildlens/internal/report"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func TestExportSQLite(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "content.db")

	rep := bundleReport()
	rep.Summary.GUID = "5f1a2b3c4d5e6f708192a3b4c5d6e7f8"
	a := Analyze(rep, archivemap.Build(rep), 0)

	id, err := ExportSQLite(ctx, path, rep.Summary, a)
	require.NoError(t, err)
	require.Positive(t, id)

	conn, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	var rows int
	var total int64
	require.NoError(t, conn.QueryRowContext(ctx,
		`SELECT COUNT(*), SUM(size) FROM content_entries WHERE build_id = ?`, id).Scan(&rows, &total))
	require.Equal(t, len(a.Entries), rows)
	require.Equal(t, int64(a.TotalSize()), total)

	var guid string
	require.NoError(t, conn.QueryRowContext(ctx, `SELECT guid FROM builds WHERE id = ?`, id).Scan(&guid))
	require.Equal(t, rep.Summary.GUID, guid)

	var outputTotal int64
	require.NoError(t, conn.QueryRowContext(ctx,
		`SELECT size FROM size_totals WHERE build_id = ? AND kind = 'output_file' AND name = 'levels'`, id).Scan(&outputTotal))
	require.Equal(t, int64(a.OutputFiles[0].Size), outputTotal)

	// A second export lands next to the first.
	second, err := ExportSQLite(ctx, path, rep.Summary, a)
	require.NoError(t, err)
	require.NotEqual(t, id, second)
}

func TestExportSQLiteRejectsOversizedEntries(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "content.db")
	a := &Analysis{Entries: []Entry{{Path: "Assets/huge", Type: "Mesh", Size: math.MaxUint64}}}

	_, err := ExportSQLite(context.Background(), path, report.Summary{}, a)
	require.ErrorIs(t, err, errSizeOverflow)
}

func TestQuerySQLite(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "content.db")
	rep := bundleReport()
	_, err := ExportSQLite(ctx, path, rep.Summary, Analyze(rep, archivemap.Build(rep), 0))
	require.NoError(t, err)

	entries, err := QuerySQLite(ctx, path, `^Assets/Hero\.`, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, "Assets/Hero.png", entries[0].Path)
	require.Equal(t, uint64(4096), entries[0].Size)
	require.Equal(t, "levels", entries[0].OutputFile)
	require.Equal(t, uint64(350), entries[1].Size)

	entries, err = QuerySQLite(ctx, path, `\.prefab$`, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, uint64(350), entries[0].Size)

	_, err = QuerySQLite(ctx, path, `(`, 0)
	require.Error(t, err)
}
