package content

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"regexp"
	"time"

	"github.com/buildlens/buildlens/internal/db"
	"github.com/buildlens/buildlens/internal/report"
)

var errSizeOverflow = errors.New("size exceeds sqlite integer range")

// ExportSQLite writes the analysis into the database at path and returns
// the id of the build row. Large builds are easier to slice with SQL than
// with a flat listing.
func ExportSQLite(ctx context.Context, path string, summary report.Summary, a *Analysis) (int64, error) {
	conn, err := db.Connect(ctx, path)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning export: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	buildID, err := insertBuild(ctx, tx, summary, a)
	if err != nil {
		return 0, err
	}
	if err := insertEntries(ctx, tx, buildID, a.Entries); err != nil {
		return 0, err
	}
	if err := insertTotals(ctx, tx, buildID, "output_file", a.OutputFiles); err != nil {
		return 0, err
	}
	if err := insertTotals(ctx, tx, buildID, "type", a.Types); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing export: %w", err)
	}
	return buildID, nil
}

func insertBuild(ctx context.Context, tx *sql.Tx, summary report.Summary, a *Analysis) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO builds (guid, build_type, platform, truncated, created_at) VALUES (?, ?, ?, ?, ?)`,
		summary.GUID, summary.BuildType, summary.Platform, a.Truncated, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("inserting build: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading build id: %w", err)
	}
	return id, nil
}

func insertEntries(ctx context.Context, tx *sql.Tx, buildID int64, entries []Entry) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO content_entries (
			build_id, source_asset_guid, source_asset_path, output_file,
			internal_archive_path, type, size, object_count, extension
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing entry insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		size, err := sqliteSize(e.Size)
		if err != nil {
			return fmt.Errorf("entry %s: %w", e.Path, err)
		}
		if _, err := stmt.ExecContext(ctx, buildID, e.SourceAssetID, e.Path, e.OutputFile,
			e.InternalArchivePath, e.Type, size, e.ObjectCount, e.Extension); err != nil {
			return fmt.Errorf("inserting entry %s: %w", e.Path, err)
		}
	}
	return nil
}

func insertTotals(ctx context.Context, tx *sql.Tx, buildID int64, kind string, totals []SizeTotal) error {
	for _, t := range totals {
		size, err := sqliteSize(t.Size)
		if err != nil {
			return fmt.Errorf("%s %s: %w", kind, t.Name, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO size_totals (build_id, kind, name, size) VALUES (?, ?, ?, ?)`,
			buildID, kind, t.Name, size); err != nil {
			return fmt.Errorf("inserting %s total: %w", kind, err)
		}
	}
	return nil
}

func sqliteSize(size uint64) (int64, error) {
	if size > math.MaxInt64 {
		return 0, errSizeOverflow
	}
	return int64(size), nil
}

// QuerySQLite returns the entries of the most recent build exported to
// the database at path whose asset path matches pattern, largest first.
// A non-positive limit returns every match.
func QuerySQLite(ctx context.Context, path, pattern string, limit int) ([]Entry, error) {
	if _, err := regexp.Compile(pattern); err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}
	if limit <= 0 {
		limit = -1
	}

	conn, err := db.Connect(ctx, path)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, `
		SELECT source_asset_guid, source_asset_path, output_file,
			internal_archive_path, type, size, object_count, extension
		FROM content_entries
		WHERE build_id = (SELECT MAX(id) FROM builds)
			AND source_asset_path REGEXP ?
		ORDER BY size DESC, id
		LIMIT ?`, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e    Entry
			size int64
		)
		if err := rows.Scan(&e.SourceAssetID, &e.Path, &e.OutputFile,
			&e.InternalArchivePath, &e.Type, &size, &e.ObjectCount, &e.Extension); err != nil {
			return nil, fmt.Errorf("reading entry: %w", err)
		}
		e.Size = uint64(size)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
