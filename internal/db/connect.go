// Package db opens the SQLite databases content exports are written to.
package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// FS holds the goose migrations.
//
//go:embed migrations/*.sql
var FS embed.FS

var gooseOnce sync.Once

func initGoose() error {
	var err error
	gooseOnce.Do(func() {
		goose.SetBaseFS(FS)
		goose.SetLogger(goose.NopLogger())
		err = goose.SetDialect("sqlite3")
	})
	return err
}

// Connect opens (or creates) the database at path and applies all
// migrations.
func Connect(ctx context.Context, path string) (*sql.DB, error) {
	if err := initGoose(); err != nil {
		return nil, fmt.Errorf("configuring migrations: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(ON)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := goose.UpContext(ctx, conn, "migrations"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("applying migrations: %w", err)
	}
	return conn, nil
}
