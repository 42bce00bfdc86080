// Package migrate applies the embedded schema for profiles, role assignments and access levels.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"

	"github.com/target/cse-console/internal/data/sqlutil"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const createVersionsTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`

// migration is one embedded SQL file.
type migration struct {
	version string
	file    string
}

// Run applies every embedded migration that is not yet recorded in schema_migrations.
// Each file runs in its own transaction together with its version row. It is safe to call
// multiple times.
func Run(ctx context.Context, db *sql.DB) error {
	return run(ctx, db, migrationsFS, slog.Default().With("component", "migrations"))
}

// Pending returns the versions that Run would apply, in order.
func Pending(ctx context.Context, db *sql.DB) ([]string, error) {
	if _, err := db.ExecContext(ctx, createVersionsTable); err != nil {
		return nil, fmt.Errorf("create schema_migrations table: %w", err)
	}
	list, err := load(migrationsFS)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, m := range list {
		applied, err := isApplied(ctx, db, m)
		if err != nil {
			return nil, err
		}
		if !applied {
			out = append(out, m.version)
		}
	}
	return out, nil
}

func run(ctx context.Context, db *sql.DB, fsys fs.ReadFileFS, logger *slog.Logger) error {
	if _, err := db.ExecContext(ctx, createVersionsTable); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}
	list, err := load(fsys)
	if err != nil {
		return err
	}
	for _, m := range list {
		applied, err := isApplied(ctx, db, m)
		if err != nil {
			return err
		}
		if applied {
			continue
		}
		body, err := fsys.ReadFile("migrations/" + m.file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", m.file, err)
		}
		logger.InfoContext(ctx, "applying migration", "version", m.version)
		if err := apply(ctx, db, m, string(body)); err != nil {
			return err
		}
	}
	return nil
}

// load lists the .sql files under migrations/ sorted by name.
func load(fsys fs.ReadFileFS) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, "migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}
	var out []migration
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		out = append(out, migration{version: strings.TrimSuffix(e.Name(), ".sql"), file: e.Name()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].file < out[j].file })
	return out, nil
}

func isApplied(ctx context.Context, db *sql.DB, m migration) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`
	if err := db.QueryRowContext(ctx, query, m.version).Scan(&exists); err != nil {
		return false, fmt.Errorf("check migration %s: %w", m.file, err)
	}
	return exists, nil
}

func apply(ctx context.Context, db *sql.DB, m migration, body string) error {
	err := sqlutil.WithTx(ctx, db, sqlutil.TxConfig{Fn: func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, body); err != nil {
			return fmt.Errorf("exec migration %s: %w", m.file, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, m.version); err != nil {
			return fmt.Errorf("record migration %s: %w", m.file, err)
		}
		return nil
	}})
	if err != nil {
		return fmt.Errorf("apply migration %s: %w", m.version, err)
	}
	return nil
}
