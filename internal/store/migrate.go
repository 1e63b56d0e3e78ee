package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
)

var migrationFile = regexp.MustCompile(`^(\d+)_[A-Za-z0-9_]+\.(up|down)\.sql$`)

type migration struct {
	version string
	name    string
	path    string
}

// listMigrations returns the migrations in dir for one direction, oldest first.
func listMigrations(dir, direction string) ([]migration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}
	var out []migration
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		match := migrationFile.FindStringSubmatch(entry.Name())
		if match == nil || match[2] != direction {
			continue
		}
		out = append(out, migration{
			version: match[1],
			name:    entry.Name(),
			path:    filepath.Join(dir, entry.Name()),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

// ApplyMigrations runs every pending up migration in its own transaction.
func ApplyMigrations(ctx context.Context, db *sql.DB, migrationsDir string) error {
	if err := ensureMigrationsTable(ctx, db); err != nil {
		return err
	}
	ups, err := listMigrations(migrationsDir, "up")
	if err != nil {
		return err
	}
	for _, m := range ups {
		migrated, err := isMigrated(ctx, db, m.name)
		if err != nil {
			return err
		}
		if migrated {
			continue
		}
		if err := runInTx(ctx, db, m, `INSERT INTO schema_migrations(version) VALUES($1)`); err != nil {
			return err
		}
		slog.InfoContext(ctx, "migration applied", "version", m.name)
	}
	return nil
}

// RollbackMigrations runs every down migration whose up counterpart is recorded, newest first.
func RollbackMigrations(ctx context.Context, db *sql.DB, migrationsDir string) error {
	if err := ensureMigrationsTable(ctx, db); err != nil {
		return err
	}
	downs, err := listMigrations(migrationsDir, "down")
	if err != nil {
		return err
	}
	ups, err := listMigrations(migrationsDir, "up")
	if err != nil {
		return err
	}
	upByVersion := make(map[string]string, len(ups))
	for _, m := range ups {
		upByVersion[m.version] = m.name
	}
	for i := len(downs) - 1; i >= 0; i-- {
		m := downs[i]
		upName, ok := upByVersion[m.version]
		if !ok {
			continue
		}
		migrated, err := isMigrated(ctx, db, upName)
		if err != nil {
			return err
		}
		if !migrated {
			continue
		}
		record := migration{version: m.version, name: upName, path: m.path}
		if err := runInTx(ctx, db, record, `DELETE FROM schema_migrations WHERE version=$1`); err != nil {
			return err
		}
		slog.InfoContext(ctx, "migration rolled back", "version", upName)
	}
	return nil
}

func runInTx(ctx context.Context, db *sql.DB, m migration, bookkeeping string) error {
	contents, err := os.ReadFile(m.path)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", m.name, err)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration tx %s: %w", m.name, err)
	}
	if _, err := tx.ExecContext(ctx, string(contents)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("execute migration %s: %w", m.name, err)
	}
	if _, err := tx.ExecContext(ctx, bookkeeping, m.name); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record migration %s: %w", m.name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", m.name, err)
	}
	return nil
}

func ensureMigrationsTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	return nil
}

func isMigrated(ctx context.Context, db *sql.DB, version string) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version=$1)`, version).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check migration %s: %w", version, err)
	}
	return exists, nil
}
