package db

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

// Seed file names inside the seed FS.
const (
	SeedSchema   = "seed/screening_schema_v1.json"
	SeedTemplate = "seed/template_screening_v1.txt"
)

// Migrate applies the .sql files in dir that are not yet recorded in
// schema_migrations, in lexical order, then loads the screening seed files
// when present. Seeds never overwrite rows edited after install.
func Migrate(ctx context.Context, d *DB, migrationFS fs.FS, dir string, seedFS fs.FS) error {
	if _, err := d.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY, applied INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	files, err := MigrationFiles(migrationFS, dir)
	if err != nil {
		return err
	}

	for _, fname := range files {
		version := strings.TrimSuffix(fname, path.Ext(fname))

		var count int
		if err := d.QueryRow(ctx, `SELECT COUNT(1) FROM schema_migrations WHERE version = ?`, version).Scan(&count); err != nil {
			return fmt.Errorf("scan migration applied count: %w", err)
		}
		if count > 0 {
			continue
		}

		b, err := fs.ReadFile(migrationFS, path.Join(dir, fname))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", fname, err)
		}
		if _, err := d.Exec(ctx, string(b)); err != nil {
			return fmt.Errorf("exec migration %s: %w", fname, err)
		}
		if _, err := d.Exec(ctx, `INSERT INTO schema_migrations (version, applied) VALUES (?, ?)`, version, time.Now().UTC().UnixMilli()); err != nil {
			return fmt.Errorf("record migration %s: %w", fname, err)
		}
		d.logger.Info("migration applied", "version", version)
	}

	if seedFS == nil {
		return nil
	}
	ts := time.Now().UTC().UnixMilli()
	if b, err := fs.ReadFile(seedFS, SeedSchema); err == nil {
		if _, err := d.Exec(ctx, `INSERT INTO prompt_schemas (version, description, schema_json, created, updated) VALUES ('v1', 'screening result v1', ?, ?, ?) ON CONFLICT(version) DO NOTHING`, string(b), ts, ts); err != nil {
			return fmt.Errorf("seed schema exec: %w", err)
		}
	}
	if b, err := fs.ReadFile(seedFS, SeedTemplate); err == nil {
		if _, err := d.Exec(ctx, `INSERT INTO prompt_templates (name, version, template_text, schema_version, created, updated) VALUES ('screening', 'v1', ?, 'v1', ?, ?) ON CONFLICT(name, version) DO NOTHING`, string(b), ts, ts); err != nil {
			return fmt.Errorf("seed template exec: %w", err)
		}
	}
	return nil
}

// MigrationFiles lists the .sql files in dir, sorted.
func MigrationFiles(fsys fs.FS, dir string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(e.Name()), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}
