package db_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	dbpkg "github.com/garnizeh/hrbot/internal/db"
)

func memDSN(t *testing.T) string {
	return "file:" + t.Name() + "?mode=memory&cache=shared"
}

func TestNew_Close_GetConn(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	d, err := dbpkg.New(ctx, memDSN(t), nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if d.GetConn() == nil {
		t.Fatalf("expected non-nil sql.DB from GetConn")
	}
	if err := d.Ping(ctx); err != nil {
		t.Fatalf("Ping returned error: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
}

func TestExec_QueryRow_QueryRows(t *testing.T) {
	ctx := context.Background()
	d, err := dbpkg.New(ctx, memDSN(t), nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer d.Close()

	if _, err := d.Exec(ctx, `CREATE TABLE items (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	for _, n := range []string{"foo", "bar"} {
		if _, err := d.Exec(ctx, `INSERT INTO items (name) VALUES (?)`, n); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	var name string
	if err := d.QueryRow(ctx, `SELECT name FROM items WHERE id = 1`).Scan(&name); err != nil {
		t.Fatalf("QueryRow scan: %v", err)
	}
	if name != "foo" {
		t.Fatalf("expected foo got %q", name)
	}

	rows, err := d.QueryRows(ctx, `SELECT name FROM items ORDER BY id`)
	if err != nil {
		t.Fatalf("QueryRows: %v", err)
	}
	defer rows.Close()
	var got []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			t.Fatalf("scan: %v", err)
		}
		got = append(got, n)
	}
	if len(got) != 2 || got[1] != "bar" {
		t.Fatalf("unexpected rows %v", got)
	}
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	d, err := dbpkg.New(ctx, memDSN(t), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer d.Close()
	if _, err := d.Exec(ctx, `CREATE TABLE items (name TEXT)`); err != nil {
		t.Fatalf("create: %v", err)
	}

	boom := errors.New("boom")
	err = d.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO items VALUES ('x')`); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	var n int
	if err := d.QueryRow(ctx, `SELECT COUNT(*) FROM items`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("rollback left %d rows", n)
	}

	if err := d.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO items VALUES ('y')`)
		return err
	}); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := d.QueryRow(ctx, `SELECT COUNT(*) FROM items`).Scan(&n); err != nil || n != 1 {
		t.Fatalf("expected 1 row after commit, got %d (%v)", n, err)
	}
}

func TestBackup(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	d, err := dbpkg.New(ctx, filepath.Join(dir, "src.db"), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer d.Close()
	if _, err := d.Exec(ctx, `CREATE TABLE items (name TEXT); INSERT INTO items VALUES ('kept');`); err != nil {
		t.Fatalf("seed: %v", err)
	}

	dst := filepath.Join(dir, "backup.db")
	if err := d.Backup(ctx, dst); err != nil {
		t.Fatalf("Backup: %v", err)
	}

	b, err := dbpkg.New(ctx, dst, nil)
	if err != nil {
		t.Fatalf("open backup: %v", err)
	}
	defer b.Close()
	var name string
	if err := b.QueryRow(ctx, `SELECT name FROM items`).Scan(&name); err != nil || name != "kept" {
		t.Fatalf("backup content = %q, %v", name, err)
	}
}
