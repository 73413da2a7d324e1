// Package sqlite implements the repository interfaces on top of the
// embedded SQLite database.
package sqlite

import (
	"context"
	"time"

	"log/slog"

	"github.com/garnizeh/hrbot/internal/db"
	"github.com/garnizeh/hrbot/pkg/repository"
)

// SQLiteRepo implements repository interfaces using the internal DB wrapper.
type SQLiteRepo struct {
	conn   *db.DB
	logger *slog.Logger
}

// Ensure SQLiteRepo implements the public interfaces.
var _ repository.Store = (*SQLiteRepo)(nil)

func New(conn *db.DB, logger *slog.Logger) *SQLiteRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteRepo{conn: conn, logger: logger}
}

func (r *SQLiteRepo) Ping(ctx context.Context) error {
	return r.conn.Ping(ctx)
}

func (r *SQLiteRepo) Close() error {
	return r.conn.Close()
}

func now() int64 {
	return time.Now().UTC().UnixMilli()
}
