package main

import (
	"context"
	"fmt"
	"log/slog"

	dbfs "github.com/garnizeh/hrbot/db"
	"github.com/garnizeh/hrbot/internal/config"
	"github.com/garnizeh/hrbot/internal/db"
	"github.com/garnizeh/hrbot/internal/repository/postgres"
	"github.com/garnizeh/hrbot/internal/repository/sqlite"
	"github.com/garnizeh/hrbot/pkg/repository"
)

// backend is an opened store plus its dialect-specific migration.
type backend struct {
	repository.Store
	migrate func(ctx context.Context) error
	// sqlite is set for the embedded driver only.
	sqlite *db.DB
}

func openBackend(ctx context.Context, dc config.DatabaseConfig, logger *slog.Logger) (*backend, error) {
	switch dc.Driver {
	case "postgres":
		repo, err := postgres.Connect(ctx, dc.DSN, dc.MaxConns, logger)
		if err != nil {
			return nil, err
		}
		return &backend{
			Store: repo,
			migrate: func(ctx context.Context) error {
				return repo.Migrate(ctx, dbfs.Migrations, dbfs.PostgresDir, dbfs.SeedFiles)
			},
		}, nil
	case "sqlite", "":
		conn, err := db.New(ctx, dc.Path, logger)
		if err != nil {
			return nil, err
		}
		return &backend{
			Store: sqlite.New(conn, logger),
			migrate: func(ctx context.Context) error {
				return db.Migrate(ctx, conn, dbfs.Migrations, dbfs.SQLiteDir, dbfs.SeedFiles)
			},
			sqlite: conn,
		}, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", dc.Driver)
	}
}
