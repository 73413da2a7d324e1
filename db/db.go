// Package db embeds the SQL migrations and seed files.
package db

import "embed"

// Migrations holds one directory per dialect: migrations/sqlite and
// migrations/postgres.
//
//go:embed migrations
var Migrations embed.FS

//go:embed seed/*.*
var SeedFiles embed.FS

const (
	SQLiteDir   = "migrations/sqlite"
	PostgresDir = "migrations/postgres"
)
