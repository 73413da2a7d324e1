package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garnizeh/hrbot/pkg/models"
)

// Screening prompt templates and output schemas. Both upsert by version;
// RETURNING gives the row id on the update path too, where LastInsertId
// would not.

func (r *SQLiteRepo) CreateTemplate(ctx context.Context, name, version, templateText string, schemaVersion *string) (int64, error) {
	var schemaVer any
	if schemaVersion != nil {
		schemaVer = *schemaVersion
	}
	ts := now()
	var id int64
	err := r.conn.QueryRow(ctx, `INSERT INTO prompt_templates (name, version, template_text, schema_version, created, updated)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name, version) DO UPDATE SET template_text = excluded.template_text, schema_version = excluded.schema_version, updated = excluded.updated
		RETURNING id`, name, version, templateText, schemaVer, ts, ts).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert template %s@%s: %w", name, version, err)
	}
	return id, nil
}

// GetTemplate returns nil, nil when no template matches.
func (r *SQLiteRepo) GetTemplate(ctx context.Context, name, version string) (*models.Template, error) {
	var t models.Template
	err := r.conn.QueryRow(ctx, `SELECT id, name, version, template_text, schema_version, created, updated
		FROM prompt_templates WHERE name = ? AND version = ?`, name, version).
		Scan(&t.ID, &t.Name, &t.Version, &t.TemplateTxt, &t.SchemaVer, &t.Created, &t.Updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get template %s@%s: %w", name, version, err)
	}
	return &t, nil
}

func (r *SQLiteRepo) CreateSchema(ctx context.Context, version, description, schemaJSON string) (int64, error) {
	ts := now()
	var id int64
	err := r.conn.QueryRow(ctx, `INSERT INTO prompt_schemas (version, description, schema_json, created, updated)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(version) DO UPDATE SET description = excluded.description, schema_json = excluded.schema_json, updated = excluded.updated
		RETURNING id`, version, description, schemaJSON, ts, ts).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert schema %s: %w", version, err)
	}
	return id, nil
}

func (r *SQLiteRepo) ListSchemas(ctx context.Context) ([]models.Schema, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT id, version, description, schema_json, created, updated FROM prompt_schemas ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("list schemas: %w", err)
	}
	defer rows.Close()

	var out []models.Schema
	for rows.Next() {
		var s models.Schema
		if err := rows.Scan(&s.ID, &s.Version, &s.Description, &s.SchemaJSON, &s.Created, &s.Updated); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
