package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/garnizeh/hrbot/pkg/models"
)

func (r *Repo) CreateTemplate(ctx context.Context, name, version, templateText string, schemaVersion *string) (int64, error) {
	ts := now()
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO prompt_templates (name, version, template_text, schema_version, created, updated) VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (name, version) DO UPDATE SET template_text = EXCLUDED.template_text, schema_version = EXCLUDED.schema_version, updated = EXCLUDED.updated
		RETURNING id`, name, version, templateText, schemaVersion, ts).Scan(&id)
	return id, err
}

func (r *Repo) GetTemplate(ctx context.Context, name, version string) (*models.Template, error) {
	var t models.Template
	err := r.pool.QueryRow(ctx, `SELECT id, name, version, template_text, schema_version, created, updated FROM prompt_templates WHERE name = $1 AND version = $2`, name, version).
		Scan(&t.ID, &t.Name, &t.Version, &t.TemplateTxt, &t.SchemaVer, &t.Created, &t.Updated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (r *Repo) CreateSchema(ctx context.Context, version, description, schemaJSON string) (int64, error) {
	ts := now()
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO prompt_schemas (version, description, schema_json, created, updated) VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (version) DO UPDATE SET description = EXCLUDED.description, schema_json = EXCLUDED.schema_json, updated = EXCLUDED.updated
		RETURNING id`, version, description, schemaJSON, ts).Scan(&id)
	return id, err
}

func (r *Repo) ListSchemas(ctx context.Context) ([]models.Schema, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, version, description, schema_json, created, updated FROM prompt_schemas ORDER BY version`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Schema, error) {
		var s models.Schema
		err := row.Scan(&s.ID, &s.Version, &s.Description, &s.SchemaJSON, &s.Created, &s.Updated)
		return s, err
	})
}
