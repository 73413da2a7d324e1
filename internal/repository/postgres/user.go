package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/garnizeh/hrbot/pkg/models"
)

// UpsertUser refreshes the profile and reports whether the row is new.
// xmax is zero only for a freshly inserted tuple.
func (r *Repo) UpsertUser(ctx context.Context, u *models.User) (bool, error) {
	if u == nil {
		return false, fmt.Errorf("user is nil")
	}
	ts := now()
	var created bool
	err := r.pool.QueryRow(ctx, `INSERT INTO users (id, first_name, last_name, username, language_code, created, updated) VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (id) DO UPDATE SET first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name, username = EXCLUDED.username, updated = EXCLUDED.updated
		RETURNING (xmax = 0)`, u.ID, u.FirstName, u.LastName, u.Username, u.LanguageCode, ts).Scan(&created)
	if err != nil {
		return false, fmt.Errorf("upsert user %d: %w", u.ID, err)
	}
	return created, nil
}

func (r *Repo) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	err := r.pool.QueryRow(ctx, `SELECT id, first_name, last_name, username, language_code, created, updated FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.FirstName, &u.LastName, &u.Username, &u.LanguageCode, &u.Created, &u.Updated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *Repo) SetLanguage(ctx context.Context, id int64, lang string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET language_code = $1, updated = $2 WHERE id = $3`, lang, now(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %d not found", id)
	}
	return nil
}
