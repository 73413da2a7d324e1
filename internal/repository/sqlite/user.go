package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garnizeh/hrbot/pkg/models"
)

// UpsertUser records the latest profile of a chat user and reports whether
// the row was new. The stored language is never touched here.
func (r *SQLiteRepo) UpsertUser(ctx context.Context, u *models.User) (bool, error) {
	if u == nil {
		return false, fmt.Errorf("user is nil")
	}
	var created bool
	err := r.conn.WithTx(ctx, func(tx *sql.Tx) error {
		ts := now()
		res, err := tx.ExecContext(ctx, `INSERT INTO users (id, first_name, last_name, username, language_code, created, updated) VALUES (?, ?, ?, ?, ?, ?, ?) ON CONFLICT(id) DO NOTHING`,
			u.ID, u.FirstName, u.LastName, u.Username, u.LanguageCode, ts, ts)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 1 {
			created = true
			return nil
		}
		_, err = tx.ExecContext(ctx, `UPDATE users SET first_name = ?, last_name = ?, username = ?, updated = ? WHERE id = ?`,
			u.FirstName, u.LastName, u.Username, ts, u.ID)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("upsert user %d: %w", u.ID, err)
	}
	return created, nil
}

func (r *SQLiteRepo) GetUser(ctx context.Context, id int64) (*models.User, error) {
	row := r.conn.QueryRow(ctx, `SELECT id, first_name, last_name, username, language_code, created, updated FROM users WHERE id = ?`, id)
	var u models.User
	if err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Username, &u.LanguageCode, &u.Created, &u.Updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *SQLiteRepo) SetLanguage(ctx context.Context, id int64, lang string) error {
	res, err := r.conn.Exec(ctx, `UPDATE users SET language_code = ?, updated = ? WHERE id = ?`, lang, now(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %d not found", id)
	}
	return nil
}
