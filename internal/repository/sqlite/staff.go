package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garnizeh/hrbot/pkg/models"
)

func (r *SQLiteRepo) CreateStaff(ctx context.Context, s *models.Staff) (int64, error) {
	if s == nil {
		return 0, fmt.Errorf("staff is nil")
	}

	res, err := r.conn.Exec(ctx, `INSERT INTO staff (name, email, updated, password_hash) VALUES (?, ?, ?, ?)`, s.Name, s.Email, now(), s.PasswordHash)
	if err != nil {
		return 0, err
	}

	return res.LastInsertId()
}

func (r *SQLiteRepo) GetStaffByID(ctx context.Context, id int64) (*models.Staff, error) {
	return r.getStaff(ctx, `SELECT id, name, email, updated, password_hash FROM staff WHERE id = ?`, id)
}

func (r *SQLiteRepo) GetStaffByEmail(ctx context.Context, email string) (*models.Staff, error) {
	return r.getStaff(ctx, `SELECT id, name, email, updated, password_hash FROM staff WHERE email = ?`, email)
}

func (r *SQLiteRepo) getStaff(ctx context.Context, q string, arg any) (*models.Staff, error) {
	row := r.conn.QueryRow(ctx, q, arg)
	var s models.Staff
	var pw sql.NullString
	if err := row.Scan(&s.ID, &s.Name, &s.Email, &s.Updated, &pw); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}

		return nil, err
	}

	if pw.Valid {
		s.PasswordHash = pw.String
	}

	return &s, nil
}
