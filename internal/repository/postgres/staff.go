package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/garnizeh/hrbot/pkg/models"
)

func (r *Repo) CreateStaff(ctx context.Context, s *models.Staff) (int64, error) {
	if s == nil {
		return 0, fmt.Errorf("staff is nil")
	}
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO staff (name, email, updated, password_hash) VALUES ($1, $2, $3, $4) RETURNING id`,
		s.Name, s.Email, now(), s.PasswordHash).Scan(&id)
	return id, err
}

func (r *Repo) GetStaffByID(ctx context.Context, id int64) (*models.Staff, error) {
	return r.getStaff(ctx, `SELECT id, name, email, updated, password_hash FROM staff WHERE id = $1`, id)
}

func (r *Repo) GetStaffByEmail(ctx context.Context, email string) (*models.Staff, error) {
	return r.getStaff(ctx, `SELECT id, name, email, updated, password_hash FROM staff WHERE email = $1`, email)
}

func (r *Repo) getStaff(ctx context.Context, q string, arg any) (*models.Staff, error) {
	var (
		s  models.Staff
		pw *string
	)
	if err := r.pool.QueryRow(ctx, q, arg).Scan(&s.ID, &s.Name, &s.Email, &s.Updated, &pw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if pw != nil {
		s.PasswordHash = *pw
	}
	return &s, nil
}
