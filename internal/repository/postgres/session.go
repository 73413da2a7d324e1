package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/garnizeh/hrbot/pkg/models"
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (r *Repo) LoadSession(ctx context.Context, userID int64) (*models.Session, error) {
	var (
		s     models.Session
		flags []byte
	)
	err := r.pool.QueryRow(ctx, `SELECT user_id, step, draft_id, lang, flags, updated FROM sessions WHERE user_id = $1`, userID).
		Scan(&s.UserID, &s.Step, &s.DraftID, &s.Lang, &flags, &s.Updated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if len(flags) > 0 && string(flags) != "{}" {
		if err := json.Unmarshal(flags, &s.Flags); err != nil {
			return nil, fmt.Errorf("session %d flags: %w", userID, err)
		}
	}
	return &s, nil
}

func (r *Repo) SaveSession(ctx context.Context, s *models.Session) error {
	if s == nil {
		return fmt.Errorf("session is nil")
	}
	return saveSession(ctx, r.pool, s)
}

func saveSession(ctx context.Context, ex execer, s *models.Session) error {
	flags := "{}"
	if len(s.Flags) > 0 {
		b, err := json.Marshal(s.Flags)
		if err != nil {
			return fmt.Errorf("marshal flags: %w", err)
		}
		flags = string(b)
	}
	_, err := ex.Exec(ctx, `INSERT INTO sessions (user_id, step, draft_id, lang, flags, updated) VALUES ($1, $2, $3, $4, $5::jsonb, $6)
		ON CONFLICT (user_id) DO UPDATE SET step = EXCLUDED.step, draft_id = EXCLUDED.draft_id, lang = EXCLUDED.lang, flags = EXCLUDED.flags, updated = EXCLUDED.updated`,
		s.UserID, s.Step, s.DraftID, s.Lang, flags, now())
	if err != nil {
		return fmt.Errorf("save session %d: %w", s.UserID, err)
	}
	return nil
}
