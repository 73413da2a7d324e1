package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/garnizeh/hrbot/pkg/models"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *SQLiteRepo) LoadSession(ctx context.Context, userID int64) (*models.Session, error) {
	row := r.conn.QueryRow(ctx, `SELECT user_id, step, draft_id, lang, flags, updated FROM sessions WHERE user_id = ?`, userID)
	var (
		s     models.Session
		flags string
	)
	if err := row.Scan(&s.UserID, &s.Step, &s.DraftID, &s.Lang, &flags, &s.Updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if flags != "" && flags != "{}" {
		if err := json.Unmarshal([]byte(flags), &s.Flags); err != nil {
			return nil, fmt.Errorf("session %d flags: %w", userID, err)
		}
	}
	return &s, nil
}

func (r *SQLiteRepo) SaveSession(ctx context.Context, s *models.Session) error {
	if s == nil {
		return fmt.Errorf("session is nil")
	}
	return saveSession(ctx, r.conn.GetConn(), s)
}

func saveSession(ctx context.Context, ex execer, s *models.Session) error {
	flags := []byte("{}")
	if len(s.Flags) > 0 {
		b, err := json.Marshal(s.Flags)
		if err != nil {
			return fmt.Errorf("marshal flags: %w", err)
		}
		flags = b
	}
	_, err := ex.ExecContext(ctx, `INSERT INTO sessions (user_id, step, draft_id, lang, flags, updated) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET step = excluded.step, draft_id = excluded.draft_id, lang = excluded.lang, flags = excluded.flags, updated = excluded.updated`,
		s.UserID, s.Step, s.DraftID, s.Lang, string(flags), now())
	if err != nil {
		return fmt.Errorf("save session %d: %w", s.UserID, err)
	}
	return nil
}
