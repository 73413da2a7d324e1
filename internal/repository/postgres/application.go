package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/garnizeh/hrbot/pkg/models"
	"github.com/garnizeh/hrbot/pkg/repository"
)

const applicationColumns = `id, user_id, status, first_name, last_name, birth_date, gender, address, phone, email,
	is_student, education_place, education_level, russian_level, russian_voice_path, english_level, english_voice_path,
	has_experience, experience_years, last_workplace, last_position, photo_path, resume_path, how_found,
	additional_notes, hr_notes, created, updated, submitted`

func scanApplication(row pgx.Row) (*models.Application, error) {
	var (
		a                            models.Application
		status                       string
		gender, eduLevel, ruLv, enLv *string
	)
	err := row.Scan(&a.ID, &a.UserID, &status, &a.FirstName, &a.LastName, &a.BirthDate, &gender, &a.Address, &a.Phone, &a.Email,
		&a.IsStudent, &a.EducationPlace, &eduLevel, &ruLv, &a.RussianVoicePath, &enLv, &a.EnglishVoicePath,
		&a.HasExperience, &a.ExperienceYears, &a.LastWorkplace, &a.LastPosition, &a.PhotoPath, &a.ResumePath, &a.HowFound,
		&a.AdditionalNotes, &a.HRNotes, &a.Created, &a.Updated, &a.Submitted)
	if err != nil {
		return nil, err
	}
	a.Status = models.ApplicationStatus(status)
	if gender != nil {
		g := models.Gender(*gender)
		a.Gender = &g
	}
	if eduLevel != nil {
		l := models.Level(*eduLevel)
		a.EducationLevel = &l
	}
	if ruLv != nil {
		p := models.Proficiency(*ruLv)
		a.RussianLevel = &p
	}
	if enLv != nil {
		p := models.Proficiency(*enLv)
		a.EnglishLevel = &p
	}
	return &a, nil
}

func updateSQL(id int64, fields models.FieldSet) (string, []any) {
	names := make([]string, 0, len(fields))
	for f := range fields {
		names = append(names, string(f))
	}
	sort.Strings(names)

	sets := make([]string, 0, len(names)+1)
	args := make([]any, 0, len(names)+2)
	for _, n := range names {
		args = append(args, models.SQLValue(fields[models.Field(n)], false))
		sets = append(sets, n+" = $"+strconv.Itoa(len(args)))
	}
	args = append(args, now())
	sets = append(sets, "updated = $"+strconv.Itoa(len(args)))
	args = append(args, id)
	return `UPDATE applications SET ` + strings.Join(sets, ", ") + ` WHERE id = $` + strconv.Itoa(len(args)) + ` AND status = 'draft'`, args
}

func (r *Repo) GetOrCreateDraft(ctx context.Context, userID int64) (*models.Application, bool, error) {
	var (
		a       *models.Application
		created bool
	)
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		ts := now()
		tag, err := tx.Exec(ctx, `INSERT INTO applications (user_id, status, created, updated) VALUES ($1, 'draft', $2, $2) ON CONFLICT (user_id) WHERE status = 'draft' DO NOTHING`, userID, ts)
		if err != nil {
			return fmt.Errorf("insert draft: %w", err)
		}
		created = tag.RowsAffected() == 1
		a, err = scanApplication(tx.QueryRow(ctx, `SELECT `+applicationColumns+` FROM applications WHERE user_id = $1 AND status = 'draft'`, userID))
		if err != nil {
			return fmt.Errorf("load draft: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return a, created, nil
}

func (r *Repo) Get(ctx context.Context, id int64) (*models.Application, error) {
	a, err := scanApplication(r.pool.QueryRow(ctx, `SELECT `+applicationColumns+` FROM applications WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}

func (r *Repo) UpdateFields(ctx context.Context, id int64, fields models.FieldSet) (bool, error) {
	if len(fields) == 0 {
		return false, nil
	}
	if err := fields.Validate(); err != nil {
		return false, err
	}
	q, args := updateSQL(id, fields)
	tag, err := r.pool.Exec(ctx, q, args...)
	if err != nil {
		return false, fmt.Errorf("update application %d: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *Repo) CommitStep(ctx context.Context, draftID int64, fields models.FieldSet, s *models.Session) error {
	if s == nil {
		return fmt.Errorf("session is nil")
	}
	if err := fields.Validate(); err != nil {
		return err
	}
	return r.withTx(ctx, func(tx pgx.Tx) error {
		if len(fields) > 0 {
			q, args := updateSQL(draftID, fields)
			tag, err := tx.Exec(ctx, q, args...)
			if err != nil {
				return fmt.Errorf("update draft %d: %w", draftID, err)
			}
			if tag.RowsAffected() == 0 {
				return repository.ErrNotEditable
			}
		}
		return saveSession(ctx, tx, s)
	})
}

func deleteDraft(ctx context.Context, tx pgx.Tx, id int64) error {
	tag, err := tx.Exec(ctx, `DELETE FROM applications WHERE id = $1 AND status = 'draft'`, id)
	if err != nil {
		return fmt.Errorf("delete draft %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotEditable
	}
	return nil
}

func (r *Repo) DiscardDraft(ctx context.Context, draftID int64, s *models.Session) error {
	if s == nil {
		return fmt.Errorf("session is nil")
	}
	return r.withTx(ctx, func(tx pgx.Tx) error {
		if err := deleteDraft(ctx, tx, draftID); err != nil {
			return err
		}
		return saveSession(ctx, tx, s)
	})
}

func (r *Repo) RestartDraft(ctx context.Context, draftID int64, s *models.Session) (*models.Application, error) {
	if s == nil {
		return nil, fmt.Errorf("session is nil")
	}
	var a *models.Application
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		if err := deleteDraft(ctx, tx, draftID); err != nil {
			return err
		}
		var err error
		a, err = scanApplication(tx.QueryRow(ctx, `INSERT INTO applications (user_id, status, created, updated) VALUES ($1, 'draft', $2, $2) RETURNING `+applicationColumns, s.UserID, now()))
		if err != nil {
			return fmt.Errorf("insert draft: %w", err)
		}
		next := *s
		next.DraftID = a.ID
		return saveSession(ctx, tx, &next)
	})
	if err != nil {
		return nil, err
	}
	s.DraftID = a.ID
	return a, nil
}

func (r *Repo) SetStatus(ctx context.Context, id int64, from, to models.ApplicationStatus) (bool, error) {
	ts := now()
	var submitted *int64
	if to == models.StatusPending {
		submitted = &ts
	}
	tag, err := r.pool.Exec(ctx, `UPDATE applications SET status = $1, updated = $2, submitted = COALESCE($3, submitted) WHERE id = $4 AND status = $5`,
		string(to), ts, submitted, id, string(from))
	if err != nil {
		return false, fmt.Errorf("set status of %d: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *Repo) Delete(ctx context.Context, id int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM applications WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete application %d: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *Repo) ListByStatus(ctx context.Context, status models.ApplicationStatus, limit, offset int) ([]models.Application, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	q := `SELECT ` + applicationColumns + ` FROM applications`
	args := []any{limit, offset}
	if status != "" {
		q += ` WHERE status = $3`
		args = append(args, string(status))
	}
	q += ` ORDER BY id ASC LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Application
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (r *Repo) CountByStatus(ctx context.Context) (map[models.ApplicationStatus]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM applications GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[models.ApplicationStatus]int64)
	for rows.Next() {
		var (
			s   string
			cnt int64
		)
		if err := rows.Scan(&s, &cnt); err != nil {
			return nil, err
		}
		out[models.ApplicationStatus(s)] = cnt
	}
	return out, rows.Err()
}

func (r *Repo) SetHRNotes(ctx context.Context, id int64, notes string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE applications SET hr_notes = $1, updated = $2 WHERE id = $3`, notes, now(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("application %d not found", id)
	}
	return nil
}
