package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/garnizeh/hrbot/pkg/models"
	"github.com/garnizeh/hrbot/pkg/repository"
)

const applicationColumns = `id, user_id, status, first_name, last_name, birth_date, gender, address, phone, email,
	is_student, education_place, education_level, russian_level, russian_voice_path, english_level, english_voice_path,
	has_experience, experience_years, last_workplace, last_position, photo_path, resume_path, how_found,
	additional_notes, hr_notes, created, updated, submitted`

type scanner interface {
	Scan(dest ...any) error
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func scanApplication(s scanner) (*models.Application, error) {
	var (
		a                                              models.Application
		first, last, birth, gender, address            sql.NullString
		phone, email, eduPlace, eduLevel               sql.NullString
		ruLevel, ruVoice, enLevel, enVoice             sql.NullString
		lastWork, lastPos, photo, resume, found, notes sql.NullString
		hrNotes                                        sql.NullString
		isStudent, hasExp                              sql.NullBool
		years, submitted                               sql.NullInt64
	)
	err := s.Scan(&a.ID, &a.UserID, &a.Status, &first, &last, &birth, &gender, &address, &phone, &email,
		&isStudent, &eduPlace, &eduLevel, &ruLevel, &ruVoice, &enLevel, &enVoice,
		&hasExp, &years, &lastWork, &lastPos, &photo, &resume, &found,
		&notes, &hrNotes, &a.Created, &a.Updated, &submitted)
	if err != nil {
		return nil, err
	}

	a.FirstName, a.LastName = nullString(first), nullString(last)
	if birth.Valid {
		d, err := time.Parse(models.DateLayout, birth.String)
		if err != nil {
			return nil, fmt.Errorf("application %d: birth_date %q: %w", a.ID, birth.String, err)
		}
		a.BirthDate = &d
	}
	if gender.Valid {
		g := models.Gender(gender.String)
		a.Gender = &g
	}
	a.Address, a.Phone, a.Email = nullString(address), nullString(phone), nullString(email)
	if isStudent.Valid {
		b := isStudent.Bool
		a.IsStudent = &b
	}
	a.EducationPlace = nullString(eduPlace)
	if eduLevel.Valid {
		l := models.Level(eduLevel.String)
		a.EducationLevel = &l
	}
	if ruLevel.Valid {
		p := models.Proficiency(ruLevel.String)
		a.RussianLevel = &p
	}
	a.RussianVoicePath = nullString(ruVoice)
	if enLevel.Valid {
		p := models.Proficiency(enLevel.String)
		a.EnglishLevel = &p
	}
	a.EnglishVoicePath = nullString(enVoice)
	if hasExp.Valid {
		b := hasExp.Bool
		a.HasExperience = &b
	}
	if years.Valid {
		n := int(years.Int64)
		a.ExperienceYears = &n
	}
	a.LastWorkplace, a.LastPosition = nullString(lastWork), nullString(lastPos)
	a.PhotoPath, a.ResumePath = nullString(photo), nullString(resume)
	a.HowFound, a.AdditionalNotes, a.HRNotes = nullString(found), nullString(notes), nullString(hrNotes)
	if submitted.Valid {
		v := submitted.Int64
		a.Submitted = &v
	}
	return &a, nil
}

// sqlValue converts a field value for SQLite: dates as text, booleans as 0/1.
func sqlValue(v any) any {
	if b, ok := v.(bool); ok {
		if b {
			return 1
		}
		return 0
	}
	return models.SQLValue(v, true)
}

// updateSQL builds the draft-only UPDATE for fields. Columns come from the
// models.Field whitelist, never from input text.
func updateSQL(id int64, fields models.FieldSet) (string, []any) {
	names := make([]string, 0, len(fields))
	for f := range fields {
		names = append(names, string(f))
	}
	sort.Strings(names)

	sets := make([]string, 0, len(names)+1)
	args := make([]any, 0, len(names)+2)
	for _, n := range names {
		sets = append(sets, n+" = ?")
		args = append(args, sqlValue(fields[models.Field(n)]))
	}
	sets = append(sets, "updated = ?")
	args = append(args, now(), id)
	return `UPDATE applications SET ` + strings.Join(sets, ", ") + ` WHERE id = ? AND status = 'draft'`, args
}

// GetOrCreateDraft returns the user's draft, inserting one if none exists.
// The partial unique index on (user_id) WHERE status = 'draft' makes the
// insert a no-op when a draft is already there.
func (r *SQLiteRepo) GetOrCreateDraft(ctx context.Context, userID int64) (*models.Application, bool, error) {
	var (
		a       *models.Application
		created bool
	)
	err := r.conn.WithTx(ctx, func(tx *sql.Tx) error {
		ts := now()
		res, err := tx.ExecContext(ctx, `INSERT INTO applications (user_id, status, created, updated) VALUES (?, 'draft', ?, ?) ON CONFLICT(user_id) WHERE status = 'draft' DO NOTHING`, userID, ts, ts)
		if err != nil {
			return fmt.Errorf("insert draft: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		created = n == 1

		row := tx.QueryRowContext(ctx, `SELECT `+applicationColumns+` FROM applications WHERE user_id = ? AND status = 'draft'`, userID)
		a, err = scanApplication(row)
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

func (r *SQLiteRepo) Get(ctx context.Context, id int64) (*models.Application, error) {
	a, err := scanApplication(r.conn.QueryRow(ctx, `SELECT `+applicationColumns+` FROM applications WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}

func (r *SQLiteRepo) UpdateFields(ctx context.Context, id int64, fields models.FieldSet) (bool, error) {
	if len(fields) == 0 {
		return false, nil
	}
	if err := fields.Validate(); err != nil {
		return false, err
	}
	q, args := updateSQL(id, fields)
	res, err := r.conn.Exec(ctx, q, args...)
	if err != nil {
		return false, fmt.Errorf("update application %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// CommitStep writes the step's fields and the advanced session in one
// transaction.
func (r *SQLiteRepo) CommitStep(ctx context.Context, draftID int64, fields models.FieldSet, s *models.Session) error {
	if s == nil {
		return fmt.Errorf("session is nil")
	}
	if err := fields.Validate(); err != nil {
		return err
	}
	return r.conn.WithTx(ctx, func(tx *sql.Tx) error {
		if len(fields) > 0 {
			q, args := updateSQL(draftID, fields)
			res, err := tx.ExecContext(ctx, q, args...)
			if err != nil {
				return fmt.Errorf("update draft %d: %w", draftID, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				return repository.ErrNotEditable
			}
		}
		return saveSession(ctx, tx, s)
	})
}

func deleteDraft(ctx context.Context, tx *sql.Tx, id int64) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM applications WHERE id = ? AND status = 'draft'`, id)
	if err != nil {
		return fmt.Errorf("delete draft %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotEditable
	}
	return nil
}

func (r *SQLiteRepo) DiscardDraft(ctx context.Context, draftID int64, s *models.Session) error {
	if s == nil {
		return fmt.Errorf("session is nil")
	}
	return r.conn.WithTx(ctx, func(tx *sql.Tx) error {
		if err := deleteDraft(ctx, tx, draftID); err != nil {
			return err
		}
		return saveSession(ctx, tx, s)
	})
}

func (r *SQLiteRepo) RestartDraft(ctx context.Context, draftID int64, s *models.Session) (*models.Application, error) {
	if s == nil {
		return nil, fmt.Errorf("session is nil")
	}
	var a *models.Application
	err := r.conn.WithTx(ctx, func(tx *sql.Tx) error {
		if err := deleteDraft(ctx, tx, draftID); err != nil {
			return err
		}
		ts := now()
		row := tx.QueryRowContext(ctx, `INSERT INTO applications (user_id, status, created, updated) VALUES (?, 'draft', ?, ?) RETURNING `+applicationColumns, s.UserID, ts, ts)
		var err error
		if a, err = scanApplication(row); err != nil {
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

// SetStatus moves an application from one status to another. It reports
// false when the row is missing or no longer in from.
func (r *SQLiteRepo) SetStatus(ctx context.Context, id int64, from, to models.ApplicationStatus) (bool, error) {
	ts := now()
	var submitted any
	if to == models.StatusPending {
		submitted = ts
	}
	res, err := r.conn.Exec(ctx, `UPDATE applications SET status = ?, updated = ?, submitted = COALESCE(?, submitted) WHERE id = ? AND status = ?`, string(to), ts, submitted, id, string(from))
	if err != nil {
		return false, fmt.Errorf("set status of %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *SQLiteRepo) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.conn.Exec(ctx, `DELETE FROM applications WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete application %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ListByStatus pages through applications, oldest first. An empty status
// lists everything.
func (r *SQLiteRepo) ListByStatus(ctx context.Context, status models.ApplicationStatus, limit, offset int) ([]models.Application, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	q := `SELECT ` + applicationColumns + ` FROM applications`
	var args []any
	if status != "" {
		q += ` WHERE status = ?`
		args = append(args, string(status))
	}
	q += ` ORDER BY id ASC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := r.conn.QueryRows(ctx, q, args...)
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

func (r *SQLiteRepo) CountByStatus(ctx context.Context) (map[models.ApplicationStatus]int64, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT status, COUNT(*) FROM applications GROUP BY status`)
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

func (r *SQLiteRepo) SetHRNotes(ctx context.Context, id int64, notes string) error {
	res, err := r.conn.Exec(ctx, `UPDATE applications SET hr_notes = ?, updated = ? WHERE id = ?`, notes, now(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("application %d not found", id)
	}
	return nil
}
