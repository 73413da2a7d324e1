package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/garnizeh/hrbot/pkg/models"
)

func (r *Repo) Enqueue(ctx context.Context, j *models.BackgroundJob) (int64, error) {
	if j == nil {
		return 0, fmt.Errorf("job is nil")
	}
	if j.MaxAttempts == 0 {
		j.MaxAttempts = 5
	}
	if j.ScheduledAt.IsZero() {
		j.ScheduledAt = time.Now()
	}
	payload := string(j.Payload)
	if payload == "" {
		payload = "null"
	}
	ts := time.Now().UTC().Unix()
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO jobs (type, payload, status, attempts, max_attempts, priority, scheduled_at, created, updated)
		VALUES ($1, $2::jsonb, $3, $4, $5, $6, $7, $8, $8) RETURNING id`,
		j.Type, payload, models.JobQueued, j.Attempts, j.MaxAttempts, j.Priority, j.ScheduledAt.UTC().Unix(), ts).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("enqueue failed: %w", err)
	}
	return id, nil
}

// FetchNext claims one ready job. SKIP LOCKED lets several workers, in one
// process or many, poll the same table.
func (r *Repo) FetchNext(ctx context.Context) (*models.BackgroundJob, error) {
	ts := time.Now().UTC().Unix()
	row := r.pool.QueryRow(ctx, `UPDATE jobs SET status = 'running', updated = $1
		WHERE id = (
			SELECT id FROM jobs
			WHERE status IN ('queued', 'retry') AND (next_try_at IS NULL OR next_try_at <= $1) AND scheduled_at <= $1
			ORDER BY priority ASC, scheduled_at ASC, id ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING id, type, payload, status, attempts, max_attempts, priority, scheduled_at, next_try_at, last_error, created, updated`, ts)

	var (
		j           models.BackgroundJob
		payload     []byte
		scheduledAt int64
		nextTry     *int64
		lastError   *string
		created     int64
		updated     int64
	)
	if err := row.Scan(&j.ID, &j.Type, &payload, &j.Status, &j.Attempts, &j.MaxAttempts, &j.Priority, &scheduledAt, &nextTry, &lastError, &created, &updated); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch next job: %w", err)
	}
	j.Payload = json.RawMessage(payload)
	j.ScheduledAt = time.Unix(scheduledAt, 0)
	j.Created = time.Unix(created, 0)
	j.Updated = time.Unix(updated, 0)
	if nextTry != nil {
		t := time.Unix(*nextTry, 0)
		j.NextTryAt = &t
	}
	if lastError != nil {
		j.LastError = *lastError
	}
	return &j, nil
}

func (r *Repo) UpdateJob(ctx context.Context, j *models.BackgroundJob) error {
	var nextTry *int64
	if j.NextTryAt != nil {
		v := j.NextTryAt.Unix()
		nextTry = &v
	}
	_, err := r.pool.Exec(ctx, `UPDATE jobs SET status = $1, attempts = $2, next_try_at = $3, last_error = $4, updated = $5 WHERE id = $6`,
		j.Status, j.Attempts, nextTry, j.LastError, time.Now().UTC().Unix(), j.ID)
	return err
}

func (r *Repo) MoveToDeadLetter(ctx context.Context, j *models.BackgroundJob) error {
	payload := string(j.Payload)
	if payload == "" {
		payload = "null"
	}
	return r.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO dead_letter_jobs (job_id, type, payload, attempts, last_error, failed_at) VALUES ($1, $2, $3::jsonb, $4, $5, $6)`,
			j.ID, j.Type, payload, j.Attempts, j.LastError, time.Now().UTC().Unix()); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM jobs WHERE id = $1`, j.ID)
		return err
	})
}

func (r *Repo) CountDeadLetters(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM dead_letter_jobs`).Scan(&n)
	return n, err
}
