package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/garnizeh/hrbot/pkg/models"
	"github.com/garnizeh/hrbot/pkg/repository"
)

// Job types
const (
	// TypeSubmitted fans a submitted application out to the HR channels.
	TypeSubmitted = "application.submitted"
	// TypeStatusChanged tells the applicant about a review decision.
	TypeStatusChanged = "application.status_changed"
	// TypeScreening asks the model for a screening note.
	TypeScreening = "application.screening"
)

// Handler is the function that processes a job
type Handler func(ctx context.Context, j *models.BackgroundJob) error

// ErrMaxAttempts indicates the job reached max attempts
var ErrMaxAttempts = errors.New("max attempts reached")

// ErrPermanent marks a handler failure that retrying cannot fix. The job goes
// straight to the dead letter table.
var ErrPermanent = errors.New("permanent job failure")

// BackoffDuration returns exponential backoff duration for attempt n
func BackoffDuration(attempt int) time.Duration {
	if attempt <= 0 {
		return time.Second
	}
	// simple exponential: base 2^attempt seconds, capped
	d := time.Duration(1<<uint(min(attempt, 16))) * time.Second
	max := 5 * time.Minute
	if d > max {
		return max
	}
	return d
}

// Enqueue marshals payload and persists a new job on q.
func Enqueue(ctx context.Context, q repository.JobQueue, typ string, payload any, priority, maxAttempts int) (int64, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal %s payload: %w", typ, err)
	}
	j := &models.BackgroundJob{Type: typ, Payload: b, Priority: priority, MaxAttempts: maxAttempts, ScheduledAt: time.Now()}
	return q.Enqueue(ctx, j)
}

// Decode unmarshals the payload of j into v.
func Decode(j *models.BackgroundJob, v any) error {
	if err := json.Unmarshal(j.Payload, v); err != nil {
		return fmt.Errorf("%w: decode %s payload: %v", ErrPermanent, j.Type, err)
	}
	return nil
}

// ApplicationPayload is the payload of every application.* job.
type ApplicationPayload struct {
	ApplicationID int64  `json:"application_id"`
	Status        string `json:"status,omitempty"`
	// Sink names a single delivery target. Empty means fan out.
	Sink string `json:"sink,omitempty"`
}
