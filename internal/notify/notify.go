// Package notify delivers application events to HR channels and applicants.
// The wizard only enqueues jobs; delivery happens in the worker pool so a
// slow or failing channel never blocks a conversation.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/garnizeh/hrbot/internal/jobs"
	"github.com/garnizeh/hrbot/pkg/models"
	"github.com/garnizeh/hrbot/pkg/repository"
)

// Job priorities. Lower runs first.
const (
	PrioritySubmitted     = 10
	PriorityStatusChanged = 20
	PriorityScreening     = 50
)

// Notifier turns application events into durable jobs.
type Notifier struct {
	queue       repository.JobQueue
	maxAttempts int
	logger      *slog.Logger
}

func NewNotifier(queue repository.JobQueue, maxAttempts int, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{queue: queue, maxAttempts: maxAttempts, logger: logger}
}

// NotifySubmission enqueues the HR fan-out for app.
func (n *Notifier) NotifySubmission(ctx context.Context, app *models.Application) error {
	if app == nil {
		return fmt.Errorf("application is nil")
	}
	id, err := jobs.Enqueue(ctx, n.queue, jobs.TypeSubmitted, jobs.ApplicationPayload{ApplicationID: app.ID}, PrioritySubmitted, n.maxAttempts)
	if err != nil {
		return fmt.Errorf("enqueue submission %d: %w", app.ID, err)
	}
	n.logger.Debug("submission queued", slog.Int64("application_id", app.ID), slog.Int64("job_id", id))
	return nil
}

// NotifyStatusChange enqueues a message to the applicant about status.
func (n *Notifier) NotifyStatusChange(ctx context.Context, appID int64, status models.ApplicationStatus) error {
	p := jobs.ApplicationPayload{ApplicationID: appID, Status: string(status)}
	if _, err := jobs.Enqueue(ctx, n.queue, jobs.TypeStatusChanged, p, PriorityStatusChanged, n.maxAttempts); err != nil {
		return fmt.Errorf("enqueue status change %d: %w", appID, err)
	}
	return nil
}

// RequestScreening enqueues a screening run for appID.
func (n *Notifier) RequestScreening(ctx context.Context, appID int64) (int64, error) {
	id, err := jobs.Enqueue(ctx, n.queue, jobs.TypeScreening, jobs.ApplicationPayload{ApplicationID: appID}, PriorityScreening, n.maxAttempts)
	if err != nil {
		return 0, fmt.Errorf("enqueue screening %d: %w", appID, err)
	}
	return id, nil
}
