// small contract description
// inputs: job table rows, handlers map
// outputs: job status updates, dead-letter moves on permanent failure
// error modes: db errors, handler errors
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/garnizeh/hrbot/internal/metrics"
	"github.com/garnizeh/hrbot/pkg/models"
	"github.com/garnizeh/hrbot/pkg/repository"
)

type WorkerPool struct {
	repo         repository.JobQueue
	handlers     map[string]Handler
	logger       *slog.Logger
	workerCount  int
	pollInterval time.Duration
	maxAttempts  int
	stop         chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
}

func NewWorkerPool(repo repository.JobQueue, handlers map[string]Handler, logger *slog.Logger, workerCount int) *WorkerPool {
	if workerCount <= 0 {
		workerCount = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	if handlers == nil {
		handlers = make(map[string]Handler)
	}
	return &WorkerPool{
		repo:         repo,
		handlers:     handlers,
		logger:       logger,
		workerCount:  workerCount,
		pollInterval: 500 * time.Millisecond,
		maxAttempts:  5,
		stop:         make(chan struct{}),
	}
}

// SetPollInterval changes how long an idle worker waits before polling
// again. Call before Start.
func (p *WorkerPool) SetPollInterval(d time.Duration) {
	if d > 0 {
		p.pollInterval = d
	}
}

// SetMaxAttempts sets the default attempt budget used by Enqueue.
func (p *WorkerPool) SetMaxAttempts(n int) {
	if n > 0 {
		p.maxAttempts = n
	}
}

// Register adds a handler for typ. Call before Start.
func (p *WorkerPool) Register(typ string, h Handler) {
	p.handlers[typ] = h
}

// Start launches the worker goroutines
func (p *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Stop signals workers to stop and waits for them
func (p *WorkerPool) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
	p.wg.Wait()
}

// wait sleeps for d and reports false when the pool is shutting down.
func (p *WorkerPool) wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-p.stop:
		return false
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (p *WorkerPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stop:
			p.logger.Info("worker stopping", "id", id)
			return
		case <-ctx.Done():
			p.logger.Info("context canceled, worker exiting", "id", id)
			return
		default:
		}

		job, err := p.repo.FetchNext(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Error("fetch job", "err", err)
			metrics.Error("jobs", "fetch")
			if !p.wait(ctx, time.Second) {
				return
			}
			continue
		}
		if job == nil {
			// nothing to do
			if !p.wait(ctx, p.pollInterval) {
				return
			}
			continue
		}
		p.process(ctx, job)
	}
}

// process runs the handler for job and records the result.
func (p *WorkerPool) process(ctx context.Context, job *models.BackgroundJob) {
	log := p.logger.With(slog.Int64("job_id", job.ID), slog.String("type", job.Type))

	h, ok := p.handlers[job.Type]
	if !ok {
		job.Status = models.JobFailed
		job.LastError = "no handler"
		if err := p.repo.MoveToDeadLetter(ctx, job); err != nil {
			log.Error("move to dead letter", "err", err)
		}
		metrics.Job(job.Type, "no_handler")
		return
	}

	err := p.run(ctx, h, job)
	if err == nil {
		job.Status = models.JobDone
		job.LastError = ""
		if upErr := p.repo.UpdateJob(ctx, job); upErr != nil {
			log.Error("mark job done", "err", upErr)
		}
		metrics.Job(job.Type, "done")
		return
	}

	// handler returned error
	job.Attempts++
	job.LastError = err.Error()
	if errors.Is(err, ErrPermanent) || job.Attempts >= job.MaxAttempts {
		job.Status = models.JobFailed
		if mvErr := p.repo.MoveToDeadLetter(ctx, job); mvErr != nil {
			log.Error("move to dead letter", "err", mvErr)
		}
		log.Warn("job failed", slog.Int("attempts", job.Attempts), slog.Any("err", err))
		metrics.Job(job.Type, "failed")
		return
	}
	// schedule retry with backoff
	t := time.Now().Add(BackoffDuration(job.Attempts))
	job.NextTryAt = &t
	job.Status = models.JobRetry
	if upErr := p.repo.UpdateJob(ctx, job); upErr != nil {
		log.Error("update job for retry", "err", upErr)
	}
	log.Info("job will retry", slog.Int("attempts", job.Attempts), slog.Time("next_try_at", t), slog.Any("err", err))
	metrics.Job(job.Type, "retry")
}

// run calls h and turns a panic into an error.
func (p *WorkerPool) run(ctx context.Context, h Handler, job *models.BackgroundJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, job)
}

// Enqueue convenience helper that creates a job and persists it
func (p *WorkerPool) Enqueue(ctx context.Context, typ string, payload any, priority int) (int64, error) {
	return Enqueue(ctx, p.repo, typ, payload, priority, p.maxAttempts)
}
