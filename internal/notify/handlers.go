package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/garnizeh/hrbot/internal/i18n"
	"github.com/garnizeh/hrbot/internal/jobs"
	"github.com/garnizeh/hrbot/internal/summary"
	"github.com/garnizeh/hrbot/pkg/models"
	"github.com/garnizeh/hrbot/pkg/repository"
)

// HandlerStore is what the job handlers read.
type HandlerStore interface {
	Get(ctx context.Context, id int64) (*models.Application, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	repository.JobQueue
}

// Handlers executes the application.* jobs.
type Handlers struct {
	store       HandlerStore
	bundle      *i18n.Bundle
	sinks       map[string]Sink
	applicant   TelegramSender
	hrLang      string
	screening   bool
	maxAttempts int
	logger      *slog.Logger
}

type HandlersConfig struct {
	// HRLanguage renders HR notifications. Empty means the bundle default.
	HRLanguage string
	// Screening enqueues a screening job for every submission.
	Screening   bool
	MaxAttempts int
}

// NewHandlers wires sinks for HR and applicant for messages back to
// applicants. Either may be empty.
func NewHandlers(store HandlerStore, bundle *i18n.Bundle, sinks []Sink, applicant TelegramSender, cfg HandlersConfig, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.HRLanguage == "" {
		cfg.HRLanguage = bundle.Default()
	}
	h := &Handlers{
		store:       store,
		bundle:      bundle,
		sinks:       make(map[string]Sink, len(sinks)),
		applicant:   applicant,
		hrLang:      cfg.HRLanguage,
		screening:   cfg.Screening,
		maxAttempts: cfg.MaxAttempts,
		logger:      logger,
	}
	for _, s := range sinks {
		h.sinks[s.Name()] = s
	}
	return h
}

// Register adds the handlers to p.
func (h *Handlers) Register(p *jobs.WorkerPool) {
	p.Register(jobs.TypeSubmitted, h.Submitted)
	p.Register(jobs.TypeStatusChanged, h.StatusChanged)
}

func (h *Handlers) load(ctx context.Context, id int64) (*models.Application, error) {
	app, err := h.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load application %d: %w", id, err)
	}
	if app == nil {
		return nil, fmt.Errorf("%w: application %d not found", jobs.ErrPermanent, id)
	}
	return app, nil
}

// Submitted fans a submission out into one job per sink, then delivers each
// one on its own so a retry never repeats a message that already went out.
func (h *Handlers) Submitted(ctx context.Context, j *models.BackgroundJob) error {
	var p jobs.ApplicationPayload
	if err := jobs.Decode(j, &p); err != nil {
		return err
	}
	if p.Sink == "" {
		return h.fanOut(ctx, p.ApplicationID)
	}

	sink, ok := h.sinks[p.Sink]
	if !ok {
		return fmt.Errorf("%w: sink %q not configured", jobs.ErrPermanent, p.Sink)
	}
	app, err := h.load(ctx, p.ApplicationID)
	if err != nil {
		return err
	}
	msg, err := h.hrMessage(ctx, app)
	if err != nil {
		return err
	}
	if err := sink.Send(ctx, msg); err != nil {
		return err
	}
	h.logger.Info("hr notified", slog.Int64("application_id", app.ID), slog.String("sink", p.Sink))
	return nil
}

func (h *Handlers) fanOut(ctx context.Context, appID int64) error {
	for name := range h.sinks {
		p := jobs.ApplicationPayload{ApplicationID: appID, Sink: name}
		if _, err := jobs.Enqueue(ctx, h.store, jobs.TypeSubmitted, p, PrioritySubmitted, h.maxAttempts); err != nil {
			return fmt.Errorf("enqueue %s delivery: %w", name, err)
		}
	}
	if h.screening {
		p := jobs.ApplicationPayload{ApplicationID: appID}
		if _, err := jobs.Enqueue(ctx, h.store, jobs.TypeScreening, p, PriorityScreening, h.maxAttempts); err != nil {
			return fmt.Errorf("enqueue screening: %w", err)
		}
	}
	return nil
}

func (h *Handlers) hrMessage(ctx context.Context, app *models.Application) (Message, error) {
	user, err := h.store.GetUser(ctx, app.UserID)
	if err != nil {
		return Message{}, fmt.Errorf("load user %d: %w", app.UserID, err)
	}
	header := h.bundle.T(h.hrLang, "notify.submitted",
		"id", strconv.FormatInt(app.ID, 10),
		"user", userRef(user, app.UserID))
	msg := Message{Text: header + "\n\n" + summary.Body(h.bundle, h.hrLang, app)}
	if app.PhotoPath != nil {
		msg.Photo = *app.PhotoPath
	}
	return msg, nil
}

// userRef links to the applicant's Telegram profile.
func userRef(u *models.User, id int64) string {
	if u != nil && u.Username != "" {
		return "@" + html.EscapeString(u.Username)
	}
	name := strconv.FormatInt(id, 10)
	if u != nil && u.FirstName != "" {
		name = html.EscapeString(u.FirstName)
	}
	return `<a href="tg://user?id=` + strconv.FormatInt(id, 10) + `">` + name + `</a>`
}

// StatusChanged tells the applicant about a review decision in their own
// language.
func (h *Handlers) StatusChanged(ctx context.Context, j *models.BackgroundJob) error {
	var p jobs.ApplicationPayload
	if err := jobs.Decode(j, &p); err != nil {
		return err
	}
	if h.applicant == nil {
		h.logger.Warn("no applicant channel, status change dropped", slog.Int64("application_id", p.ApplicationID))
		return nil
	}
	app, err := h.load(ctx, p.ApplicationID)
	if err != nil {
		return err
	}
	user, err := h.store.GetUser(ctx, app.UserID)
	if err != nil {
		return fmt.Errorf("load user %d: %w", app.UserID, err)
	}
	lang := h.bundle.Default()
	if user != nil {
		lang = h.bundle.Resolve(user.LanguageCode)
	}
	status := p.Status
	if status == "" {
		status = string(app.Status)
	}
	text := h.bundle.T(lang, "notify.status_changed",
		"id", strconv.FormatInt(app.ID, 10),
		"status", h.bundle.T(lang, "status."+status))

	// private chat ids equal user ids
	msg := tgbotapi.NewMessage(app.UserID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := h.applicant.Send(msg); err != nil {
		err = telegramError(err)
		if errors.Is(err, jobs.ErrPermanent) {
			h.logger.Warn("applicant unreachable", slog.Int64("user_id", app.UserID), slog.Any("err", err))
		}
		return err
	}
	return nil
}
