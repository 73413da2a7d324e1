package wizard

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/garnizeh/hrbot/internal/metrics"
	"github.com/garnizeh/hrbot/internal/summary"
	"github.com/garnizeh/hrbot/pkg/models"
)

// screen renders the confirmation summary followed by stored media.
func (e *Engine) screen(a *models.Application, lang string) []Message {
	msgs := []Message{{
		Text: summary.Render(e.bundle, lang, a),
		Keyboard: &Keyboard{Rows: [][]Button{
			{{Text: e.bundle.Button(lang, "confirm")}},
			{{Text: e.bundle.Button(lang, "refill")}},
			{{Text: e.bundle.Button(lang, "cancel")}},
		}},
	}}
	media := []struct {
		kind    MediaKind
		path    *string
		caption string
	}{
		{MediaPhoto, a.PhotoPath, "photo_caption"},
		{MediaVoice, a.RussianVoicePath, "russian_voice_caption"},
		{MediaVoice, a.EnglishVoicePath, "english_voice_caption"},
	}
	for _, m := range media {
		if m.path == nil || *m.path == "" {
			continue
		}
		msgs = append(msgs, Message{Media: &Media{
			Kind:    m.kind,
			Path:    *m.path,
			Caption: e.bundle.T(lang, "application.confirmation."+m.caption),
		}})
	}
	return msgs
}

func (e *Engine) confirm(ctx context.Context, t *turn) (string, error) {
	draft, err := e.store.Get(ctx, t.sess.DraftID)
	if err != nil {
		return "", fmt.Errorf("load draft: %w", err)
	}
	if draft == nil {
		e.logger.Warn("confirmation without a draft", slog.Int64("user_id", t.in.UserID), slog.Int64("draft_id", t.sess.DraftID))
		t.say(Message{Text: e.bundle.T(t.lang, "errors.general")})
		return e.toMenu(ctx, t, "stale")
	}
	if draft.Status != models.StatusDraft {
		t.say(Message{Text: e.bundle.T(t.lang, "errors.already_submitted")})
		return e.toMenu(ctx, t, "already_submitted")
	}

	var key string
	if t.in.Kind == KindText {
		key, _ = e.bundle.Match(t.in.Text, "buttons.confirm", "buttons.refill", "buttons.cancel")
	}
	switch key {
	case "buttons.confirm":
		return e.submit(ctx, t, draft)
	case "buttons.refill":
		return e.refill(ctx, t, draft)
	case "buttons.cancel":
		return e.cancel(ctx, t, draft)
	}
	t.say(Message{Text: e.bundle.T(t.lang, "application.confirmation.invalid")})
	t.say(e.screen(draft, t.lang)...)
	return outcomeInvalid, nil
}

func (e *Engine) submit(ctx context.Context, t *turn, draft *models.Application) (string, error) {
	ok, err := e.store.SetStatus(ctx, draft.ID, models.StatusDraft, models.StatusPending)
	if err != nil {
		return "", fmt.Errorf("submit draft %d: %w", draft.ID, err)
	}
	if !ok {
		// lost a race with another submit of the same draft
		t.say(Message{Text: e.bundle.T(t.lang, "errors.already_submitted")})
		return e.toMenu(ctx, t, "already_submitted")
	}
	metrics.Decision("submitted")
	e.logger.Info("application submitted", slog.Int64("user_id", t.in.UserID), slog.Int64("application_id", draft.ID))

	app, err := e.store.Get(ctx, draft.ID)
	if err != nil || app == nil {
		e.logger.Warn("reload submitted application", slog.Int64("application_id", draft.ID), slog.Any("err", err))
		app = draft
		app.Status = models.StatusPending
	}
	if e.notifier != nil {
		if err := e.notifier.NotifySubmission(ctx, app); err != nil {
			e.logger.Error("notify submission", slog.Int64("application_id", app.ID), slog.Any("err", err))
			metrics.Error("wizard", "notify")
		}
	}

	t.say(Message{Text: e.bundle.T(t.lang, "application.success")})
	return e.toMenu(ctx, t, "submitted")
}

// refill swaps the draft for a fresh one. Media is removed only once the
// swap has committed.
func (e *Engine) refill(ctx context.Context, t *turn, draft *models.Application) (string, error) {
	sess := &models.Session{UserID: t.in.UserID, Step: string(StepFirstName), Lang: t.lang}
	fresh, err := e.store.RestartDraft(ctx, draft.ID, sess)
	if err != nil {
		return "", fmt.Errorf("restart draft %d: %w", draft.ID, err)
	}
	t.sess = sess
	e.removeMedia(draft.MediaPaths()...)
	metrics.Decision("refilled")
	e.logger.Info("application refilled", slog.Int64("user_id", t.in.UserID), slog.Int64("draft_id", fresh.ID))
	t.say(Message{Text: e.bundle.T(t.lang, "application.start")}, e.ask(StepFirstName, t.lang))
	return "refill", nil
}

func (e *Engine) cancel(ctx context.Context, t *turn, draft *models.Application) (string, error) {
	sess := &models.Session{UserID: t.in.UserID, Step: string(StepMenu), Lang: t.lang}
	if err := e.store.DiscardDraft(ctx, draft.ID, sess); err != nil {
		return "", fmt.Errorf("discard draft %d: %w", draft.ID, err)
	}
	t.sess = sess
	e.removeMedia(draft.MediaPaths()...)
	metrics.Decision("cancelled")
	e.logger.Info("application cancelled", slog.Int64("user_id", t.in.UserID), slog.Int64("application_id", draft.ID))
	t.say(
		Message{Text: e.bundle.T(t.lang, "application.cancelled")},
		Message{Text: e.bundle.T(t.lang, "menu.main"), Keyboard: e.menuKeyboard(t.lang)},
	)
	return "cancel", nil
}
