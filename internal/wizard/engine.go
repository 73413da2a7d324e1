// Package wizard implements the application intake conversation as an
// explicit state machine over the steps declared in step.go.
package wizard

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/garnizeh/hrbot/internal/i18n"
	"github.com/garnizeh/hrbot/internal/metrics"
	"github.com/garnizeh/hrbot/pkg/models"
	"github.com/garnizeh/hrbot/pkg/repository"
)

// Store is the persistence the engine needs.
type Store interface {
	repository.DraftStore
	repository.SessionStore
	repository.StepCommitter
	repository.UserRepo
}

// Fetcher downloads an attachment into durable storage and returns its path.
type Fetcher interface {
	Fetch(ctx context.Context, userID int64, kind, fileID, fileName string) (string, error)
	Remove(paths ...string)
}

// Notifier is told about every submitted application. Errors are logged
// and never undo the submission.
type Notifier interface {
	NotifySubmission(ctx context.Context, app *models.Application) error
}

type Engine struct {
	store    Store
	bundle   *i18n.Bundle
	fetcher  Fetcher
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
	locks    *userLocks
}

type Option func(*Engine)

// WithClock overrides the clock used for age checks.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithFetcher(f Fetcher) Option {
	return func(e *Engine) { e.fetcher = f }
}

func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

func NewEngine(store Store, bundle *i18n.Bundle, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		store:  store,
		bundle: bundle,
		logger: logger,
		now:    time.Now,
		locks:  newUserLocks(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// turn carries the state of one Handle call.
type turn struct {
	in    Input
	step  Step
	sess  *models.Session
	lang  string
	reply Reply
}

func (t *turn) say(m ...Message) { t.reply.add(m...) }

// Handle processes one input. Inputs for the same user are serialized.
// Errors never escape: the user gets a generic reply and state is left as
// it was before the failing write.
func (e *Engine) Handle(ctx context.Context, in Input) Reply {
	unlock := e.locks.lock(in.UserID)
	defer unlock()

	start := time.Now()
	t := &turn{in: in, reply: Reply{ChatID: in.ChatID}}
	outcome, err := e.handle(ctx, t)
	if err != nil {
		e.logger.Error("wizard turn failed",
			slog.Int64("user_id", in.UserID),
			slog.String("step", string(t.step)),
			slog.String("input", in.Kind.String()),
			slog.Any("err", err),
		)
		metrics.Error("wizard", "turn")
		outcome = "error"
		lang := t.lang
		if lang == "" {
			lang = e.bundle.Resolve(in.Profile.LanguageCode)
		}
		t.reply = Reply{ChatID: in.ChatID, Messages: []Message{{Text: e.bundle.T(lang, "errors.general")}}}
	}
	metrics.ObserveInput(string(t.step), outcome, time.Since(start))
	return t.reply
}

func (e *Engine) handle(ctx context.Context, t *turn) (string, error) {
	in := t.in
	created, err := e.store.UpsertUser(ctx, &models.User{
		ID:        in.UserID,
		FirstName: in.Profile.FirstName,
		LastName:  in.Profile.LastName,
		Username:  in.Profile.Username,
	})
	if err != nil {
		return "", fmt.Errorf("upsert user: %w", err)
	}

	sess, err := e.store.LoadSession(ctx, in.UserID)
	if err != nil {
		return "", fmt.Errorf("load session: %w", err)
	}
	t.sess = sess
	if sess != nil {
		t.step = Step(sess.Step)
		t.lang = sess.Lang
	}
	if t.lang == "" {
		t.lang = e.bundle.Resolve(in.Profile.LanguageCode)
	}

	if sess == nil || (in.Kind == KindCommand && in.Text == "start") {
		return e.start(ctx, t, created)
	}

	switch step := t.step; {
	case step == StepLanguageSelect, step == StepSettings:
		return e.chooseLanguage(ctx, t)
	case step == StepMenu:
		return e.menu(ctx, t)
	case step == StepConfirmation:
		return e.confirm(ctx, t)
	case IsFormStep(step):
		return e.formStep(ctx, t, step)
	default:
		e.logger.Warn("unknown session step, resetting", slog.Int64("user_id", in.UserID), slog.String("step", string(step)))
		return e.toMenu(ctx, t, "reset")
	}
}

func (e *Engine) start(ctx context.Context, t *turn, created bool) (string, error) {
	u, err := e.store.GetUser(ctx, t.in.UserID)
	if err != nil {
		return "", fmt.Errorf("get user: %w", err)
	}
	name := html.EscapeString(t.in.Profile.FirstName)

	if created || u == nil || !e.bundle.Supports(u.LanguageCode) {
		sess := &models.Session{UserID: t.in.UserID, Step: string(StepLanguageSelect), Lang: t.lang}
		if err := e.store.SaveSession(ctx, sess); err != nil {
			return "", fmt.Errorf("save session: %w", err)
		}
		t.sess = sess
		t.say(Message{Text: e.bundle.T(t.lang, "welcome.first_time", "name", name), Keyboard: e.languageKeyboard(t.lang, false)})
		return "start", nil
	}

	t.lang = u.LanguageCode
	t.say(Message{Text: e.bundle.T(t.lang, "welcome.returning", "name", name)})
	return e.toMenu(ctx, t, "start")
}

// toMenu clears the session to the main menu and shows it.
func (e *Engine) toMenu(ctx context.Context, t *turn, outcome string) (string, error) {
	sess := &models.Session{UserID: t.in.UserID, Step: string(StepMenu), Lang: t.lang}
	if err := e.store.SaveSession(ctx, sess); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}
	t.sess = sess
	t.say(Message{Text: e.bundle.T(t.lang, "menu.main"), Keyboard: e.menuKeyboard(t.lang)})
	return outcome, nil
}

func (e *Engine) menu(ctx context.Context, t *turn) (string, error) {
	if t.in.Kind == KindText {
		key, _ := e.bundle.Match(t.in.Text, "buttons.start_application", "buttons.settings")
		switch key {
		case "buttons.start_application":
			if err := e.enter(ctx, t); err != nil {
				return "", err
			}
			return "enter", nil
		case "buttons.settings":
			sess := cloneSession(t.sess)
			sess.Step = string(StepSettings)
			if err := e.store.SaveSession(ctx, sess); err != nil {
				return "", fmt.Errorf("save session: %w", err)
			}
			t.sess = sess
			t.say(Message{Text: e.bundle.T(t.lang, "menu.settings"), Keyboard: e.languageKeyboard(t.lang, true)})
			return "settings", nil
		}
	}
	t.say(Message{Text: e.bundle.T(t.lang, "menu.main"), Keyboard: e.menuKeyboard(t.lang)})
	return "invalid", nil
}

// enter opens the wizard on the user's draft, creating it if needed.
func (e *Engine) enter(ctx context.Context, t *turn) error {
	draft, created, err := e.store.GetOrCreateDraft(ctx, t.in.UserID)
	if err != nil {
		return fmt.Errorf("get or create draft: %w", err)
	}
	sess := &models.Session{UserID: t.in.UserID, Step: string(StepFirstName), DraftID: draft.ID, Lang: t.lang}
	if draft.IsStudent != nil {
		sess.SetFlag(FlagIsStudent, *draft.IsStudent)
	}
	if draft.HasExperience != nil {
		sess.SetFlag(FlagHasExperience, *draft.HasExperience)
	}
	if err := e.store.SaveSession(ctx, sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	t.sess = sess
	e.logger.Info("wizard entered", slog.Int64("user_id", t.in.UserID), slog.Int64("draft_id", draft.ID), slog.Bool("created", created))

	t.say(Message{Text: e.bundle.T(t.lang, "application.start")}, e.ask(StepFirstName, t.lang))
	return nil
}

func (e *Engine) languageKeys() []string {
	langs := e.bundle.Languages()
	keys := make([]string, 0, len(langs))
	for _, l := range langs {
		keys = append(keys, "buttons."+l)
	}
	return keys
}

func (e *Engine) chooseLanguage(ctx context.Context, t *turn) (string, error) {
	settings := t.step == StepSettings
	if t.in.Kind == KindText {
		if settings && e.bundle.Is(t.in.Text, "buttons.back") {
			return e.toMenu(ctx, t, "back")
		}
		if key, ok := e.bundle.Match(t.in.Text, e.languageKeys()...); ok {
			lang := strings.TrimPrefix(key, "buttons.")
			if err := e.store.SetLanguage(ctx, t.in.UserID, lang); err != nil {
				return "", fmt.Errorf("set language: %w", err)
			}
			t.lang = lang
			t.say(Message{Text: e.bundle.T(lang, "menu.language_changed")})
			return e.toMenu(ctx, t, "language")
		}
	}
	if settings {
		t.say(Message{Text: e.bundle.T(t.lang, "menu.settings"), Keyboard: e.languageKeyboard(t.lang, true)})
	} else {
		name := html.EscapeString(t.in.Profile.FirstName)
		t.say(Message{Text: e.bundle.T(t.lang, "welcome.first_time", "name", name), Keyboard: e.languageKeyboard(t.lang, false)})
	}
	return "invalid", nil
}

func (e *Engine) menuKeyboard(lang string) *Keyboard {
	return &Keyboard{Rows: [][]Button{
		{{Text: e.bundle.Button(lang, "start_application")}},
		{{Text: e.bundle.Button(lang, "settings")}},
	}}
}

func (e *Engine) languageKeyboard(lang string, withBack bool) *Keyboard {
	var row []Button
	for _, k := range e.languageKeys() {
		row = append(row, Button{Text: e.bundle.T(lang, k)})
	}
	kb := &Keyboard{Rows: [][]Button{row}}
	if withBack {
		kb.Rows = append(kb.Rows, []Button{{Text: e.bundle.Button(lang, "back")}})
	}
	return kb
}

func cloneSession(s *models.Session) *models.Session {
	c := *s
	c.Flags = nil
	for k, v := range s.Flags {
		c.SetFlag(k, v)
	}
	return &c
}
