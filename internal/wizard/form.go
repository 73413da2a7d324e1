package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/garnizeh/hrbot/internal/metrics"
	"github.com/garnizeh/hrbot/internal/validate"
	"github.com/garnizeh/hrbot/pkg/models"
	"github.com/garnizeh/hrbot/pkg/repository"
)

const (
	outcomeAnswer  = "answer"
	outcomeSkip    = "skip"
	outcomeBack    = "back"
	outcomeInvalid = "invalid"
)

// decision is the pure result of matching one input against a step.
type decision struct {
	outcome    string
	fields     models.FieldSet
	next       Step
	flag       string
	flagValue  bool
	attachment *Attachment
	mediaKind  MediaKind
}

var invalid = decision{outcome: outcomeInvalid}

// decide maps (step, input) onto a decision without touching any state.
func (e *Engine) decide(def *stepDef, in Input) decision {
	if in.Kind == KindText {
		switch key, _ := e.bundle.MatchButton(in.Text); key {
		case "buttons.back":
			return decision{outcome: outcomeBack}
		case "buttons.skip":
			if !def.optional {
				return invalid
			}
			return decision{outcome: outcomeSkip, fields: models.FieldSet{def.field: nil}, next: def.next}
		}
	}

	answer := func(v any) decision {
		return decision{outcome: outcomeAnswer, fields: models.FieldSet{def.field: v}, next: def.next}
	}
	fetch := func(kind MediaKind) decision {
		return decision{outcome: outcomeAnswer, next: def.next, attachment: in.Attachment, mediaKind: kind}
	}

	switch def.shape {
	case shapeText:
		if in.Kind != KindText {
			return invalid
		}
		if v, ok := def.parse(in.Text, e.now()); ok {
			return answer(v)
		}
	case shapePhone:
		if in.Kind == KindContact && in.Phone != "" {
			return answer(validate.ContactPhone(in.Phone))
		}
		if in.Kind != KindText {
			return invalid
		}
		if v, ok := def.parse(in.Text, e.now()); ok {
			return answer(v)
		}
	case shapeChoice:
		if in.Kind != KindText {
			return invalid
		}
		for _, c := range def.choices {
			if e.bundle.Is(in.Text, c.key) {
				return answer(c.value)
			}
		}
	case shapeBool:
		if in.Kind != KindText {
			return invalid
		}
		key, ok := e.bundle.Match(in.Text, "buttons.yes", "buttons.no")
		if !ok {
			return invalid
		}
		v := key == "buttons.yes"
		d := answer(v)
		d.flag, d.flagValue = def.flag, v
		d.next = def.ifFalse
		if v {
			d.next = def.ifTrue
		} else {
			for _, f := range def.clearOnFalse {
				d.fields[f] = nil
			}
		}
		return d
	case shapePhoto:
		if in.Kind == KindPhoto && in.Attachment != nil {
			return fetch(MediaPhoto)
		}
	case shapeVoice:
		if in.Kind == KindVoice && in.Attachment != nil {
			return fetch(MediaVoice)
		}
	case shapeDocument:
		if in.Kind == KindDocument && in.Attachment != nil && validate.DocumentName(in.Attachment.FileName) {
			return fetch(MediaDocument)
		}
	}
	return invalid
}

func (e *Engine) formStep(ctx context.Context, t *turn, step Step) (string, error) {
	def := steps[step]
	d := e.decide(def, t.in)

	switch d.outcome {
	case outcomeInvalid:
		t.say(Message{Text: e.bundle.T(t.lang, "application."+string(step)+".invalid"), Keyboard: e.keyboard(step, t.lang)})
		return outcomeInvalid, nil
	case outcomeBack:
		return e.back(ctx, t, step)
	}

	fields := d.fields
	var fetched string
	if d.attachment != nil {
		if e.fetcher == nil {
			return "", errors.New("no fetcher configured for attachments")
		}
		p, err := e.fetcher.Fetch(ctx, t.in.UserID, string(d.mediaKind), d.attachment.FileID, d.attachment.FileName)
		if err != nil {
			e.logger.Warn("attachment download failed",
				slog.Int64("user_id", t.in.UserID),
				slog.String("step", string(step)),
				slog.Any("err", err),
			)
			metrics.Error("wizard", "download")
			t.say(Message{Text: e.bundle.T(t.lang, "errors.download_failed")}, e.ask(step, t.lang))
			return "download_failed", nil
		}
		fetched = p
		fields = models.FieldSet{def.field: p}
	}

	// the file an attachment step overwrites or clears
	var replaced string
	if def.shape.attachment() {
		replaced = e.storedPath(ctx, t.sess.DraftID, def.field)
	}

	sess := cloneSession(t.sess)
	sess.Step = string(d.next)
	if d.flag != "" {
		sess.SetFlag(d.flag, d.flagValue)
	}
	if err := e.store.CommitStep(ctx, t.sess.DraftID, fields, sess); err != nil {
		if fetched != "" {
			e.fetcher.Remove(fetched)
		}
		if errors.Is(err, repository.ErrNotEditable) {
			e.logger.Warn("session references a non-draft application",
				slog.Int64("user_id", t.in.UserID),
				slog.Int64("draft_id", t.sess.DraftID),
			)
			t.say(Message{Text: e.bundle.T(t.lang, "errors.general")})
			return e.toMenu(ctx, t, "stale")
		}
		return "", fmt.Errorf("commit step %s: %w", step, err)
	}
	if replaced != "" && replaced != fetched {
		e.removeMedia(replaced)
	}
	t.sess = sess

	if d.next == StepConfirmation {
		draft, err := e.store.Get(ctx, sess.DraftID)
		if err != nil {
			return "", fmt.Errorf("load draft for confirmation: %w", err)
		}
		if draft == nil {
			return "", fmt.Errorf("draft %d vanished after commit", sess.DraftID)
		}
		t.say(e.screen(draft, t.lang)...)
		return d.outcome, nil
	}
	t.say(e.ask(d.next, t.lang))
	return d.outcome, nil
}

// back rewinds one step without persisting anything. Fork steps consult the
// session flag, then the draft when the flag is missing.
func (e *Engine) back(ctx context.Context, t *turn, step Step) (string, error) {
	prev, known := previous(step, t.sess)
	if !known {
		draft, err := e.store.Get(ctx, t.sess.DraftID)
		if err != nil {
			return "", fmt.Errorf("load draft for back: %w", err)
		}
		if draft == nil {
			t.say(Message{Text: e.bundle.T(t.lang, "errors.general")})
			return e.toMenu(ctx, t, "stale")
		}
		prev = forkFromDraft(step, draft)
	}
	if prev == StepMenu {
		return e.toMenu(ctx, t, "exit")
	}

	sess := cloneSession(t.sess)
	sess.Step = string(prev)
	if err := e.store.SaveSession(ctx, sess); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}
	t.sess = sess
	t.say(e.ask(prev, t.lang))
	return outcomeBack, nil
}

// ask renders the prompt for a form step.
func (e *Engine) ask(step Step, lang string) Message {
	return Message{Text: e.bundle.T(lang, "application."+string(step)+".ask"), Keyboard: e.keyboard(step, lang)}
}

func (e *Engine) keyboard(step Step, lang string) *Keyboard {
	def, ok := steps[step]
	if !ok {
		return nil
	}
	var rows [][]Button
	switch def.shape {
	case shapeChoice:
		var row []Button
		for _, c := range def.choices {
			row = append(row, Button{Text: e.bundle.T(lang, c.key)})
			if len(row) == 2 {
				rows = append(rows, row)
				row = nil
			}
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	case shapeBool:
		rows = append(rows, []Button{{Text: e.bundle.Button(lang, "yes")}, {Text: e.bundle.Button(lang, "no")}})
	case shapePhone:
		rows = append(rows, []Button{{Text: e.bundle.Button(lang, "send_phone"), RequestContact: true}})
	}
	nav := []Button{{Text: e.bundle.Button(lang, "back")}}
	if def.optional {
		nav = append(nav, Button{Text: e.bundle.Button(lang, "skip")})
	}
	return &Keyboard{Rows: append(rows, nav)}
}

func (e *Engine) storedPath(ctx context.Context, draftID int64, f models.Field) string {
	draft, err := e.store.Get(ctx, draftID)
	if err != nil || draft == nil {
		return ""
	}
	var p *string
	switch f {
	case models.FieldPhotoPath:
		p = draft.PhotoPath
	case models.FieldResumePath:
		p = draft.ResumePath
	case models.FieldRussianVoicePath:
		p = draft.RussianVoicePath
	case models.FieldEnglishVoicePath:
		p = draft.EnglishVoicePath
	}
	if p == nil {
		return ""
	}
	return *p
}

func (e *Engine) removeMedia(paths ...string) {
	if e.fetcher != nil && len(paths) > 0 {
		e.fetcher.Remove(paths...)
	}
}
