package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/garnizeh/hrbot/internal/wizard"
)

// render converts a reply into Bot API requests, in order.
func render(r wizard.Reply) []tgbotapi.Chattable {
	var out []tgbotapi.Chattable
	for _, m := range r.Messages {
		if m.Media == nil {
			msg := tgbotapi.NewMessage(r.ChatID, m.Text)
			msg.ParseMode = tgbotapi.ModeHTML
			if m.Keyboard != nil {
				msg.ReplyMarkup = markup(m.Keyboard)
			}
			out = append(out, msg)
			continue
		}
		if m.Text != "" {
			msg := tgbotapi.NewMessage(r.ChatID, m.Text)
			msg.ParseMode = tgbotapi.ModeHTML
			out = append(out, msg)
		}
		out = append(out, mediaMessage(r.ChatID, m))
	}
	return out
}

func mediaMessage(chatID int64, m wizard.Message) tgbotapi.Chattable {
	file := tgbotapi.FilePath(m.Media.Path)
	var kb any
	if m.Keyboard != nil {
		kb = markup(m.Keyboard)
	}
	switch m.Media.Kind {
	case wizard.MediaPhoto:
		c := tgbotapi.NewPhoto(chatID, file)
		c.Caption, c.ParseMode, c.ReplyMarkup = m.Media.Caption, tgbotapi.ModeHTML, kb
		return c
	case wizard.MediaVoice:
		c := tgbotapi.NewVoice(chatID, file)
		c.Caption, c.ParseMode, c.ReplyMarkup = m.Media.Caption, tgbotapi.ModeHTML, kb
		return c
	default:
		c := tgbotapi.NewDocument(chatID, file)
		c.Caption, c.ParseMode, c.ReplyMarkup = m.Media.Caption, tgbotapi.ModeHTML, kb
		return c
	}
}

// markup builds a reply keyboard; an empty one removes the current keyboard.
func markup(kb *wizard.Keyboard) any {
	if len(kb.Rows) == 0 {
		return tgbotapi.NewRemoveKeyboard(false)
	}
	rows := make([][]tgbotapi.KeyboardButton, 0, len(kb.Rows))
	for _, r := range kb.Rows {
		row := make([]tgbotapi.KeyboardButton, 0, len(r))
		for _, b := range r {
			if b.RequestContact {
				row = append(row, tgbotapi.NewKeyboardButtonContact(b.Text))
			} else {
				row = append(row, tgbotapi.NewKeyboardButton(b.Text))
			}
		}
		rows = append(rows, row)
	}
	return tgbotapi.NewReplyKeyboard(rows...)
}
