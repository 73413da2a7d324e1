package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/garnizeh/hrbot/internal/wizard"
)

// toInput classifies a private message for the engine.
func toInput(msg *tgbotapi.Message) wizard.Input {
	in := wizard.Input{
		UserID: msg.From.ID,
		ChatID: msg.Chat.ID,
		Kind:   wizard.KindOther,
		Profile: wizard.Profile{
			FirstName:    msg.From.FirstName,
			LastName:     msg.From.LastName,
			Username:     msg.From.UserName,
			LanguageCode: msg.From.LanguageCode,
		},
	}

	switch {
	case msg.IsCommand():
		in.Kind = wizard.KindCommand
		in.Text = msg.Command()
	case msg.Contact != nil:
		// only the sender's own number counts
		if msg.Contact.UserID == 0 || msg.Contact.UserID == msg.From.ID {
			in.Kind = wizard.KindContact
			in.Phone = msg.Contact.PhoneNumber
		}
	case len(msg.Photo) > 0:
		// sizes are ordered smallest first
		p := msg.Photo[len(msg.Photo)-1]
		in.Kind = wizard.KindPhoto
		in.Attachment = &wizard.Attachment{FileID: p.FileID, MimeType: "image/jpeg", Size: int64(p.FileSize)}
	case msg.Voice != nil:
		in.Kind = wizard.KindVoice
		in.Attachment = &wizard.Attachment{FileID: msg.Voice.FileID, MimeType: msg.Voice.MimeType, Size: int64(msg.Voice.FileSize)}
	case msg.Document != nil:
		d := msg.Document
		in.Kind = wizard.KindDocument
		in.Attachment = &wizard.Attachment{FileID: d.FileID, FileName: d.FileName, MimeType: d.MimeType, Size: int64(d.FileSize)}
	case msg.Text != "":
		in.Kind = wizard.KindText
		in.Text = msg.Text
	}
	return in
}
