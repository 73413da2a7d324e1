package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bwmarrin/discordgo"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/garnizeh/hrbot/internal/jobs"
)

// Message is one HR notification. Text is Telegram-flavoured HTML.
type Message struct {
	Text  string
	Photo string
}

// Sink is one delivery channel.
type Sink interface {
	Name() string
	Send(ctx context.Context, m Message) error
}

// TelegramSender is the part of *tgbotapi.BotAPI the sinks use.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSink posts to one chat, usually the HR group.
type TelegramSink struct {
	bot    TelegramSender
	chatID int64
}

func NewTelegramSink(bot TelegramSender, chatID int64) *TelegramSink {
	return &TelegramSink{bot: bot, chatID: chatID}
}

func (s *TelegramSink) Name() string { return "telegram" }

func (s *TelegramSink) Send(ctx context.Context, m Message) error {
	msg := tgbotapi.NewMessage(s.chatID, m.Text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := s.bot.Send(msg); err != nil {
		return telegramError(err)
	}
	if m.Photo == "" {
		return nil
	}
	if _, err := os.Stat(m.Photo); err != nil {
		// the text went out; a vanished file is not worth a retry
		return nil
	}
	if _, err := s.bot.Send(tgbotapi.NewPhoto(s.chatID, tgbotapi.FilePath(m.Photo))); err != nil {
		return telegramError(err)
	}
	return nil
}

// telegramError marks client errors, such as a bot blocked by the user, as
// permanent.
func telegramError(err error) error {
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) && tgErr.Code >= 400 && tgErr.Code < 500 && tgErr.Code != 429 {
		return fmt.Errorf("%w: telegram: %v", jobs.ErrPermanent, err)
	}
	return fmt.Errorf("telegram: %w", err)
}

// DiscordSender is the part of *discordgo.Session the sink uses.
type DiscordSender interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordSink posts to one channel.
type DiscordSink struct {
	session   DiscordSender
	channelID string
}

func NewDiscordSink(session DiscordSender, channelID string) *DiscordSink {
	return &DiscordSink{session: session, channelID: channelID}
}

func (s *DiscordSink) Name() string { return "discord" }

// discord rejects longer message content
const discordLimit = 2000

func (s *DiscordSink) Send(ctx context.Context, m Message) error {
	data := &discordgo.MessageSend{Content: truncate(Markdown(m.Text), discordLimit)}
	if m.Photo != "" {
		f, err := os.Open(m.Photo)
		if err == nil {
			defer f.Close()
			data.Files = []*discordgo.File{{Name: filepath.Base(m.Photo), ContentType: "image/jpeg", Reader: f}}
		}
	}
	if _, err := s.session.ChannelMessageSendComplex(s.channelID, data, discordgo.WithContext(ctx)); err != nil {
		var restErr *discordgo.RESTError
		if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode >= 400 && restErr.Response.StatusCode < 500 && restErr.Response.StatusCode != 429 {
			return fmt.Errorf("%w: discord: %v", jobs.ErrPermanent, err)
		}
		return fmt.Errorf("discord: %w", err)
	}
	return nil
}

var (
	tagReplacer = strings.NewReplacer("<b>", "**", "</b>", "**", "<i>", "_", "</i>", "_", "<code>", "`", "</code>", "`")
	anyTag      = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)
)

// Markdown converts the small HTML subset used in bot texts to Discord
// markdown.
func Markdown(s string) string {
	s = tagReplacer.Replace(s)
	s = anyTag.ReplaceAllString(s, "")
	return html.UnescapeString(s)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
