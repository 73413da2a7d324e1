// Package telegram connects the wizard engine to the Telegram Bot API over
// long polling.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/garnizeh/hrbot/internal/i18n"
	"github.com/garnizeh/hrbot/internal/media"
	"github.com/garnizeh/hrbot/internal/metrics"
	"github.com/garnizeh/hrbot/internal/wizard"
	"github.com/garnizeh/hrbot/pkg/retry"
)

// API is the part of *tgbotapi.BotAPI the transport uses.
type API interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Handler turns one input into a reply. *wizard.Engine implements it.
type Handler interface {
	Handle(ctx context.Context, in wizard.Input) wizard.Reply
}

type Config struct {
	// PollTimeout is the long polling timeout in seconds.
	PollTimeout int
	// Workers bounds how many updates are handled at once across users.
	Workers int
	// RateLimit is messages per second per user; zero disables throttling.
	RateLimit     float64
	RateBurst     int
	UpdateTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		PollTimeout:   30,
		Workers:       8,
		RateLimit:     1,
		RateBurst:     3,
		UpdateTimeout: 60 * time.Second,
	}
}

type Bot struct {
	api     API
	handler Handler
	bundle  *i18n.Bundle
	cfg     Config
	limiter *limiter
	retry   retry.Config
	logger  *slog.Logger
}

func New(api API, handler Handler, bundle *i18n.Bundle, cfg Config, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = def.PollTimeout
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.UpdateTimeout <= 0 {
		cfg.UpdateTimeout = def.UpdateTimeout
	}
	b := &Bot{
		api:     api,
		handler: handler,
		bundle:  bundle,
		cfg:     cfg,
		retry:   retry.DefaultConfig(),
		logger:  logger,
	}
	if cfg.RateLimit > 0 {
		b.limiter = newLimiter(cfg.RateLimit, cfg.RateBurst)
	}
	return b
}

// Run polls for updates until ctx is cancelled. Updates from one user are
// handled in order and never wait on another user's; in-flight updates are
// allowed to finish on shutdown.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.PollTimeout
	u.AllowedUpdates = []string{"message"}
	updates := b.api.GetUpdatesChan(u)

	work := context.WithoutCancel(ctx)
	d := newDispatcher(b.cfg.Workers, func(upd tgbotapi.Update) {
		b.handleUpdate(work, upd)
	})
	defer d.wait()

	b.logger.Info("telegram polling started", slog.Int("workers", b.cfg.Workers), slog.Int("poll_timeout", b.cfg.PollTimeout))
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.logger.Info("telegram polling stopped")
			return nil
		case upd, ok := <-updates:
			if !ok {
				return errors.New("telegram: updates channel closed")
			}
			id := senderOf(upd)
			if !d.dispatch(id, upd) {
				metrics.Throttled()
				b.logger.Warn("update dropped, backlog full", slog.Int64("user_id", id))
			}
		}
	}
}

// senderOf keys an update by the user who sent it, falling back to the chat.
func senderOf(upd tgbotapi.Update) int64 {
	if u := upd.SentFrom(); u != nil {
		return u.ID
	}
	if chat := upd.FromChat(); chat != nil {
		return chat.ID
	}
	return 0
}

func (b *Bot) handleUpdate(ctx context.Context, upd tgbotapi.Update) {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.UpdateTimeout)
	defer cancel()

	msg := upd.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return
	}
	if !msg.Chat.IsPrivate() {
		b.leave(msg.Chat)
		return
	}
	if msg.From.IsBot {
		return
	}
	if isSpam(msg.Text) || isSpam(msg.Caption) {
		metrics.Error("telegram", "spam")
		b.logger.Info("spam dropped", slog.Int64("user_id", msg.From.ID))
		return
	}
	if b.limiter != nil {
		if ok, warn := b.limiter.allow(msg.From.ID); !ok {
			metrics.Throttled()
			if warn {
				lang := b.bundle.Resolve(msg.From.LanguageCode)
				b.send(ctx, tgbotapi.NewMessage(msg.Chat.ID, b.bundle.T(lang, "errors.throttled")))
			}
			return
		}
	}

	reply := b.handler.Handle(ctx, toInput(msg))
	for _, c := range render(reply) {
		if err := b.send(ctx, c); err != nil {
			b.logger.Error("send reply", slog.Int64("user_id", msg.From.ID), slog.Any("err", err))
			metrics.Error("telegram", "send")
			return
		}
	}
}

// leave quits group chats. Channel posts never reach here.
func (b *Bot) leave(chat *tgbotapi.Chat) {
	if !chat.IsGroup() && !chat.IsSuperGroup() {
		return
	}
	b.logger.Info("leaving non-private chat", slog.Int64("chat_id", chat.ID), slog.String("type", chat.Type))
	if _, err := b.api.Request(tgbotapi.LeaveChatConfig{ChatID: chat.ID}); err != nil {
		b.logger.Warn("leave chat", slog.Int64("chat_id", chat.ID), slog.Any("err", err))
	}
}

// send delivers one message, retrying rate limits and network failures.
func (b *Bot) send(ctx context.Context, c tgbotapi.Chattable) error {
	_, err := retry.Do(ctx, b.retry, func() (tgbotapi.Message, error) {
		m, err := b.api.Send(c)
		if err == nil {
			return m, nil
		}
		var tgErr *tgbotapi.Error
		if errors.As(err, &tgErr) && !retry.RetryableStatus(tgErr.Code) {
			return m, err
		}
		return m, retry.Retryable(err)
	})
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// FileSource resolves Telegram file ids to download URLs for the media
// store.
func FileSource(api API) media.Source {
	return media.SourceFunc(func(_ context.Context, fileID string) (string, error) {
		url, err := api.GetFileDirectURL(fileID)
		if err != nil {
			return "", fmt.Errorf("get file %s: %w", fileID, err)
		}
		return url, nil
	})
}
