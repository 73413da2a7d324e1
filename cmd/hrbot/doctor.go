package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/bwmarrin/discordgo"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"

	"github.com/garnizeh/hrbot/internal/i18n"
	"github.com/garnizeh/hrbot/locales"
	"github.com/garnizeh/hrbot/pkg/ollama"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration and connectivity",
	Long:  `Verify the database, locales, media directory and every configured external service.`,
	RunE:  runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

// check is one doctor probe. Optional checks only warn.
type check struct {
	name     string
	optional bool
	skip     string
	run      func(ctx context.Context) (string, error)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "→ Checking hrbot setup (%s)\n\n", cfg.Env)
	if ok := runChecks(ctx, out, doctorChecks()); !ok {
		return fmt.Errorf("setup issues detected")
	}
	fmt.Fprintln(out, "\n✓ Setup OK")
	return nil
}

func runChecks(ctx context.Context, out io.Writer, checks []check) bool {
	allGood := true
	for _, c := range checks {
		if c.skip != "" {
			fmt.Fprintf(out, "○ %s skipped (%s)\n", c.name, c.skip)
			continue
		}
		detail, err := c.run(ctx)
		switch {
		case err == nil:
			fmt.Fprintf(out, "✓ %s %s\n", c.name, detail)
		case c.optional:
			fmt.Fprintf(out, "⚠ %s: %v\n", c.name, err)
		default:
			fmt.Fprintf(out, "✗ %s: %v\n", c.name, err)
			allGood = false
		}
	}
	return allGood
}

func doctorChecks() []check {
	checks := []check{
		{name: "database", run: func(ctx context.Context) (string, error) {
			b, err := openBackend(ctx, cfg.Database, logger)
			if err != nil {
				return "", err
			}
			defer b.Close()
			if err := b.Ping(ctx); err != nil {
				return "", err
			}
			return cfg.Database.Driver, nil
		}},
		{name: "locales", run: func(ctx context.Context) (string, error) {
			b, err := i18n.Load(ctx, locales.FS, cfg.Wizard.DefaultLanguage)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%v", b.Languages()), nil
		}},
		{name: "media dir", run: func(ctx context.Context) (string, error) {
			if err := os.MkdirAll(cfg.Media.Dir, 0o750); err != nil {
				return "", err
			}
			f, err := os.CreateTemp(cfg.Media.Dir, ".doctor-*")
			if err != nil {
				return "", fmt.Errorf("not writable: %w", err)
			}
			f.Close()
			os.Remove(f.Name())
			abs, _ := filepath.Abs(cfg.Media.Dir)
			return abs, nil
		}},
		{name: "telegram", run: func(ctx context.Context) (string, error) {
			if cfg.Telegram.Token == "" {
				return "", fmt.Errorf("HRBOT_TELEGRAM_TOKEN not set")
			}
			bot, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
			if err != nil {
				return "", err
			}
			return "@" + bot.Self.UserName, nil
		}},
	}

	hr := check{name: "telegram HR chat", optional: true, run: func(ctx context.Context) (string, error) {
		if cfg.Telegram.HRChatID == 0 {
			return "", fmt.Errorf("HRBOT_HR_CHAT_ID not set, HR is not notified on Telegram")
		}
		return fmt.Sprintf("%d", cfg.Telegram.HRChatID), nil
	}}
	checks = append(checks, hr)

	dc := check{name: "discord", run: func(ctx context.Context) (string, error) {
		s, err := discordgo.New("Bot " + cfg.Discord.Token)
		if err != nil {
			return "", err
		}
		u, err := s.User("@me", discordgo.WithContext(ctx))
		if err != nil {
			return "", err
		}
		ch, err := s.Channel(cfg.Discord.ChannelID, discordgo.WithContext(ctx))
		if err != nil {
			return "", fmt.Errorf("channel %s: %w", cfg.Discord.ChannelID, err)
		}
		return fmt.Sprintf("%s → #%s", u.Username, ch.Name), nil
	}}
	if cfg.Discord.Token == "" {
		dc.skip = "no token"
	}
	checks = append(checks, dc)

	oc := check{name: "ollama", run: func(ctx context.Context) (string, error) {
		c, err := ollama.NewDefaultClient(cfg.Ollama)
		if err != nil {
			return "", err
		}
		defer c.Close()
		if err := c.Health(ctx); err != nil {
			return "", err
		}
		models, err := c.ListModels(ctx)
		if err != nil {
			return "", err
		}
		for _, m := range models {
			if m.Name == cfg.Screening.Model {
				return cfg.Screening.Model, nil
			}
		}
		return "", fmt.Errorf("model %s not pulled", cfg.Screening.Model)
	}}
	if !cfg.Screening.Enabled {
		oc.skip = "screening disabled"
	}
	return append(checks, oc)
}
