package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"

	"github.com/garnizeh/hrbot/api"
	"github.com/garnizeh/hrbot/internal/i18n"
	"github.com/garnizeh/hrbot/internal/jobs"
	"github.com/garnizeh/hrbot/internal/media"
	"github.com/garnizeh/hrbot/internal/notify"
	"github.com/garnizeh/hrbot/internal/screening"
	"github.com/garnizeh/hrbot/internal/transport/telegram"
	"github.com/garnizeh/hrbot/internal/wizard"
	"github.com/garnizeh/hrbot/locales"
	"github.com/garnizeh/hrbot/pkg/ollama"
)

var skipMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bot, the job workers and the review API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "Do not apply migrations on start")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if cfg.Telegram.Token == "" {
		return errors.New("telegram.token is required (HRBOT_TELEGRAM_TOKEN)")
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting hrbot", slog.String("version", version), slog.String("build_time", buildTime))

	store, err := openBackend(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("close database", slog.Any("err", err))
		}
	}()
	if !skipMigrate {
		if err := store.migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	bundle, err := i18n.Load(ctx, locales.FS, cfg.Wizard.DefaultLanguage)
	if err != nil {
		return fmt.Errorf("load locales: %w", err)
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	bot.Debug = cfg.Telegram.Debug
	logger.Info("telegram authorized", slog.String("bot", bot.Self.UserName))

	if err := os.MkdirAll(cfg.Media.Dir, 0o750); err != nil {
		return fmt.Errorf("media dir: %w", err)
	}
	files := media.NewStore(cfg.Media.Dir, cfg.Media.MaxBytes, telegram.FileSource(bot), logger)

	notifier := notify.NewNotifier(store, cfg.Jobs.MaxAttempts, logger)
	engine := wizard.NewEngine(store, bundle, logger,
		wizard.WithFetcher(files),
		wizard.WithNotifier(notifier),
	)

	pool := jobs.NewWorkerPool(store, nil, logger, cfg.Jobs.Workers)
	pool.SetPollInterval(cfg.Jobs.PollInterval)
	pool.SetMaxAttempts(cfg.Jobs.MaxAttempts)

	var sinks []notify.Sink
	if cfg.Telegram.HRChatID != 0 {
		sinks = append(sinks, notify.NewTelegramSink(bot, cfg.Telegram.HRChatID))
	}
	if cfg.Discord.Token != "" {
		dg, err := discordgo.New("Bot " + cfg.Discord.Token)
		if err != nil {
			return fmt.Errorf("discord: %w", err)
		}
		sinks = append(sinks, notify.NewDiscordSink(dg, cfg.Discord.ChannelID))
	}
	if len(sinks) == 0 {
		logger.Warn("no HR notification sink configured; submissions are stored only")
	}
	notify.NewHandlers(store, bundle, sinks, bot, notify.HandlersConfig{
		HRLanguage:  cfg.Wizard.HRLanguage,
		Screening:   cfg.Screening.Enabled,
		MaxAttempts: cfg.Jobs.MaxAttempts,
	}, logger).Register(pool)

	var reloader api.SchemaReloader
	if cfg.Screening.Enabled {
		ollama.SetLogger(logger)
		oc := cfg.Ollama
		oc.Model = cfg.Screening.Model
		client, err := ollama.NewDefaultClient(oc)
		if err != nil {
			return fmt.Errorf("ollama: %w", err)
		}
		defer client.Close()
		if err := client.Health(ctx); err != nil {
			logger.Warn("ollama not ready; screening jobs will retry", slog.Any("err", err))
		}
		screener, err := screening.New(ctx, client, store, screening.Config{
			Model:    cfg.Screening.Model,
			Template: cfg.Screening.Template,
			Version:  cfg.Screening.Version,
			Timeout:  cfg.Screening.Timeout,
		}, logger)
		if err != nil {
			return fmt.Errorf("screening: %w", err)
		}
		screener.Register(pool)
		reloader = screener
	}

	api.SetLogger(logger)
	server := &http.Server{
		Addr: cfg.Addr,
		Handler: api.SetupRoutes(cfg, version, buildTime, api.Deps{
			Store:    store,
			Events:   notifier,
			Reloader: reloader,
		}),
		ReadTimeout:  cfg.APITimeout,
		WriteTimeout: cfg.APITimeout,
		IdleTimeout:  60 * time.Second,
	}

	transport := telegram.New(bot, engine, bundle, telegram.Config{
		PollTimeout:   cfg.Telegram.PollTimeout,
		Workers:       cfg.Telegram.Workers,
		RateLimit:     cfg.Telegram.RateLimit,
		RateBurst:     cfg.Telegram.RateBurst,
		UpdateTimeout: cfg.Telegram.UpdateTimeout,
	}, logger)

	pool.Start(ctx)

	errs := make(chan error, 2)
	go func() {
		logger.Info("http server starting", slog.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("http server: %w", err)
		}
	}()
	polling := make(chan struct{})
	go func() {
		defer close(polling)
		if err := transport.Run(ctx); err != nil {
			errs <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case runErr = <-errs:
		logger.Error("component failed, shutting down", slog.Any("err", runErr))
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", slog.Any("err", err))
	}
	<-polling
	pool.Stop()
	logger.Info("hrbot stopped")
	return runErr
}
