package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/garnizeh/hrbot/internal/config"
)

func validConfig() *config.Config {
	return &config.Config{
		Addr:          ":8080",
		JWTSecret:     "strongsecret",
		APITimeout:    5 * time.Second,
		TokenDuration: 1 * time.Hour,
		Database:      config.DatabaseConfig{Driver: "sqlite", Path: "hrbot.db"},
		Media:         config.MediaConfig{Dir: "media"},
	}
}

func TestValidate_InsecureJWT_FailsWhenNotDevelopment(t *testing.T) {
	t.Setenv("HRBOT_ENV", "production")

	cfg := validConfig()
	cfg.JWTSecret = "supersecretkey"

	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected Validate to fail for insecure JWT in non-development env")
	}
}

func TestValidate_InsecureJWT_AllowsDevelopment(t *testing.T) {
	t.Setenv("HRBOT_ENV", "development")

	cfg := validConfig()
	cfg.JWTSecret = "supersecretkey"

	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected Validate to succeed in development env, got: %v", err)
	}
}

func TestValidate_Database(t *testing.T) {
	t.Setenv("HRBOT_ENV", "")

	tests := []struct {
		name    string
		db      config.DatabaseConfig
		wantErr bool
	}{
		{"sqlite", config.DatabaseConfig{Driver: "sqlite", Path: "x.db"}, false},
		{"empty driver means sqlite", config.DatabaseConfig{Path: "x.db"}, false},
		{"sqlite without path", config.DatabaseConfig{Driver: "sqlite"}, true},
		{"postgres", config.DatabaseConfig{Driver: "postgres", DSN: "postgres://localhost/hrbot"}, false},
		{"postgres without dsn", config.DatabaseConfig{Driver: "postgres"}, true},
		{"unknown driver", config.DatabaseConfig{Driver: "mysql", DSN: "x"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Database = tt.db
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_Rejects(t *testing.T) {
	t.Setenv("HRBOT_ENV", "")

	tests := []struct {
		name   string
		mutate func(c *config.Config)
		want   string
	}{
		{"empty jwt", func(c *config.Config) { c.JWTSecret = "" }, "jwt_secret"},
		{"log level", func(c *config.Config) { c.Log.Level = "loud" }, "log.level"},
		{"log format", func(c *config.Config) { c.Log.Format = "xml" }, "log.format"},
		{"negative rate", func(c *config.Config) { c.Telegram.RateLimit = -1 }, "rate_limit"},
		{"discord without channel", func(c *config.Config) { c.Discord.Token = "t" }, "discord.channel_id"},
		{"media dir", func(c *config.Config) { c.Media.Dir = "" }, "media.dir"},
		{"screening template", func(c *config.Config) {
			c.Screening.Enabled = true
			c.Screening.Template = ""
		}, "screening.template"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate() err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestValidate_DefaultsPopulated(t *testing.T) {
	t.Setenv("HRBOT_ENV", "development")

	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed unexpectedly: %v", err)
	}

	if cfg.Ollama.BaseURL == "" {
		t.Fatalf("expected Ollama.BaseURL to be populated, got empty")
	}
	if cfg.Ollama.Timeout <= 0 {
		t.Fatalf("expected Ollama.Timeout to be > 0")
	}
	if cfg.Ollama.Retries == 0 {
		t.Fatalf("expected Ollama.Retries default to be non-zero")
	}
	if cfg.Screening.Model != cfg.Ollama.Model {
		t.Fatalf("screening model = %q, want ollama model %q", cfg.Screening.Model, cfg.Ollama.Model)
	}
	if cfg.Jobs.Workers <= 0 || cfg.Jobs.MaxAttempts <= 0 || cfg.Jobs.PollInterval <= 0 {
		t.Fatalf("jobs defaults not populated: %+v", cfg.Jobs)
	}
	if cfg.Wizard.DefaultLanguage != "uz" {
		t.Fatalf("default language = %q", cfg.Wizard.DefaultLanguage)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	for _, k := range []string{"HRBOT_ADDR", "HRBOT_JWT_SECRET", "HRBOT_DB_DRIVER", "HRBOT_DB_PATH", "HRBOT_HR_CHAT_ID", "HRBOT_SCREENING_ENABLED"} {
		t.Setenv(k, "")
	}

	cfg, err := config.LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig returned error for empty path: %v", err)
	}

	if cfg.Addr != ":8080" {
		t.Fatalf("unexpected Addr: got %q want %q", cfg.Addr, ":8080")
	}
	if cfg.JWTSecret != "supersecretkey" {
		t.Fatalf("unexpected JWTSecret: got %q want %q", cfg.JWTSecret, "supersecretkey")
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.Path != "hrbot.db" {
		t.Fatalf("unexpected Database: %+v", cfg.Database)
	}
	if cfg.APITimeout != 15*time.Second {
		t.Fatalf("unexpected APITimeout: got %v want %v", cfg.APITimeout, 15*time.Second)
	}
	if cfg.TokenDuration != 1*time.Hour {
		t.Fatalf("unexpected TokenDuration: got %v want %v", cfg.TokenDuration, 1*time.Hour)
	}
	if cfg.Telegram.RateLimit != 1 || cfg.Telegram.Workers != 8 {
		t.Fatalf("unexpected Telegram defaults: %+v", cfg.Telegram)
	}
	if cfg.Screening.Enabled {
		t.Fatalf("screening enabled by default")
	}
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("HRBOT_HR_CHAT_ID", "-100123")
	t.Setenv("HRBOT_SCREENING_ENABLED", "true")
	t.Setenv("HRBOT_DB_DRIVER", "postgres")

	cfg, err := config.LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Telegram.HRChatID != -100123 {
		t.Fatalf("HRChatID = %d", cfg.Telegram.HRChatID)
	}
	if !cfg.Screening.Enabled {
		t.Fatalf("screening not enabled from env")
	}
	if cfg.Database.Driver != "postgres" {
		t.Fatalf("driver = %q", cfg.Database.Driver)
	}
}

func TestLoadConfig_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`addr: ":9090"
jwt_secret: "filekey"
timeout: "30s"
token_duration: "2h"
database:
  path: "test.db"
telegram:
  hr_chat_id: -42
  rate_limit: 0.5
ollama:
  model: "qwen2.5:7b"
  retries: 4
jobs:
  poll_interval: "2s"
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig returned error for file: %v", err)
	}

	if cfg.Addr != ":9090" {
		t.Fatalf("unexpected Addr: got %q want %q", cfg.Addr, ":9090")
	}
	if cfg.JWTSecret != "filekey" {
		t.Fatalf("unexpected JWTSecret: got %q want %q", cfg.JWTSecret, "filekey")
	}
	if cfg.Database.Path != "test.db" {
		t.Fatalf("unexpected Database.Path: got %q want %q", cfg.Database.Path, "test.db")
	}
	if cfg.APITimeout != 30*time.Second {
		t.Fatalf("unexpected APITimeout: got %v want %v", cfg.APITimeout, 30*time.Second)
	}
	if cfg.TokenDuration != 2*time.Hour {
		t.Fatalf("unexpected TokenDuration: got %v want %v", cfg.TokenDuration, 2*time.Hour)
	}
	if cfg.Telegram.HRChatID != -42 || cfg.Telegram.RateLimit != 0.5 {
		t.Fatalf("unexpected Telegram: %+v", cfg.Telegram)
	}
	if cfg.Telegram.Workers != 8 {
		t.Fatalf("file without telegram.workers dropped the default: %d", cfg.Telegram.Workers)
	}
	if cfg.Ollama.Model != "qwen2.5:7b" || cfg.Ollama.Retries != 4 {
		t.Fatalf("unexpected Ollama: %+v", cfg.Ollama)
	}
	if cfg.Ollama.BaseURL != "http://localhost:11434" {
		t.Fatalf("ollama base_url default lost: %q", cfg.Ollama.BaseURL)
	}
	if cfg.Jobs.PollInterval != 2*time.Second {
		t.Fatalf("unexpected PollInterval: %v", cfg.Jobs.PollInterval)
	}
}

func TestLoadConfig_BadPath(t *testing.T) {
	if _, err := config.LoadConfig("/path/that/does/not/exist.yaml"); err == nil {
		t.Fatalf("expected error for nonexistent path, got nil")
	}
}

func TestLoadConfig_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("::: not yaml :::"), 0o600); err != nil {
		t.Fatalf("failed to write bad yaml: %v", err)
	}

	if _, err := config.LoadConfig(path); err == nil {
		t.Fatalf("expected YAML decode error, got nil")
	}
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelInfo},
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := config.LogConfig{Level: tt.in}.SlogLevel()
		if err != nil || got != tt.want {
			t.Fatalf("SlogLevel(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
}
