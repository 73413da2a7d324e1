package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/garnizeh/hrbot/pkg/ollama"
)

const insecureJWTSecret = "supersecretkey"

type Config struct {
	Env           string        `yaml:"env"`
	Addr          string        `yaml:"addr"`
	JWTSecret     string        `yaml:"jwt_secret"`
	APITimeout    time.Duration `yaml:"timeout"`
	TokenDuration time.Duration `yaml:"token_duration"`

	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Discord   DiscordConfig   `yaml:"discord"`
	Media     MediaConfig     `yaml:"media"`
	Wizard    WizardConfig    `yaml:"wizard"`
	Jobs      JobsConfig      `yaml:"jobs"`
	Ollama    ollama.Config   `yaml:"ollama"`
	Screening ScreeningConfig `yaml:"screening"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type DatabaseConfig struct {
	// Driver is sqlite or postgres.
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"`
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"max_conns"`
}

type TelegramConfig struct {
	Token string `yaml:"token"`
	// HRChatID receives submission notifications; zero disables the sink.
	HRChatID      int64         `yaml:"hr_chat_id"`
	PollTimeout   int           `yaml:"poll_timeout"`
	Workers       int           `yaml:"workers"`
	RateLimit     float64       `yaml:"rate_limit"`
	RateBurst     int           `yaml:"rate_burst"`
	UpdateTimeout time.Duration `yaml:"update_timeout"`
	Debug         bool          `yaml:"debug"`
}

// DiscordConfig is optional; an empty token disables the sink.
type DiscordConfig struct {
	Token     string `yaml:"token"`
	ChannelID string `yaml:"channel_id"`
}

type MediaConfig struct {
	Dir      string `yaml:"dir"`
	MaxBytes int64  `yaml:"max_bytes"`
}

type WizardConfig struct {
	DefaultLanguage string `yaml:"default_language"`
	// HRLanguage renders notifications for HR.
	HRLanguage string `yaml:"hr_language"`
}

type JobsConfig struct {
	Workers      int           `yaml:"workers"`
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxAttempts  int           `yaml:"max_attempts"`
}

type ScreeningConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Model    string        `yaml:"model"`
	Template string        `yaml:"template"`
	Version  string        `yaml:"version"`
	Timeout  time.Duration `yaml:"timeout"`
}

// LoadConfig builds the configuration from HRBOT_* environment variables and
// then applies the YAML file at path, if any.
func LoadConfig(path string) (*Config, error) {
	oc := ollama.DefaultConfig()
	oc.BaseURL = getEnv("HRBOT_OLLAMA_URL", oc.BaseURL)
	oc.Model = getEnv("HRBOT_OLLAMA_MODEL", oc.Model)

	cfg := &Config{
		Env:           getEnv("HRBOT_ENV", "production"),
		Addr:          getEnv("HRBOT_ADDR", ":8080"),
		JWTSecret:     getEnv("HRBOT_JWT_SECRET", insecureJWTSecret),
		APITimeout:    15 * time.Second,
		TokenDuration: 1 * time.Hour,
		Log: LogConfig{
			Level:  getEnv("HRBOT_LOG_LEVEL", "info"),
			Format: getEnv("HRBOT_LOG_FORMAT", "text"),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("HRBOT_DB_DRIVER", "sqlite"),
			Path:     getEnv("HRBOT_DB_PATH", "hrbot.db"),
			DSN:      getEnv("HRBOT_DB_DSN", ""),
			MaxConns: 10,
		},
		Telegram: TelegramConfig{
			Token:         getEnv("HRBOT_TELEGRAM_TOKEN", ""),
			HRChatID:      getEnvInt64("HRBOT_HR_CHAT_ID", 0),
			PollTimeout:   30,
			Workers:       8,
			RateLimit:     1,
			RateBurst:     3,
			UpdateTimeout: 60 * time.Second,
		},
		Discord: DiscordConfig{
			Token:     getEnv("HRBOT_DISCORD_TOKEN", ""),
			ChannelID: getEnv("HRBOT_DISCORD_CHANNEL_ID", ""),
		},
		Media: MediaConfig{
			Dir:      getEnv("HRBOT_MEDIA_DIR", "media"),
			MaxBytes: 20 << 20,
		},
		Wizard: WizardConfig{
			DefaultLanguage: getEnv("HRBOT_DEFAULT_LANGUAGE", "uz"),
		},
		Jobs: JobsConfig{
			Workers:      2,
			PollInterval: 500 * time.Millisecond,
			MaxAttempts:  5,
		},
		Ollama: oc,
		Screening: ScreeningConfig{
			Enabled:  getEnvBool("HRBOT_SCREENING_ENABLED", false),
			Template: "screening",
			Version:  "v1",
			Timeout:  2 * time.Minute,
		},
	}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		if err := dec.Decode(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Development reports whether insecure defaults are tolerated.
func (c *Config) Development() bool {
	env := c.Env
	if v := os.Getenv("HRBOT_ENV"); v != "" {
		env = v
	}
	switch strings.ToLower(env) {
	case "dev", "development", "test":
		return true
	}
	return false
}

// Validate fills zero values with defaults and rejects unusable settings.
func (c *Config) Validate() error {
	var errs []error

	switch {
	case c.JWTSecret == "":
		errs = append(errs, errors.New("jwt_secret is required"))
	case c.JWTSecret == insecureJWTSecret && !c.Development():
		errs = append(errs, errors.New("jwt_secret uses the insecure default outside development"))
	}
	if c.TokenDuration <= 0 {
		c.TokenDuration = time.Hour
	}
	if c.APITimeout <= 0 {
		c.APITimeout = 15 * time.Second
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q: want text or json", c.Log.Format))
	}

	switch c.Database.Driver {
	case "", "sqlite":
		c.Database.Driver = "sqlite"
		if c.Database.Path == "" {
			errs = append(errs, errors.New("database.path is required for sqlite"))
		}
	case "postgres":
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("database.dsn is required for postgres"))
		}
		if c.Database.MaxConns <= 0 {
			c.Database.MaxConns = 10
		}
	default:
		errs = append(errs, fmt.Errorf("database.driver %q: want sqlite or postgres", c.Database.Driver))
	}

	if c.Telegram.RateLimit < 0 {
		errs = append(errs, errors.New("telegram.rate_limit must not be negative"))
	}
	if c.Discord.Token != "" && c.Discord.ChannelID == "" {
		errs = append(errs, errors.New("discord.channel_id is required with discord.token"))
	}
	if c.Media.Dir == "" {
		errs = append(errs, errors.New("media.dir is required"))
	}
	if c.Media.MaxBytes <= 0 {
		c.Media.MaxBytes = 20 << 20
	}
	if c.Wizard.DefaultLanguage == "" {
		c.Wizard.DefaultLanguage = "uz"
	}

	if c.Jobs.Workers <= 0 {
		c.Jobs.Workers = 2
	}
	if c.Jobs.PollInterval <= 0 {
		c.Jobs.PollInterval = 500 * time.Millisecond
	}
	if c.Jobs.MaxAttempts <= 0 {
		c.Jobs.MaxAttempts = 5
	}

	def := ollama.DefaultConfig()
	if c.Ollama.BaseURL == "" {
		c.Ollama.BaseURL = def.BaseURL
	}
	if c.Ollama.Model == "" {
		c.Ollama.Model = def.Model
	}
	if c.Ollama.Timeout <= 0 {
		c.Ollama.Timeout = def.Timeout
	}
	if c.Ollama.Retries <= 0 {
		c.Ollama.Retries = def.Retries
	}
	if c.Ollama.Backoff <= 0 {
		c.Ollama.Backoff = def.Backoff
	}
	if c.Ollama.CircuitFailureThreshold <= 0 {
		c.Ollama.CircuitFailureThreshold = def.CircuitFailureThreshold
	}
	if c.Ollama.CircuitReset <= 0 {
		c.Ollama.CircuitReset = def.CircuitReset
	}

	if c.Screening.Model == "" {
		c.Screening.Model = c.Ollama.Model
	}
	if c.Screening.Enabled && c.Screening.Template == "" {
		errs = append(errs, errors.New("screening.template is required when screening is enabled"))
	}

	return errors.Join(errs...)
}

// SlogLevel parses the configured level; empty means info.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if l.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level %q: %w", l.Level, err)
	}
	return lvl, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}

func getEnvInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
