// Package config loads application configuration from environment variables.
// All variables use the QUIZ_ prefix. A .env file in the working directory is
// read first; variables already set in the environment take precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const minSessionSecretLen = 32

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Quiz     QuizConfig
	Cache    CacheConfig
	Database DatabaseConfig
	Events   EventsConfig
	Telegram TelegramConfig
	Web      WebConfig
	Terminal TerminalConfig
	Export   ExportConfig
	Log      LogConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int
	Host string
}

// QuizConfig holds the question source and grader settings.
type QuizConfig struct {
	APIURL             string
	QuestionsFile      string // JSON or YAML file used instead of the API for questions
	RequestTimeout     time.Duration
	SessionIdleTimeout time.Duration
}

// CacheConfig holds Dragonfly/Redis connection settings.
type CacheConfig struct {
	URL string // empty means an in-process cache
	TTL time.Duration
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
}

// EventsConfig holds the local event store used when no database is configured.
type EventsConfig struct {
	SQLitePath string
}

// TelegramConfig holds Telegram Bot API settings.
type TelegramConfig struct {
	BotToken string
}

// WebConfig holds the browser view settings.
type WebConfig struct {
	Enabled       bool
	SessionSecret string
}

// TerminalConfig enables the stdin/stdout view.
type TerminalConfig struct {
	Enabled bool
}

// ExportConfig holds report export settings.
type ExportConfig struct {
	Dir string
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables with QUIZ_ prefix.
// Optional dotenv files may be given; by default ".env" is read if present.
func Load(dotenvFiles ...string) (*Config, error) {
	if err := loadDotenv(dotenvFiles); err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("QUIZ_SERVER_PORT", 8080),
			Host: envStr("QUIZ_SERVER_HOST", "0.0.0.0"),
		},
		Quiz: QuizConfig{
			APIURL:             envStr("QUIZ_API_URL", "http://localhost:5000"),
			QuestionsFile:      envStr("QUIZ_QUESTIONS_FILE", ""),
			RequestTimeout:     time.Duration(envInt("QUIZ_REQUEST_TIMEOUT_SECONDS", 10)) * time.Second,
			SessionIdleTimeout: time.Duration(envInt("QUIZ_SESSION_IDLE_MINUTES", 120)) * time.Minute,
		},
		Cache: CacheConfig{
			URL: envStr("QUIZ_CACHE_URL", ""),
			TTL: time.Duration(envInt("QUIZ_CACHE_TTL_SECONDS", 300)) * time.Second,
		},
		Database: DatabaseConfig{
			URL:      envStr("QUIZ_DATABASE_URL", ""),
			MaxConns: envInt("QUIZ_DATABASE_MAX_CONNS", 10),
			MinConns: envInt("QUIZ_DATABASE_MIN_CONNS", 1),
		},
		Events: EventsConfig{
			SQLitePath: envStr("QUIZ_EVENTS_SQLITE_PATH", ""),
		},
		Telegram: TelegramConfig{
			BotToken: envStr("QUIZ_TELEGRAM_BOT_TOKEN", ""),
		},
		Web: WebConfig{
			Enabled:       envBool("QUIZ_WEB_ENABLED", true),
			SessionSecret: envStr("QUIZ_WEB_SESSION_SECRET", ""),
		},
		Terminal: TerminalConfig{
			Enabled: envBool("QUIZ_TERMINAL_ENABLED", false),
		},
		Export: ExportConfig{
			Dir: envStr("QUIZ_EXPORT_DIR", "./exports"),
		},
		Log: LogConfig{
			Level:  envStr("QUIZ_LOG_LEVEL", "info"),
			Format: envStr("QUIZ_LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

func loadDotenv(files []string) error {
	explicit := len(files) > 0
	if !explicit {
		files = []string{".env"}
	}
	if err := godotenv.Load(files...); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading dotenv: %w", err)
	}
	return nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	// Grading always goes through the API, even when questions come from a file.
	if err := validateHTTPURL(c.Quiz.APIURL); err != nil {
		return fmt.Errorf("QUIZ_API_URL: %w", err)
	}

	if !c.HasChannel() {
		return fmt.Errorf("at least one view must be enabled (QUIZ_TELEGRAM_BOT_TOKEN, QUIZ_WEB_ENABLED or QUIZ_TERMINAL_ENABLED)")
	}

	// An unset secret falls back to a per-process random key.
	if c.Web.Enabled && c.Web.SessionSecret != "" && len(c.Web.SessionSecret) < minSessionSecretLen {
		return fmt.Errorf("QUIZ_WEB_SESSION_SECRET must be empty or at least %d characters, got %d", minSessionSecretLen, len(c.Web.SessionSecret))
	}

	if c.Quiz.RequestTimeout <= 0 {
		return fmt.Errorf("QUIZ_REQUEST_TIMEOUT_SECONDS must be positive")
	}

	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("QUIZ_LOG_FORMAT must be 'json' or 'text', got %q", c.Log.Format)
	}

	if _, err := parseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("QUIZ_LOG_LEVEL: %w", err)
	}

	return nil
}

// HasChannel returns true if at least one view is configured.
func (c *Config) HasChannel() bool {
	return c.Telegram.BotToken != "" || c.Web.Enabled || c.Terminal.Enabled
}

// NewLogger builds the process logger described by the log settings.
func (l LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(l.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown level %q", s)
	}
	return level, nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("must be an http(s) URL, got %q", raw)
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.EqualFold(v, "true") || v == "1"
	}
	return fallback
}
