// Package config reads the server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	ExecutorPiston = "piston"
	ExecutorDocker = "docker"
)

type Config struct {
	Port   int    `envconfig:"PORT" default:"8080"`
	DBPath string `envconfig:"DB_PATH" default:"data/codecraft.db"`

	// Sessions
	JWTSecret  string        `envconfig:"JWT_SECRET" required:"true"`
	SessionTTL time.Duration `envconfig:"SESSION_TTL" default:"168h"`
	// CookieHashKey signs the OAuth state cookie. Falls back to JWTSecret.
	CookieHashKey string `envconfig:"COOKIE_HASH_KEY"`
	SecureCookies bool   `envconfig:"SECURE_COOKIES" default:"false"`

	// GitHub OAuth. Sign-in is disabled when the client id is empty.
	GitHubClientID     string `envconfig:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string `envconfig:"GITHUB_CLIENT_SECRET"`
	GitHubCallbackURL  string `envconfig:"GITHUB_CALLBACK_URL"`
	// FrontendURL is where the OAuth callback sends the browser afterwards.
	FrontendURL string `envconfig:"FRONTEND_URL" default:"/"`

	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"http://localhost:3000"`

	// Code execution
	Executor            string        `envconfig:"EXECUTOR" default:"piston"`
	PistonURL           string        `envconfig:"PISTON_URL" default:"https://emkc.org/api/v2/piston"`
	ExecutionTimeout    time.Duration `envconfig:"EXECUTION_TIMEOUT" default:"10s"`
	RuntimeSyncSchedule string        `envconfig:"RUNTIME_SYNC_SCHEDULE" default:"@every 6h"`

	// Newsletter mail. The welcome mail is skipped when the keys are empty.
	MailjetAPIKey     string `envconfig:"MAILJET_API_KEY"`
	MailjetSecretKey  string `envconfig:"MAILJET_SECRET_KEY"`
	MailjetSender     string `envconfig:"MAILJET_SENDER" default:"newsletter@codecraft.dev"`
	MailjetSenderName string `envconfig:"MAILJET_SENDER_NAME" default:"CodeCraft"`

	// Requests per minute per client IP.
	RateLimit       int `envconfig:"RATE_LIMIT" default:"300"`
	StrictRateLimit int `envconfig:"STRICT_RATE_LIMIT" default:"20"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads the given .env files (".env" when none are named), then binds
// the environment. Missing .env files are not an error; variables already
// set in the environment win over the files.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: loading %s: %w", f, err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.CookieHashKey == "" {
		cfg.CookieHashKey = cfg.JWTSecret
	}
	if cfg.GitHubCallbackURL == "" {
		cfg.GitHubCallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", cfg.Port)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.JWTSecret) < 16 {
		return errors.New("config: JWT_SECRET must be at least 16 characters")
	}
	switch c.Executor {
	case ExecutorPiston, ExecutorDocker:
	default:
		return fmt.Errorf("config: EXECUTOR must be %q or %q, got %q", ExecutorPiston, ExecutorDocker, c.Executor)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: invalid PORT %d", c.Port)
	}
	return nil
}

// GitHubEnabled reports whether GitHub sign-in is configured.
func (c *Config) GitHubEnabled() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}

// MailEnabled reports whether welcome mails can be sent.
func (c *Config) MailEnabled() bool {
	return c.MailjetAPIKey != "" && c.MailjetSecretKey != ""
}
