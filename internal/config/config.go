// Package config provides centralized configuration loaded from environment
// variables. Shared by cmd/worker, cmd/alerts and cmd/api.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Table names, matching schema.sql
// --------------------------------------------------------------------------

const (
	MatchesTable             = "matches"
	UsersTable               = "app_users"
	NotificationHistoryTable = "user_notification_history"
	EmailTemplatesTable      = "email_templates"
	EmailHistoryTable        = "email_notification_history"
	TrialSessionsTable       = "trial_sessions"
)

// --------------------------------------------------------------------------
// Config is populated from environment variables
// --------------------------------------------------------------------------

type Config struct {
	// Database
	DatabaseURL    string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration

	// Redis (push broadcast + trial jobs)
	RedisURL string

	// API server
	APIHost     string
	APIPort     int
	Environment string // development, staging, production
	AdminSecret string

	// CORS
	CORSAllowOrigins []string

	// Rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Site links
	SiteURL     string
	CheckoutURL string

	// Telegram
	TelegramBotToken string
	TelegramChatID   string

	// Push
	PushSendURL   string
	PushAPISecret string

	// SMTP
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	EmailFrom    string

	// Alert scheduler
	AlertInterval   time.Duration
	AlertWorkers    int
	DeliveryTimeout time.Duration

	// Live scores
	LiveInterval time.Duration
	ScoreAPIURL  string

	// Fixture ingestion
	FixtureInterval time.Duration
	FixtureAPIURL   string
	FixtureDays     int
	HighlightsURL   string

	// Trial jobs
	TrialPollInterval time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	dbURL := envOr("DATABASE_URL", "")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL must be set")
	}

	return &Config{
		DatabaseURL:    dbURL,
		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 2),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 10),
		DBPoolMaxLife:  time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,

		RedisURL: envOr("REDIS_URL", "redis://localhost:6379/0"),

		APIHost:     envOr("API_HOST", "0.0.0.0"),
		APIPort:     envInt("API_PORT", envInt("PORT", 8000)),
		Environment: envOr("ENVIRONMENT", "development"),
		AdminSecret: envOr("ADMIN_SECRET", ""),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:3000",
		}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   time.Duration(envInt("RATE_LIMIT_WINDOW", 60)) * time.Second,

		SiteURL:     strings.TrimRight(envOr("SITE_URL", "http://localhost:3000"), "/"),
		CheckoutURL: envOr("CHECKOUT_URL", "https://www.iptv.shopping/pricing"),

		TelegramBotToken: envOr("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   envOr("TELEGRAM_CHAT_ID", ""),

		PushSendURL:   envOr("PUSH_SEND_URL", ""),
		PushAPISecret: envOr("PUSH_API_SECRET", ""),

		SMTPHost:     envOr("SMTP_HOST", ""),
		SMTPPort:     envInt("SMTP_PORT", 587),
		SMTPUser:     envOr("SMTP_USER", ""),
		SMTPPassword: envOr("SMTP_PASS", ""),
		EmailFrom:    envOr("EMAIL_FROM", "IPTV SMARTERS PRO <alerts@localhost>"),

		AlertInterval:   envDuration("ALERT_INTERVAL", 5*time.Minute),
		AlertWorkers:    envInt("ALERT_WORKERS", 1),
		DeliveryTimeout: envDuration("DELIVERY_TIMEOUT", 15*time.Second),

		LiveInterval: envDuration("LIVE_INTERVAL", time.Minute),
		ScoreAPIURL:  envOr("SCORE_API_URL", "https://api.sofascore.com"),

		FixtureInterval: envDuration("FIXTURE_INTERVAL", time.Hour),
		FixtureAPIURL:   envOr("FIXTURE_API_URL", ""),
		FixtureDays:     envInt("FIXTURE_DAYS", 14),
		HighlightsURL:   envOr("HIGHLIGHTS_URL", "https://www.scorebat.com/video-api/v3/"),

		TrialPollInterval: envDuration("TRIAL_POLL_INTERVAL", 30*time.Second),
	}, nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// SiteLink joins a path onto the public site URL.
func (c *Config) SiteLink(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.SiteURL + path
}

// SMTPEnabled reports whether an SMTP relay is configured.
func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != ""
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
