package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// Core
	BotToken    string `env:"BOT_TOKEN,required"`
	DatabaseURL string `env:"DATABASE_URL,required"`

	// LLM (OpenAI-compatible endpoint)
	LLMAPIKey      string  `env:"LLM_API_KEY"`
	LLMBaseURL     string  `env:"LLM_BASE_URL" envDefault:"https://tess.pareto.io/api/agents/39004/openai"`
	LLMModel       string  `env:"LLM_MODEL" envDefault:"tess-5"`
	LLMTemperature float64 `env:"LLM_TEMPERATURE" envDefault:"0.8"`

	// CRM
	CRMBaseURL     string `env:"CRM_BASE_URL"`
	CRMToken       string `env:"CRM_TOKEN"`
	CRMEmailDomain string `env:"CRM_EMAIL_DOMAIN" envDefault:"exemplo.com"`

	// Server
	Port           int    `env:"PORT" envDefault:"8000"`
	WebhookURL     string `env:"WEBHOOK_URL"`
	WebhookSecret  string `env:"WEBHOOK_SECRET"`
	OperatorAPIKey string `env:"OPERATOR_API_KEY"`

	// Conversation
	SessionTTL             time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	SessionCleanupInterval time.Duration `env:"SESSION_CLEANUP_INTERVAL" envDefault:"1m"`
	CollaboratorTimeout    time.Duration `env:"COLLABORATOR_TIMEOUT" envDefault:"8s"`
	CollaboratorRetries    int           `env:"COLLABORATOR_RETRIES" envDefault:"1"`
	AskFeedbackFollowUp    bool          `env:"ASK_FEEDBACK_FOLLOWUP" envDefault:"false"`

	// Bot behavior
	RateLimitPerMinute int  `env:"RATE_LIMIT_PER_MINUTE" envDefault:"20"`
	DropPendingUpdates bool `env:"BOT_DROP_PENDING_UPDATES" envDefault:"false"`

	// Logging
	LogLevel           string `env:"LOG_LEVEL" envDefault:"info"`
	LogTelegramChatID  int64  `env:"LOG_TELEGRAM_CHAT_ID"`
	LogTopicError      int    `env:"LOG_TOPIC_ERROR"`
	LogTopicDetractor  int    `env:"LOG_TOPIC_DETRACTOR"`
	LogTopicManualMode int    `env:"LOG_TOPIC_MANUAL"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.CollaboratorRetries < 0 || cfg.CollaboratorRetries > MaxCollaboratorRetries {
		return nil, fmt.Errorf("parse config: COLLABORATOR_RETRIES must be between 0 and %d", MaxCollaboratorRetries)
	}
	if cfg.CollaboratorTimeout <= 0 {
		return nil, fmt.Errorf("parse config: COLLABORATOR_TIMEOUT must be positive")
	}
	return cfg, nil
}

// UseWebhook reports whether updates arrive by webhook instead of long polling.
func (c *Config) UseWebhook() bool {
	return c.WebhookURL != ""
}

func (c *Config) LLMEnabled() bool {
	return c.LLMAPIKey != ""
}

func (c *Config) CRMEnabled() bool {
	return c.CRMBaseURL != ""
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
