package config

import "time"

const (
	// Collaborator policy: one bounded retry at most.
	MaxCollaboratorRetries = 1

	// Telegram limits
	MaxTelegramMessageLen = 4096

	// Start command token
	StartCommand = "/start"

	// Source tag on evaluations and campaigns
	ChannelTelegram = "telegram"

	// CRM
	CRMRequestTimeout = 5 * time.Second
	CRMContextWindow  = 30 * 24 * time.Hour
	CustomerCacheTTL  = 1 * time.Hour

	// LLM. The request timeout is further capped by COLLABORATOR_TIMEOUT.
	LLMRequestTimeout  = 30 * time.Second
	ReplyMaxTokens     = 300
	ClarifyMaxTokens   = 150
	SummaryMaxTokens   = 150
	SentimentMaxTokens = 300

	// HTTP server
	ServerReadTimeout     = 15 * time.Second
	ServerWriteTimeout    = 30 * time.Second
	ServerShutdownTimeout = 10 * time.Second

	// Alert delivery
	AlertSendTimeout = 10 * time.Second

	// Audit rows are written detached from the turn's deadline
	AuditWriteTimeout = 5 * time.Second

	// Default operator id when the dashboard sends none
	DefaultOperatorID = "gestor"
)
