package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-telegram/bot"

	"github.com/set-night/npsbot/internal/config"
	"github.com/set-night/npsbot/internal/domain"
)

type LogType string

const (
	LogTypeError      LogType = "error"
	LogTypeDetractor  LogType = "detractor"
	LogTypeManualMode LogType = "manualMode"
)

// AlertLogger posts operational alerts into topics of the team's log chat.
type AlertLogger struct {
	bot MessageSender
	cfg *config.Config
	now func() time.Time
}

func NewAlertLogger(b MessageSender, cfg *config.Config) *AlertLogger {
	return &AlertLogger{bot: b, cfg: cfg, now: time.Now}
}

func (l *AlertLogger) Log(ctx context.Context, logType LogType, message string) {
	if l == nil || l.bot == nil || l.cfg.LogTelegramChatID == 0 {
		return
	}

	topicID := l.getTopicID(logType)
	if topicID == 0 {
		return
	}

	if len([]rune(message)) > config.MaxTelegramMessageLen {
		message = string([]rune(message)[:config.MaxTelegramMessageLen-20]) + "\n\n... (truncated)"
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), config.AlertSendTimeout)
	defer cancel()

	err := SendMarkdown(ctx, l.bot, &bot.SendMessageParams{
		ChatID:          l.cfg.LogTelegramChatID,
		Text:            message,
		MessageThreadID: topicID,
	})
	if err != nil {
		slog.Error("failed to send telegram log", "type", logType, "error", err)
	}
}

func (l *AlertLogger) LogError(ctx context.Context, err error, where string) {
	if l == nil || err == nil {
		return
	}
	msg := fmt.Sprintf("❌ *Error*\n\n*Context:* %s\n*Error:* `%s`\n*Time:* %s",
		EscapeMarkdown(where), err.Error(), l.now().Format("2006-01-02 15:04:05"))
	l.Log(ctx, LogTypeError, msg)
}

// AlertDetractor notifies the team about a detractor answer.
func (l *AlertLogger) AlertDetractor(ctx context.Context, contactID string, ev *domain.Evaluation) {
	if ev == nil {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🚨 *Detractor*\n\n*Contact:* `%s`\n*Score:* %d\n*Priority:* %s",
		contactID, ev.Score, ev.Priority)
	if ev.Feedback != "" {
		fmt.Fprintf(&b, "\n*Feedback:* %s", EscapeMarkdown(ev.Feedback))
	}
	if len(ev.Insights.Themes) > 0 {
		fmt.Fprintf(&b, "\n*Themes:* %s", EscapeMarkdown(strings.Join(ev.Insights.Themes, ", ")))
	}
	if ev.Summary != "" {
		fmt.Fprintf(&b, "\n\n%s", EscapeMarkdown(ev.Summary))
	}
	l.Log(ctx, LogTypeDetractor, b.String())
}

func (l *AlertLogger) LogManualMode(ctx context.Context, identity, operatorID string, enabled bool) {
	state := "disabled"
	if enabled {
		state = "enabled"
	}
	if operatorID == "" {
		operatorID = "operator"
	}
	msg := fmt.Sprintf("🧑‍💼 *Manual mode %s*\n\n*Chat:* `%s`\n*Operator:* %s",
		state, identity, EscapeMarkdown(operatorID))
	l.Log(ctx, LogTypeManualMode, msg)
}

func (l *AlertLogger) getTopicID(logType LogType) int {
	switch logType {
	case LogTypeError:
		return l.cfg.LogTopicError
	case LogTypeDetractor:
		return l.cfg.LogTopicDetractor
	case LogTypeManualMode:
		return l.cfg.LogTopicManualMode
	default:
		return 0
	}
}
