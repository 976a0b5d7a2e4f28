package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/set-night/npsbot/internal/config"
)

// SendLongMessage sends a potentially long plain text message, splitting it
// into parts if needed. The reply markup is attached to the last part only.
func SendLongMessage(ctx context.Context, b MessageSender, chatID int64, text string, markup models.ReplyMarkup) error {
	parts := SplitMessage(text, config.MaxTelegramMessageLen)

	for i, part := range parts {
		params := &bot.SendMessageParams{
			ChatID: chatID,
			Text:   part,
		}
		if markup != nil && i == len(parts)-1 {
			params.ReplyMarkup = markup
		}

		if _, err := b.SendMessage(ctx, params); err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}

	return nil
}

// MessageSender is the subset of *bot.Bot used for outgoing text.
type MessageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// SendMarkdown sends a Markdown message and falls back to plain text if
// Telegram rejects the formatting.
func SendMarkdown(ctx context.Context, b MessageSender, params *bot.SendMessageParams) error {
	params.Text = FixMarkdown(params.Text)
	params.ParseMode = models.ParseModeMarkdownV1

	_, err := b.SendMessage(ctx, params)
	if err != nil {
		slog.Warn("markdown send failed, falling back to plain text", "error", err)
		params.ParseMode = ""
		if _, err = b.SendMessage(ctx, params); err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}
	return nil
}

// StartTyping sends "typing..." action every 4 seconds until the returned cancel function is called.
func StartTyping(ctx context.Context, b *bot.Bot, chatID int64) context.CancelFunc {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(4 * time.Second)
		defer ticker.Stop()
		for {
			b.SendChatAction(ctx, &bot.SendChatActionParams{
				ChatID: chatID,
				Action: models.ChatActionTyping,
			})
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return cancel
}

// Messenger delivers operator messages to a chat.
type Messenger struct {
	bot MessageSender
}

func NewMessenger(b MessageSender) *Messenger {
	return &Messenger{bot: b}
}

func (m *Messenger) Deliver(ctx context.Context, chatID int64, text string) error {
	return SendLongMessage(ctx, m.bot, chatID, text, nil)
}
