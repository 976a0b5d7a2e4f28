package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/set-night/npsbot/internal/conversation"
	"github.com/set-night/npsbot/internal/domain"
	"github.com/set-night/npsbot/internal/telegram"
)

const processingErrorMessage = "Desculpe, tive um problema ao processar sua mensagem. Pode tentar novamente em instantes?"

func (h *Handler) handleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.Chat.Type != "private" {
		return
	}
	h.converse(ctx, b, update.Message.Chat.ID, update.Message.Text, senderName(update.Message.From))
}

// HandleText processes every private text message that no command matched.
func (h *Handler) HandleText(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.Text == "" || msg.Chat.Type != "private" {
		return
	}
	h.converse(ctx, b, msg.Chat.ID, msg.Text, senderName(msg.From))
}

func (h *Handler) handleCallback(ctx context.Context, b *bot.Bot, update *models.Update) {
	cq := update.CallbackQuery
	if cq == nil {
		return
	}
	if b != nil {
		b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: cq.ID})
	}

	msg := cq.Message.Message
	if msg == nil {
		return
	}

	text, ok := telegram.CallbackText(cq.Data)
	if !ok {
		h.log.WarnContext(ctx, "unknown callback data", "data", cq.Data, "chat_id", msg.Chat.ID)
		return
	}

	if b != nil {
		// Drop the keyboard so the same answer cannot be sent twice.
		b.EditMessageReplyMarkup(ctx, &bot.EditMessageReplyMarkupParams{
			ChatID:    msg.Chat.ID,
			MessageID: msg.ID,
		})
	}
	h.converse(ctx, b, msg.Chat.ID, text, senderName(&cq.From))
}

// converse hands the text to the survey dialogue and sends back its reply.
func (h *Handler) converse(ctx context.Context, b *bot.Bot, chatID int64, text, name string) {
	if b != nil {
		stop := telegram.StartTyping(ctx, b, chatID)
		defer stop()
	}

	reply, err := h.manager.Process(ctx, conversation.Inbound{
		Identity:    strconv.FormatInt(chatID, 10),
		Text:        text,
		DisplayName: name,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidEvent) {
			return
		}
		h.log.ErrorContext(ctx, "process message", "error", err, "chat_id", chatID)
		if h.alerts != nil {
			h.alerts.LogError(ctx, err, fmt.Sprintf("process message, chat %d", chatID))
		}
		h.send(ctx, chatID, processingErrorMessage, nil)
		return
	}
	if reply == nil || reply.Text == "" {
		return
	}

	h.send(ctx, chatID, reply.Text, keyboardFor(reply.State))
}

func (h *Handler) send(ctx context.Context, chatID int64, text string, markup models.ReplyMarkup) {
	if h.sender == nil {
		return
	}
	if err := telegram.SendLongMessage(ctx, h.sender, chatID, text, markup); err != nil {
		h.log.ErrorContext(ctx, "send reply", "error", err, "chat_id", chatID)
	}
}

// keyboardFor offers quick answers for the states that expect one.
func keyboardFor(state domain.State) models.ReplyMarkup {
	switch state {
	case domain.StateWaitingConfirmation:
		return telegram.ConfirmKeyboard()
	case domain.StateWaitingScore:
		return telegram.ScoreKeyboard()
	default:
		return nil
	}
}

func senderName(u *models.User) string {
	if u == nil {
		return ""
	}
	return u.Username
}
