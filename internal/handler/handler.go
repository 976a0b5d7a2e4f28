package handler

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot"

	"github.com/set-night/npsbot/internal/config"
	"github.com/set-night/npsbot/internal/conversation"
	"github.com/set-night/npsbot/internal/middleware"
	"github.com/set-night/npsbot/internal/telegram"
)

// Processor runs one inbound message through the survey dialogue.
type Processor interface {
	Process(ctx context.Context, in conversation.Inbound) (*conversation.Reply, error)
}

// Handler holds all dependencies needed by command and callback handlers.
type Handler struct {
	bot     *bot.Bot
	sender  telegram.MessageSender
	cfg     *config.Config
	manager Processor
	alerts  middleware.ErrorReporter
	log     *slog.Logger
}

// Deps contains all dependencies required to construct a Handler.
type Deps struct {
	Bot     *bot.Bot
	Sender  telegram.MessageSender
	Cfg     *config.Config
	Manager Processor
	Alerts  middleware.ErrorReporter
}

// New creates a new Handler from the provided dependencies. Sender defaults
// to Bot.
func New(deps Deps) *Handler {
	h := &Handler{
		bot:     deps.Bot,
		sender:  deps.Sender,
		cfg:     deps.Cfg,
		manager: deps.Manager,
		alerts:  deps.Alerts,
		log:     slog.Default().With(slog.String("component", "handler")),
	}
	if h.sender == nil && deps.Bot != nil {
		h.sender = deps.Bot
	}
	return h
}

// Register binds the command and callback handlers to the bot. Plain text is
// served by HandleText, installed as the bot's default handler.
func (h *Handler) Register() {
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, config.StartCommand, bot.MatchTypePrefix, h.handleStart)
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, telegram.CallbackConfirmPrefix, bot.MatchTypePrefix, h.handleCallback)
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, telegram.CallbackScorePrefix, bot.MatchTypePrefix, h.handleCallback)
}
