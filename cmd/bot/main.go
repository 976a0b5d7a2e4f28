package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"golang.org/x/sync/errgroup"

	npsbot "github.com/set-night/npsbot"
	"github.com/set-night/npsbot/internal/api"
	"github.com/set-night/npsbot/internal/config"
	"github.com/set-night/npsbot/internal/conversation"
	"github.com/set-night/npsbot/internal/handler"
	"github.com/set-night/npsbot/internal/middleware"
	"github.com/set-night/npsbot/internal/repository"
	"github.com/set-night/npsbot/internal/service"
	"github.com/set-night/npsbot/internal/telegram"
)

func main() {
	// Setup structured logging
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	level.Set(cfg.SlogLevel())

	// Setup context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("bot stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("bot stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config) error {
	// Connect to database
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	// Run migrations
	migrationsFS, err := fs.Sub(npsbot.MigrationsFS, "migrations")
	if err != nil {
		return err
	}
	if err := repository.RunMigrations(cfg.DatabaseURL, migrationsFS); err != nil {
		return err
	}

	transcripts := repository.NewTranscriptRepository(pool)
	campaigns := repository.NewCampaignRepository(pool)
	interactions := repository.NewInteractionRepository(pool)

	// Handler and alert logger pointers for use in bot option closures
	var (
		h       *handler.Handler
		alerts  *telegram.AlertLogger
		manager *conversation.Manager
	)

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute).
		OnDrop(func(ctx context.Context, chatID int64, text string) {
			if manager == nil {
				return
			}
			if err := manager.RecordDropped(ctx, strconv.FormatInt(chatID, 10), text, "rate_limited"); err != nil {
				slog.Warn("record dropped message", "chat_id", chatID, "error", err)
			}
		})
	opts := []bot.Option{
		bot.WithMiddlewares(
			middleware.Recover(middleware.ErrorReporterFunc(func(ctx context.Context, err error, where string) {
				alerts.LogError(ctx, err, where)
			})),
			middleware.Logging(),
			limiter.Middleware(),
		),
		bot.WithDefaultHandler(func(ctx context.Context, b *bot.Bot, update *models.Update) {
			if h == nil {
				return
			}
			h.HandleText(ctx, b, update)
		}),
	}
	if cfg.UseWebhook() && cfg.WebhookSecret != "" {
		opts = append(opts, bot.WithWebhookSecretToken(cfg.WebhookSecret))
	}

	b, err := bot.New(cfg.BotToken, opts...)
	if err != nil {
		return err
	}

	me, err := b.GetMe(ctx)
	if err != nil {
		return err
	}
	slog.Info("bot info retrieved", "id", me.ID, "username", me.Username)

	alerts = telegram.NewAlertLogger(b, cfg)

	// Collaborators fall back to deterministic behaviour when their
	// backing service is not configured.
	var llm service.Completer
	if cfg.LLMEnabled() {
		llmService, err := service.NewLLMService(cfg)
		if err != nil {
			return err
		}
		llm = llmService
	} else {
		slog.Warn("LLM_API_KEY not set, using template replies")
	}

	deps := conversation.Deps{
		Store:      conversation.NewStore(cfg.SessionTTL),
		Sentiment:  service.NewSentimentService(llm, interactions),
		Replies:    service.NewReplyService(llm),
		Evaluator:  service.NewEvaluatorService(llm, interactions, alerts),
		Transcript: transcripts,
		Campaigns:  campaigns,
		Policy: conversation.CallPolicy{
			Timeout: cfg.CollaboratorTimeout,
			Retries: cfg.CollaboratorRetries,
		},
		AskFollowUp: cfg.AskFeedbackFollowUp,
	}

	cleanup := conversation.NewCleanupService(deps.Store, cfg.SessionCleanupInterval).
		Also("rate_limiters", limiter.Purge)

	if cfg.CRMEnabled() {
		crm := service.NewCRMService(cfg)
		deps.Resolver = crm
		cleanup.Also("crm_customers", crm.PurgeCache)
	} else {
		slog.Warn("CRM not configured, customers stay unidentified")
	}

	manager = conversation.NewManager(deps)

	h = handler.New(handler.Deps{
		Bot:     b,
		Cfg:     cfg,
		Manager: manager,
		Alerts:  alerts,
	})
	h.Register()

	apiDeps := api.Deps{
		Cfg:           cfg,
		Conversations: manager,
		Transcripts:   transcripts,
		Metrics:       service.NewMetricsService(campaigns),
		Messenger:     telegram.NewMessenger(b),
		Alerts:        alerts,
	}
	if cfg.UseWebhook() {
		apiDeps.Webhook = b.WebhookHandler()
	}
	server := api.NewServer(apiDeps)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx)
	})
	g.Go(func() error {
		return cleanup.Run(gctx)
	})
	g.Go(func() error {
		return startBot(gctx, b, cfg)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// startBot receives updates by webhook or long polling until ctx is done.
func startBot(ctx context.Context, b *bot.Bot, cfg *config.Config) error {
	if cfg.UseWebhook() {
		if _, err := b.SetWebhook(ctx, &bot.SetWebhookParams{
			URL:                cfg.WebhookURL,
			SecretToken:        cfg.WebhookSecret,
			DropPendingUpdates: cfg.DropPendingUpdates,
		}); err != nil {
			return err
		}
		slog.Info("starting bot with webhook", "url", cfg.WebhookURL)
		b.StartWebhook(ctx)
		return nil
	}

	if _, err := b.DeleteWebhook(ctx, &bot.DeleteWebhookParams{
		DropPendingUpdates: cfg.DropPendingUpdates,
	}); err != nil {
		return err
	}
	slog.Info("starting bot with long polling")
	b.Start(ctx)
	return nil
}
