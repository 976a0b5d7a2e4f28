package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/set-night/npsbot/internal/config"
	"github.com/set-night/npsbot/internal/domain"
	"github.com/set-night/npsbot/internal/service"
)

// Conversations is the operator-facing side of the conversation manager.
type Conversations interface {
	EnableManualMode(ctx context.Context, identity, operatorID string) (bool, error)
	DisableManualMode(ctx context.Context, identity, operatorID string) (bool, error)
	SendOperatorMessage(ctx context.Context, identity, text, operatorID string) error
	Session(identity string) (domain.SessionView, bool)
}

type TranscriptReader interface {
	List(ctx context.Context, chatID string, limit int) ([]domain.TranscriptRecord, error)
}

type MetricsReporter interface {
	Report(ctx context.Context) (service.NPSReport, error)
}

// Deliverer sends an operator message to a Telegram chat.
type Deliverer interface {
	Deliver(ctx context.Context, chatID int64, text string) error
}

type ManualModeNotifier interface {
	LogManualMode(ctx context.Context, identity, operatorID string, enabled bool)
}

// Deps contains the dependencies of the API server. Transcripts, Metrics,
// Alerts and Webhook are optional.
type Deps struct {
	Cfg           *config.Config
	Conversations Conversations
	Transcripts   TranscriptReader
	Metrics       MetricsReporter
	Messenger     Deliverer
	Alerts        ManualModeNotifier
	Webhook       http.Handler
}

// Server represents the API server
type Server struct {
	echo          *echo.Echo
	cfg           *config.Config
	conversations Conversations
	transcripts   TranscriptReader
	metrics       MetricsReporter
	messenger     Deliverer
	alerts        ManualModeNotifier
	log           *slog.Logger
}

// NewServer creates a new API server
func NewServer(deps Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = config.ServerReadTimeout
	e.Server.WriteTimeout = config.ServerWriteTimeout

	s := &Server{
		echo:          e,
		cfg:           deps.Cfg,
		conversations: deps.Conversations,
		transcripts:   deps.Transcripts,
		metrics:       deps.Metrics,
		messenger:     deps.Messenger,
		alerts:        deps.Alerts,
		log:           slog.Default().With(slog.String("component", "api")),
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency}
			if v.Error != nil {
				s.log.Warn("request failed", append(attrs, "error", v.Error)...)
				return nil
			}
			s.log.Debug("request", attrs...)
			return nil
		},
	}))

	s.setupRoutes(deps.Webhook)
	return s
}

// setupRoutes configures all API endpoints
func (s *Server) setupRoutes(webhook http.Handler) {
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
	})

	if webhook != nil {
		s.echo.POST("/telegram/webhook", echo.WrapHandler(webhook))
	}

	auth := RequireAPIKey(s.cfg.OperatorAPIKey)

	tg := s.echo.Group("/telegram", auth)
	tg.POST("/manual/enable", s.enableManualMode)
	tg.POST("/manual/disable", s.disableManualMode)
	tg.POST("/send-manual", s.sendManual)

	conv := s.echo.Group("/conversations", auth)
	conv.GET("/:chat_id", s.getConversation)
	conv.GET("/:chat_id/messages", s.listMessages)

	s.echo.GET("/metrics/nps", s.npsMetrics, auth)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves on the configured port until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", s.cfg.Port)
		s.log.Info("http server listening", "addr", addr)
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), config.ServerShutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
