package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/set-night/npsbot/internal/config"
	"github.com/set-night/npsbot/internal/domain"
)

const (
	defaultMessagesLimit = 50
	maxMessagesLimit     = 500
)

// ChatID accepts both a JSON number and a JSON string.
type ChatID string

func (id *ChatID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ChatID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ChatID(n.String())
	return nil
}

type manualModeRequest struct {
	ChatID    ChatID `json:"chat_id"`
	ManagerID string `json:"manager_id"`
}

type sendManualRequest struct {
	ChatID    ChatID `json:"chat_id"`
	Message   string `json:"message"`
	ManagerID string `json:"manager_id"`
}

type transcriptMessage struct {
	ID         string         `json:"id"`
	Sender     domain.Sender  `json:"sender"`
	Text       string         `json:"message"`
	State      domain.State   `json:"state"`
	Score      *int           `json:"nps_score,omitempty"`
	ManualMode bool           `json:"manual_mode"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

func operatorID(id string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return config.DefaultOperatorID
}

func (s *Server) enableManualMode(c echo.Context) error {
	return s.toggleManualMode(c, true)
}

func (s *Server) disableManualMode(c echo.Context) error {
	return s.toggleManualMode(c, false)
}

func (s *Server) toggleManualMode(c echo.Context, enable bool) error {
	var req manualModeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.ChatID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "chat_id is required")
	}

	ctx := c.Request().Context()
	identity := string(req.ChatID)
	op := operatorID(req.ManagerID)

	toggle := s.conversations.DisableManualMode
	if enable {
		toggle = s.conversations.EnableManualMode
	}
	changed, err := toggle(ctx, identity, op)
	if err != nil {
		return mapError(err)
	}
	if changed && s.alerts != nil {
		s.alerts.LogManualMode(ctx, identity, op, enable)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"status":      "ok",
		"chat_id":     identity,
		"manual_mode": enable,
	})
}

func (s *Server) sendManual(c echo.Context) error {
	var req sendManualRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.ChatID == "" || strings.TrimSpace(req.Message) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "chat_id and message are required")
	}

	ctx := c.Request().Context()
	identity := string(req.ChatID)
	op := operatorID(req.ManagerID)

	changed, err := s.conversations.EnableManualMode(ctx, identity, op)
	if err != nil {
		return mapError(err)
	}
	if changed && s.alerts != nil {
		s.alerts.LogManualMode(ctx, identity, op, true)
	}
	if err := s.conversations.SendOperatorMessage(ctx, identity, req.Message, op); err != nil {
		return mapError(err)
	}

	chatID, err := deliverableChatID(identity)
	if err != nil || s.messenger == nil {
		s.log.InfoContext(ctx, "operator message recorded only", "chat_id", identity, "operator_id", op)
		return c.JSON(http.StatusOK, map[string]string{"status": "logged_only"})
	}

	if err := s.messenger.Deliver(ctx, chatID, req.Message); err != nil {
		s.log.ErrorContext(ctx, "deliver operator message", "error", err, "chat_id", identity)
		return echo.NewHTTPError(http.StatusBadGateway, "failed to deliver message")
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "sent"})
}

func deliverableChatID(identity string) (int64, error) {
	id, err := strconv.ParseInt(identity, 10, 64)
	if err != nil || id == 0 {
		return 0, domain.ErrUndeliverable
	}
	return id, nil
}

func (s *Server) getConversation(c echo.Context) error {
	view, ok := s.conversations.Session(c.Param("chat_id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, domain.ErrSessionNotFound.Error())
	}
	return c.JSON(http.StatusOK, view)
}

func (s *Server) listMessages(c echo.Context) error {
	if s.transcripts == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "transcripts are not available")
	}

	limit := defaultMessagesLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = min(n, maxMessagesLimit)
	}

	records, err := s.transcripts.List(c.Request().Context(), c.Param("chat_id"), limit)
	if err != nil {
		s.log.ErrorContext(c.Request().Context(), "list transcript", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load messages")
	}

	out := make([]transcriptMessage, 0, len(records))
	for _, r := range records {
		out = append(out, transcriptMessage{
			ID:         r.ID,
			Sender:     r.Sender,
			Text:       r.Text,
			State:      r.State,
			Score:      r.Score,
			ManualMode: r.ManualMode,
			Metadata:   r.Metadata,
			CreatedAt:  r.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) npsMetrics(c echo.Context) error {
	if s.metrics == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "metrics are not available")
	}
	report, err := s.metrics.Report(c.Request().Context())
	if err != nil {
		s.log.ErrorContext(c.Request().Context(), "nps metrics", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to compute metrics")
	}
	return c.JSON(http.StatusOK, report)
}

func mapError(err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidEvent):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrSessionNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
