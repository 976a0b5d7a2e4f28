package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/set-night/npsbot/internal/domain"
)

// EnableManualMode hands the conversation over to an operator. Enabling an
// already manual conversation does nothing and reports false.
func (m *Manager) EnableManualMode(ctx context.Context, identity, operatorID string) (bool, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return false, domain.ErrInvalidEvent
	}

	s, release := m.store.Acquire(identity)
	defer release()

	if s.ManualMode {
		return false, nil
	}
	s.ManualMode = true
	m.transition(ctx, s, domain.StateManualMode)
	m.persist(ctx, s, domain.SenderSystem,
		fmt.Sprintf("[MANUAL_MODE] enabled by %s", operatorLabel(operatorID)),
		map[string]any{"manual_toggle": true, "operator_id": operatorID},
	)
	return true, nil
}

// DisableManualMode gives the conversation back to the bot, which starts
// over from Idle. It reports whether the conversation was in manual mode.
func (m *Manager) DisableManualMode(ctx context.Context, identity, operatorID string) (bool, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return false, domain.ErrInvalidEvent
	}

	s, release := m.store.Acquire(identity)
	defer release()

	if !s.ManualMode {
		return false, nil
	}
	s.ManualMode = false
	m.transition(ctx, s, domain.StateIdle)
	m.persist(ctx, s, domain.SenderSystem,
		fmt.Sprintf("[MANUAL_MODE] disabled by %s", operatorLabel(operatorID)),
		map[string]any{"manual_toggle": true, "operator_id": operatorID},
	)
	return true, nil
}

// SendOperatorMessage records a message typed by an operator. It never goes
// through the state machine.
func (m *Manager) SendOperatorMessage(ctx context.Context, identity, text, operatorID string) error {
	identity = strings.TrimSpace(identity)
	if identity == "" || strings.TrimSpace(text) == "" {
		return domain.ErrInvalidEvent
	}

	s, release := m.store.Acquire(identity)
	defer release()

	m.record(ctx, s, domain.SenderManager, text, map[string]any{
		"operator_id": operatorID,
		"message_id":  uuid.NewString(),
	})
	return nil
}

// RecordDropped keeps a message that was not processed (for example because
// the chat was rate limited) in the history and transcript. The state machine
// does not run.
func (m *Manager) RecordDropped(ctx context.Context, identity, text, reason string) error {
	identity = strings.TrimSpace(identity)
	if identity == "" || strings.TrimSpace(text) == "" {
		return domain.ErrInvalidEvent
	}

	s, release := m.store.Acquire(identity)
	defer release()

	m.record(ctx, s, domain.SenderUser, text, map[string]any{"dropped": reason})
	return nil
}

// Session returns a snapshot of the conversation for identity.
func (m *Manager) Session(identity string) (domain.SessionView, bool) {
	return m.store.Peek(strings.TrimSpace(identity))
}

func operatorLabel(id string) string {
	if strings.TrimSpace(id) == "" {
		return "operator"
	}
	return id
}
