package telegram

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/set-night/npsbot/internal/config"
	"github.com/set-night/npsbot/internal/domain"
)

type fakeSender struct {
	mu        sync.Mutex
	sent      []bot.SendMessageParams
	rejectMD  bool
	attempted int
}

func (f *fakeSender) SendMessage(_ context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempted++
	if f.rejectMD && params.ParseMode != "" {
		return nil, errors.New("can't parse entities")
	}
	f.sent = append(f.sent, *params)
	return &models.Message{ID: len(f.sent)}, nil
}

func alertConfig() *config.Config {
	return &config.Config{
		LogTelegramChatID:  -100,
		LogTopicError:      1,
		LogTopicDetractor:  2,
		LogTopicManualMode: 3,
	}
}

func TestAlertDetractorPostsToTopic(t *testing.T) {
	sender := &fakeSender{}
	l := NewAlertLogger(sender, alertConfig())

	l.AlertDetractor(t.Context(), "c-1", &domain.Evaluation{
		Score:    2,
		Feedback: "entrega_atrasada",
		Priority: domain.PriorityUrgent,
	})

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, int64(-100), msg.ChatID)
	assert.Equal(t, 2, msg.MessageThreadID)
	assert.Contains(t, msg.Text, "c-1")
	assert.Contains(t, msg.Text, `entrega\_atrasada`)
}

func TestAlertFallsBackToPlainText(t *testing.T) {
	sender := &fakeSender{rejectMD: true}
	l := NewAlertLogger(sender, alertConfig())

	l.LogManualMode(t.Context(), "42", "", true)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, 2, sender.attempted)
	assert.Equal(t, models.ParseMode(""), sender.sent[0].ParseMode)
	assert.Equal(t, 3, sender.sent[0].MessageThreadID)
	assert.Contains(t, sender.sent[0].Text, "operator")
}

func TestAlertSkippedWithoutTopic(t *testing.T) {
	sender := &fakeSender{}
	cfg := alertConfig()
	cfg.LogTopicError = 0
	l := NewAlertLogger(sender, cfg)

	l.LogError(t.Context(), errors.New("boom"), "crm")
	assert.Empty(t, sender.sent)

	cfg.LogTelegramChatID = 0
	l.AlertDetractor(t.Context(), "c-1", &domain.Evaluation{Score: 1})
	assert.Empty(t, sender.sent)
}
