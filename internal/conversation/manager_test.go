package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/set-night/npsbot/internal/domain"
)

const chatID = "123456"

type testEnv struct {
	manager    *Manager
	resolver   *fakeResolver
	replies    *fakeReplies
	evaluator  *fakeEvaluator
	transcript *memTranscript
	campaigns  *memCampaigns
}

// newTestEnv builds a manager whose sentiment analyzer is absent, so labels
// come from the score bucket.
func newTestEnv(t *testing.T, mutate func(*Deps)) *testEnv {
	t.Helper()
	env := &testEnv{
		resolver:   &fakeResolver{err: domain.ErrCustomerNotFound},
		replies:    &fakeReplies{},
		evaluator:  &fakeEvaluator{},
		transcript: &memTranscript{},
		campaigns:  &memCampaigns{},
	}
	deps := Deps{
		Store:      NewStore(time.Hour),
		Resolver:   env.resolver,
		Replies:    env.replies,
		Evaluator:  env.evaluator,
		Transcript: env.transcript,
		Campaigns:  env.campaigns,
		Policy:     CallPolicy{Timeout: time.Second, Retries: 1},
	}
	if mutate != nil {
		mutate(&deps)
	}
	env.manager = NewManager(deps)
	return env
}

func (e *testEnv) send(t *testing.T, text string) *Reply {
	t.Helper()
	reply, err := e.manager.Process(context.Background(), Inbound{Identity: chatID, Text: text, DisplayName: "ana"})
	require.NoError(t, err)
	return reply
}

func (e *testEnv) view(t *testing.T) domain.SessionView {
	t.Helper()
	v, ok := e.manager.Session(chatID)
	require.True(t, ok)
	return v
}

func TestProcess_ConfirmThenScore(t *testing.T) {
	env := newTestEnv(t, nil)

	reply := env.send(t, "/start")
	assert.Equal(t, domain.StateWaitingConfirmation, reply.State)
	assert.Equal(t, GreetingMessage(nil), reply.Text)

	reply = env.send(t, "sim")
	assert.Equal(t, domain.StateWaitingScore, reply.State)
	assert.Equal(t, AskScoreMessage, reply.Text)

	reply = env.send(t, "Dou nota 3, atendimento péssimo")
	assert.Equal(t, domain.StateCompleted, reply.State)
	assert.Equal(t, "reply 3", reply.Text)

	v := env.view(t)
	require.NotNil(t, v.NPSScore)
	assert.Equal(t, 3, *v.NPSScore)
	assert.Contains(t, v.Feedback, "atendimento péssimo")
	assert.Equal(t, domain.SentimentNegative, v.Sentiment)

	campaigns := env.campaigns.all()
	require.Len(t, campaigns, 1)
	assert.Equal(t, chatID, campaigns[0].ContactID)
	assert.Equal(t, 3, campaigns[0].Score)
	assert.Equal(t, domain.CategoryDetractor, campaigns[0].Category)
	assert.Equal(t, domain.SentimentNegative, campaigns[0].Sentiment)
	assert.EqualValues(t, 1, env.evaluator.calls.Load())
}

func TestProcess_DetailsQuestion(t *testing.T) {
	env := newTestEnv(t, nil)
	env.send(t, "/start")

	reply := env.send(t, "Como atribuo a nota?")
	assert.Equal(t, domain.StateWaitingScore, reply.State)
	assert.Equal(t, DetailsMessage, reply.Text)
}

func TestProcess_Decline(t *testing.T) {
	env := newTestEnv(t, nil)
	env.send(t, "/start")

	reply := env.send(t, "não, agora não")
	assert.Equal(t, domain.StateIdle, reply.State)
	assert.Equal(t, DeclineMessage, reply.Text)
	assert.Empty(t, env.campaigns.all())
}

func TestProcess_ScoreDuringConfirmation(t *testing.T) {
	env := newTestEnv(t, nil)
	env.send(t, "/start")

	reply := env.send(t, "10! Adorei tudo")
	assert.Equal(t, domain.StateCompleted, reply.State)
	assert.Equal(t, "reply 10", reply.Text)

	v := env.view(t)
	require.NotNil(t, v.NPSScore)
	assert.Equal(t, 10, *v.NPSScore)
	assert.Equal(t, domain.SentimentPositive, v.Sentiment)

	for _, r := range env.transcript.bySender(domain.SenderBot) {
		assert.NotEqual(t, ConfirmationFallbackMessage, r.Text)
		assert.NotEqual(t, AskScoreMessage, r.Text)
	}
}

func TestProcess_UnknownConfirmationAnswer(t *testing.T) {
	env := newTestEnv(t, nil)
	env.send(t, "/start")

	reply := env.send(t, "talvez")
	assert.Equal(t, domain.StateWaitingConfirmation, reply.State)
	assert.Equal(t, ConfirmationFallbackMessage, reply.Text)
}

func TestProcess_IdleRequiresStart(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, text := range []string{"oi", "8"} {
		reply := env.send(t, text)
		assert.Equal(t, domain.StateIdle, reply.State)
		assert.Equal(t, StartRequiredMessage, reply.Text)
	}
	assert.Nil(t, env.view(t).NPSScore)
}

func TestProcess_StartIsCaseInsensitive(t *testing.T) {
	env := newTestEnv(t, nil)
	reply := env.send(t, "  /START  ")
	assert.Equal(t, domain.StateWaitingConfirmation, reply.State)
}

func TestProcess_StartWithScoreFallsThrough(t *testing.T) {
	env := newTestEnv(t, nil)

	reply := env.send(t, "/start 9")
	assert.Equal(t, domain.StateCompleted, reply.State)
	assert.Equal(t, "reply 9", reply.Text)
}

func TestProcess_StartTwiceResetsRound(t *testing.T) {
	env := newTestEnv(t, nil)
	env.send(t, "/start")
	env.send(t, "8 bom atendimento")
	require.Equal(t, domain.StateCompleted, env.view(t).State)

	for i := 0; i < 2; i++ {
		reply := env.send(t, "/start")
		assert.Equal(t, domain.StateWaitingConfirmation, reply.State)

		v := env.view(t)
		assert.Nil(t, v.NPSScore)
		assert.Empty(t, v.Feedback)
		assert.Empty(t, v.Sentiment)
		assert.Equal(t, 2, v.MessagesCount)
	}
}

func TestProcess_CompletedRound(t *testing.T) {
	env := newTestEnv(t, nil)
	env.send(t, "/start 9")

	reply := env.send(t, "valeu!")
	assert.Equal(t, domain.StateCompleted, reply.State)
	assert.Equal(t, AlreadyRegisteredMessage, reply.Text)

	v := env.view(t)
	require.NotNil(t, v.NPSScore)
	assert.Equal(t, 9, *v.NPSScore)
}

func TestProcess_ClarifiesMissingScore(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.Replies = nil })
	env.send(t, "/start")
	env.send(t, "sim")

	reply := env.send(t, "foi bom")
	assert.Equal(t, domain.StateWaitingScore, reply.State)
	assert.Equal(t, ClarifyFallbackMessage, reply.Text)

	env2 := newTestEnv(t, nil)
	env2.replies.clarify = "Entendi! De 0 a 10, quanto você daria?"
	env2.send(t, "/start")
	env2.send(t, "sim")
	reply = env2.send(t, "foi bom")
	assert.Equal(t, "Entendi! De 0 a 10, quanto você daria?", reply.Text)
}

func TestProcess_InvalidEvent(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, in := range []Inbound{
		{Identity: "", Text: "/start"},
		{Identity: "  ", Text: "/start"},
		{Identity: chatID, Text: ""},
		{Identity: chatID, Text: "   "},
	} {
		reply, err := env.manager.Process(context.Background(), in)
		assert.ErrorIs(t, err, domain.ErrInvalidEvent)
		assert.Nil(t, reply)
	}

	_, ok := env.manager.Session(chatID)
	assert.False(t, ok)
	assert.Empty(t, env.transcript.records)
}

func TestProcess_ManualModeSuppressesReplies(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.send(t, "/start")

	_, err := env.manager.EnableManualMode(ctx, chatID, "gestor-1")
	require.NoError(t, err)
	before := env.view(t).MessagesCount

	for _, text := range []string{"oi?", "/start", "10"} {
		reply := env.send(t, text)
		assert.Nil(t, reply)
	}

	v := env.view(t)
	assert.Equal(t, domain.StateManualMode, v.State)
	assert.True(t, v.ManualMode)
	assert.Equal(t, before+3, v.MessagesCount)
	assert.Nil(t, v.NPSScore)

	_, err = env.manager.DisableManualMode(ctx, chatID, "gestor-1")
	require.NoError(t, err)
	v = env.view(t)
	assert.Equal(t, domain.StateIdle, v.State)
	assert.False(t, v.ManualMode)

	reply := env.send(t, "/start")
	require.NotNil(t, reply)
	assert.Equal(t, domain.StateWaitingConfirmation, reply.State)
}

func TestManualMode_IdempotentToggles(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	changed, err := env.manager.DisableManualMode(ctx, chatID, "op")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Empty(t, env.transcript.withPrefix("[MANUAL_MODE]"))

	changed, err = env.manager.EnableManualMode(ctx, chatID, "op")
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = env.manager.EnableManualMode(ctx, chatID, "op")
	require.NoError(t, err)
	assert.False(t, changed)

	toggles := env.transcript.withPrefix("[MANUAL_MODE]")
	require.Len(t, toggles, 1)
	assert.Equal(t, "[MANUAL_MODE] enabled by op", toggles[0].Text)
	assert.Equal(t, true, toggles[0].Metadata["manual_toggle"])
	assert.Equal(t, "op", toggles[0].Metadata["operator_id"])

	changed, err = env.manager.DisableManualMode(ctx, chatID, "")
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = env.manager.DisableManualMode(ctx, chatID, "")
	require.NoError(t, err)
	assert.False(t, changed)
	toggles = env.transcript.withPrefix("[MANUAL_MODE]")
	require.Len(t, toggles, 2)
	assert.Equal(t, "[MANUAL_MODE] disabled by operator", toggles[1].Text)

	_, err = env.manager.EnableManualMode(ctx, "", "op")
	assert.ErrorIs(t, err, domain.ErrInvalidEvent)
}

func TestManualMode_ConcurrentEnableChangesOnce(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		changes atomic.Int32
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			changed, err := env.manager.EnableManualMode(ctx, chatID, "op")
			assert.NoError(t, err)
			if changed {
				changes.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), changes.Load())
	assert.Len(t, env.transcript.withPrefix("[MANUAL_MODE]"), 1)
}

func TestRecordDropped(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.send(t, "/start")
	before := env.view(t)

	require.NoError(t, env.manager.RecordDropped(ctx, chatID, "sim", "rate_limited"))

	after := env.view(t)
	assert.Equal(t, before.State, after.State)
	assert.Equal(t, before.MessagesCount+1, after.MessagesCount)

	users := env.transcript.bySender(domain.SenderUser)
	last := users[len(users)-1]
	assert.Equal(t, "sim", last.Text)
	assert.Equal(t, "rate_limited", last.Metadata["dropped"])

	assert.ErrorIs(t, env.manager.RecordDropped(ctx, chatID, " ", "rate_limited"), domain.ErrInvalidEvent)
}

func TestSendOperatorMessage(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.send(t, "/start")

	require.NoError(t, env.manager.SendOperatorMessage(ctx, chatID, "Olá, aqui é o gestor.", "gestor-1"))

	v := env.view(t)
	assert.Equal(t, domain.StateWaitingConfirmation, v.State)

	records := env.transcript.bySender(domain.SenderManager)
	require.Len(t, records, 1)
	assert.Equal(t, "Olá, aqui é o gestor.", records[0].Text)
	assert.Equal(t, "gestor-1", records[0].Metadata["operator_id"])

	assert.ErrorIs(t, env.manager.SendOperatorMessage(ctx, chatID, " ", "gestor-1"), domain.ErrInvalidEvent)
}

func TestProcess_TransitionsAreRecorded(t *testing.T) {
	env := newTestEnv(t, nil)
	env.send(t, "/start")
	env.send(t, "sim")
	env.send(t, "7")

	transitions := env.transcript.withPrefix("[STATE_TRANSITION]")
	texts := make([]string, 0, len(transitions))
	for _, r := range transitions {
		assert.Equal(t, true, r.Metadata["transition"])
		texts = append(texts, r.Text)
	}
	assert.Equal(t, []string{
		"[STATE_TRANSITION] idle → waiting_confirmation",
		"[STATE_TRANSITION] waiting_confirmation → waiting_score",
		"[STATE_TRANSITION] waiting_score → completed",
	}, texts)

	assert.Len(t, env.transcript.bySender(domain.SenderBot), 3)
	assert.Len(t, env.transcript.bySender(domain.SenderUser), 3)
}

func TestProcess_CollaboratorFailureFallsBack(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) {
		d.Sentiment = &fakeSentiment{err: errors.New("llm down")}
	})
	env.replies.generateErr = errors.New("llm down")
	env.evaluator.err = errors.New("evaluator down")
	env.transcript.err = errors.New("db down")

	env.send(t, "/start")
	env.send(t, "sim")
	reply := env.send(t, "8")

	assert.Equal(t, domain.StateCompleted, reply.State)
	assert.Equal(t, ScoreReceivedMessage(8), reply.Text)
	assert.EqualValues(t, 2, env.replies.calls.Load())
	assert.Equal(t, domain.SentimentNeutral, env.view(t).Sentiment)

	campaigns := env.campaigns.all()
	require.Len(t, campaigns, 1)
	assert.Equal(t, domain.CategoryNeutral, campaigns[0].Category)
}

func TestProcess_CollaboratorTimeoutIsBounded(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) {
		d.Policy = CallPolicy{Timeout: 20 * time.Millisecond, Retries: 1}
	})
	env.replies.block = true

	env.send(t, "/start")
	env.send(t, "sim")

	start := time.Now()
	reply := env.send(t, "5")
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, ScoreReceivedMessage(5), reply.Text)
	assert.EqualValues(t, 2, env.replies.calls.Load())
}

func TestProcess_IdentificationAndGreeting(t *testing.T) {
	env := newTestEnv(t, nil)
	env.resolver.err = nil
	env.resolver.customer = &domain.Customer{ID: "crm-1", FirstName: "Ana"}

	reply := env.send(t, "/start")
	assert.Contains(t, reply.Text, "Olá, Ana!")

	env.send(t, "/start")
	assert.EqualValues(t, 1, env.resolver.calls.Load())

	env.send(t, "9 excelente")
	campaigns := env.campaigns.all()
	require.Len(t, campaigns, 1)
	assert.Equal(t, "crm-1", campaigns[0].ContactID)
	assert.Equal(t, "Ana", env.view(t).CustomerName)
	assert.Equal(t, "Ana", env.replies.lastRequest.Customer.FirstName)
}

func TestProcess_CustomerNotFoundIsNotRetried(t *testing.T) {
	env := newTestEnv(t, nil)

	reply := env.send(t, "/start")
	assert.Equal(t, GreetingMessage(nil), reply.Text)
	assert.EqualValues(t, 1, env.resolver.calls.Load())
	assert.False(t, env.view(t).Identified)
}

func TestProcess_FollowUpQuestion(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.AskFollowUp = true })
	env.send(t, "/start")
	env.send(t, "sim")

	reply := env.send(t, "7")
	assert.Equal(t, domain.StateWaitingFeedback, reply.State)
	assert.Equal(t, FollowUpQuestion(7), reply.Text)
	assert.Empty(t, env.campaigns.all())

	reply = env.send(t, "faltou suporte")
	assert.Equal(t, domain.StateCompleted, reply.State)
	assert.Equal(t, FeedbackThanksMessage, reply.Text)

	v := env.view(t)
	assert.Equal(t, "7 faltou suporte", v.Feedback)
	assert.Equal(t, domain.SentimentNeutral, v.Sentiment)
	require.Len(t, env.campaigns.all(), 1)
}

func TestProcess_FollowUpSkippedWithFeedback(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.AskFollowUp = true })
	env.send(t, "/start")

	reply := env.send(t, "7, faltou suporte")
	assert.Equal(t, domain.StateCompleted, reply.State)
}

func TestProcess_SerializesSameIdentity(t *testing.T) {
	env := newTestEnv(t, nil)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := env.manager.Process(context.Background(), Inbound{
				Identity: chatID,
				Text:     fmt.Sprintf("oi %d", i),
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	v := env.view(t)
	assert.Equal(t, domain.StateIdle, v.State)
	assert.Equal(t, 2*n, v.MessagesCount)
}

func TestInvoke_RetryPolicy(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	calls := 0
	_, err := invoke(ctx, CallPolicy{Timeout: time.Second, Retries: 5}, "op", func(context.Context) (int, error) {
		calls++
		return 0, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)

	calls = 0
	_, err = invoke(ctx, CallPolicy{Timeout: time.Second, Retries: 1}, "op", func(context.Context) (int, error) {
		calls++
		return 0, domain.ErrCustomerNotFound
	})
	assert.ErrorIs(t, err, domain.ErrCustomerNotFound)
	assert.Equal(t, 1, calls)

	calls = 0
	v, err := invoke(ctx, CallPolicy{Retries: 1}, "op", func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, boom
		}
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}
