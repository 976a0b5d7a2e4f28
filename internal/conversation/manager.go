package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/set-night/npsbot/internal/config"
	"github.com/set-night/npsbot/internal/domain"
)

// Inbound is one user message addressed to the survey.
type Inbound struct {
	Identity    string
	Text        string
	DisplayName string
}

// Reply is the text to send back and the state the conversation is left in.
type Reply struct {
	Text  string
	State domain.State
}

// Deps holds the collaborators of a Manager. Any collaborator may be nil, in
// which case the deterministic fallback is used.
type Deps struct {
	Store       *Store
	Resolver    IdentityResolver
	Sentiment   SentimentAnalyzer
	Replies     ReplyGenerator
	Evaluator   Evaluator
	Transcript  TranscriptSink
	Campaigns   CampaignStore
	Policy      CallPolicy
	AskFollowUp bool
	Logger      *slog.Logger
	Now         func() time.Time
}

// Manager drives the survey dialogue for every identity.
type Manager struct {
	store       *Store
	resolver    IdentityResolver
	sentiment   SentimentAnalyzer
	replies     ReplyGenerator
	evaluator   Evaluator
	transcript  TranscriptSink
	campaigns   CampaignStore
	policy      CallPolicy
	askFollowUp bool
	log         *slog.Logger
	now         func() time.Time
}

func NewManager(deps Deps) *Manager {
	m := &Manager{
		store:       deps.Store,
		resolver:    deps.Resolver,
		sentiment:   deps.Sentiment,
		replies:     deps.Replies,
		evaluator:   deps.Evaluator,
		transcript:  deps.Transcript,
		campaigns:   deps.Campaigns,
		policy:      deps.Policy.normalized(),
		askFollowUp: deps.AskFollowUp,
		log:         deps.Logger,
		now:         deps.Now,
	}
	if m.store == nil {
		m.store = NewStore(0)
	}
	if m.log == nil {
		m.log = slog.Default()
	}
	m.log = m.log.With(slog.String("component", "conversation.manager"))
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// Process handles one inbound message. A nil reply means the conversation
// is under operator control and nothing must be sent.
func (m *Manager) Process(ctx context.Context, in Inbound) (*Reply, error) {
	identity := strings.TrimSpace(in.Identity)
	if identity == "" || strings.TrimSpace(in.Text) == "" {
		return nil, domain.ErrInvalidEvent
	}

	s, release := m.store.Acquire(identity)
	defer release()

	if s.ManualMode {
		m.record(ctx, s, domain.SenderUser, in.Text, nil)
		m.log.DebugContext(ctx, "manual mode, reply suppressed", "identity", identity)
		return nil, nil
	}

	if isStartCommand(in.Text) {
		m.resetRound(ctx, s)
	}
	m.record(ctx, s, domain.SenderUser, in.Text, nil)

	text := m.dispatch(ctx, s, in)
	m.record(ctx, s, domain.SenderBot, text, nil)

	return &Reply{Text: text, State: s.State}, nil
}

func (m *Manager) dispatch(ctx context.Context, s *domain.Session, in Inbound) string {
	switch s.State {
	case domain.StateIdle:
		return m.onIdle(ctx, s, in)
	case domain.StateWaitingConfirmation:
		return m.onWaitingConfirmation(ctx, s, in.Text)
	case domain.StateWaitingScore:
		return m.onWaitingScore(ctx, s, in.Text)
	case domain.StateWaitingFeedback:
		return m.onWaitingFeedback(ctx, s, in.Text)
	case domain.StateCompleted:
		return AlreadyRegisteredMessage
	case domain.StateManualMode:
		// Flag cleared without leaving the state; resume from the start.
		m.transition(ctx, s, domain.StateIdle)
		return m.onIdle(ctx, s, in)
	default:
		m.log.ErrorContext(ctx, "unknown conversation state", "identity", s.Identity, "state", s.State)
		m.transition(ctx, s, domain.StateIdle)
		return RestartMessage
	}
}

func (m *Manager) onIdle(ctx context.Context, s *domain.Session, in Inbound) string {
	if !isStartCommand(in.Text) {
		return StartRequiredMessage
	}

	if !s.Identified {
		m.identify(ctx, s, in.DisplayName)
	}

	m.transition(ctx, s, domain.StateWaitingConfirmation)

	if rest := startPayload(in.Text); rest != "" {
		if _, ok := ExtractScore(rest); ok {
			return m.onWaitingConfirmation(ctx, s, rest)
		}
	}
	return m.greet(ctx, s)
}

func (m *Manager) onWaitingConfirmation(ctx context.Context, s *domain.Session, text string) string {
	if _, ok := ExtractScore(text); ok {
		m.transition(ctx, s, domain.StateWaitingScore)
		return m.onWaitingScore(ctx, s, text)
	}

	switch ClassifyIntent(text) {
	case IntentDetails:
		m.transition(ctx, s, domain.StateWaitingScore)
		return DetailsMessage
	case IntentConfirm:
		m.transition(ctx, s, domain.StateWaitingScore)
		return AskScoreMessage
	case IntentDecline:
		m.transition(ctx, s, domain.StateIdle)
		return DeclineMessage
	default:
		return ConfirmationFallbackMessage
	}
}

func (m *Manager) onWaitingScore(ctx context.Context, s *domain.Session, text string) string {
	score, ok := ExtractScore(text)
	if !ok {
		return m.clarify(ctx, text)
	}

	s.NPSScore = &score
	s.Feedback = strings.TrimSpace(text)

	if m.askFollowUp && !hasFeedback(text) {
		m.transition(ctx, s, domain.StateWaitingFeedback)
		return FollowUpQuestion(score)
	}

	m.transition(ctx, s, domain.StateCompleted)

	sentiment := m.analyze(ctx, s, score)
	reply := m.generateReply(ctx, s, score, sentiment)
	m.finishRound(ctx, s, score)
	return reply
}

func (m *Manager) onWaitingFeedback(ctx context.Context, s *domain.Session, text string) string {
	s.Feedback = strings.TrimSpace(s.Feedback + " " + strings.TrimSpace(text))
	m.transition(ctx, s, domain.StateCompleted)

	if s.NPSScore != nil {
		score := *s.NPSScore
		m.analyze(ctx, s, score)
		m.finishRound(ctx, s, score)
	}
	return FeedbackThanksMessage
}

// resetRound starts a fresh round. Identification survives.
func (m *Manager) resetRound(ctx context.Context, s *domain.Session) {
	if s.State != domain.StateIdle {
		m.transition(ctx, s, domain.StateIdle)
	}
	s.ResetRound(m.now())
}

// transition is the only place a session changes state.
func (m *Manager) transition(ctx context.Context, s *domain.Session, to domain.State) {
	from := s.State
	now := m.now()
	s.State = to
	s.UpdatedAt = now

	m.log.InfoContext(ctx, "state transition",
		slog.String("identity", s.Identity),
		slog.String("from", from.String()),
		slog.String("to", to.String()),
		slog.Time("at", now),
	)
	m.persist(ctx, s, domain.SenderSystem,
		fmt.Sprintf("[STATE_TRANSITION] %s → %s", from, to),
		map[string]any{"transition": true},
	)
}

func (m *Manager) identify(ctx context.Context, s *domain.Session, displayName string) {
	if m.resolver == nil {
		return
	}
	customer, err := invoke(ctx, m.policy, "resolve identity", func(ctx context.Context) (*domain.Customer, error) {
		return m.resolver.Resolve(ctx, s.Identity, displayName)
	})
	switch {
	case errors.Is(err, domain.ErrCustomerNotFound):
		m.log.InfoContext(ctx, "customer not found", "identity", s.Identity)
	case err != nil:
		m.log.WarnContext(ctx, "identity resolution failed", "identity", s.Identity, "error", err)
	case customer != nil:
		s.Identified = true
		s.Customer = customer
		m.log.InfoContext(ctx, "customer identified", "identity", s.Identity, "customer_id", customer.ID)
	}
}

func (m *Manager) greet(ctx context.Context, s *domain.Session) string {
	if m.replies == nil {
		return GreetingMessage(s.Customer)
	}
	text, err := invoke(ctx, m.policy, "greet", func(ctx context.Context) (string, error) {
		return m.replies.Greet(ctx, s.Customer)
	})
	if err != nil || strings.TrimSpace(text) == "" {
		if err != nil {
			m.log.WarnContext(ctx, "greeting fallback", "identity", s.Identity, "error", err)
		}
		return GreetingMessage(s.Customer)
	}
	return text
}

func (m *Manager) clarify(ctx context.Context, text string) string {
	if m.replies == nil {
		return ClarifyFallbackMessage
	}
	out, err := invoke(ctx, m.policy, "clarify", func(ctx context.Context) (string, error) {
		return m.replies.Clarify(ctx, text)
	})
	if err != nil || strings.TrimSpace(out) == "" {
		if err != nil {
			m.log.WarnContext(ctx, "clarification fallback", "error", err)
		}
		return ClarifyFallbackMessage
	}
	return out
}

// analyze stores the sentiment label on the session, falling back to the
// score bucket when the analyzer is unavailable.
func (m *Manager) analyze(ctx context.Context, s *domain.Session, score int) domain.SentimentResult {
	fallback := domain.SentimentResult{
		Label:        domain.SentimentForScore(score),
		Satisfaction: score,
	}

	result := fallback
	if m.sentiment != nil {
		hint := domain.SentimentHint{Identity: s.Identity, Customer: s.Customer}
		r, err := invoke(ctx, m.policy, "analyze sentiment", func(ctx context.Context) (domain.SentimentResult, error) {
			return m.sentiment.Analyze(ctx, s.Feedback, score, hint)
		})
		switch {
		case err != nil:
			m.log.WarnContext(ctx, "sentiment fallback", "identity", s.Identity, "error", err)
		case r.Label == "":
			m.log.WarnContext(ctx, "sentiment without label", "identity", s.Identity)
		default:
			result = r
		}
	}

	s.Sentiment = result.Label
	return result
}

func (m *Manager) generateReply(ctx context.Context, s *domain.Session, score int, sentiment domain.SentimentResult) string {
	if m.replies == nil {
		return ScoreReceivedMessage(score)
	}
	req := domain.ReplyRequest{
		Score:     score,
		Feedback:  s.Feedback,
		History:   append([]domain.Message(nil), s.History...),
		Sentiment: sentiment,
		Customer:  s.Customer,
	}
	text, err := invoke(ctx, m.policy, "generate reply", func(ctx context.Context) (string, error) {
		return m.replies.Generate(ctx, req)
	})
	if err != nil || strings.TrimSpace(text) == "" {
		if err != nil {
			m.log.WarnContext(ctx, "reply fallback", "identity", s.Identity, "error", err)
		}
		return ScoreReceivedMessage(score)
	}
	return text
}

// finishRound runs the evaluation and records the campaign answer.
func (m *Manager) finishRound(ctx context.Context, s *domain.Session, score int) {
	contactID := s.Identity
	if s.Customer != nil && s.Customer.ID != "" {
		contactID = s.Customer.ID
	}

	category := domain.CategoryForScore(score)
	if m.evaluator != nil {
		src := domain.EvaluationSource{Channel: config.ChannelTelegram, ContactID: contactID}
		ev, err := invoke(ctx, m.policy, "evaluate", func(ctx context.Context) (*domain.Evaluation, error) {
			return m.evaluator.Evaluate(ctx, score, s.Feedback, src)
		})
		if err != nil {
			m.log.WarnContext(ctx, "evaluation failed", "identity", s.Identity, "error", err)
		} else if ev != nil {
			category = ev.Classification.Category
			m.log.InfoContext(ctx, "response evaluated",
				"identity", s.Identity,
				"category", ev.Classification.Category,
				"priority", ev.Priority,
			)
		}
	}

	if m.campaigns == nil {
		return
	}
	campaign := domain.Campaign{
		ContactID:    contactID,
		Score:        score,
		Feedback:     s.Feedback,
		Category:     category,
		Sentiment:    s.Sentiment,
		ResponseDate: m.now(),
	}
	_, err := invoke(ctx, CallPolicy{Timeout: m.policy.Timeout}, "upsert campaign", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, m.campaigns.UpsertCampaign(ctx, campaign)
	})
	if err != nil {
		m.log.ErrorContext(ctx, "campaign upsert failed", "identity", s.Identity, "error", err)
	}
}

// record appends a message to the history and the transcript.
func (m *Manager) record(ctx context.Context, s *domain.Session, sender domain.Sender, text string, meta map[string]any) {
	s.Append(sender, text, m.now())
	m.persist(ctx, s, sender, text, meta)
}

func (m *Manager) persist(ctx context.Context, s *domain.Session, sender domain.Sender, text string, meta map[string]any) {
	if m.transcript == nil {
		return
	}
	rec := domain.TranscriptRecord{
		ID:         uuid.NewString(),
		Identity:   s.Identity,
		Sender:     sender,
		Text:       text,
		State:      s.State,
		Sentiment:  s.Sentiment,
		ManualMode: s.ManualMode,
		Metadata:   meta,
		CreatedAt:  m.now(),
	}
	if s.NPSScore != nil {
		score := *s.NPSScore
		rec.Score = &score
	}

	appendCtx, cancel := context.WithTimeout(ctx, m.policy.Timeout)
	defer cancel()
	if err := m.transcript.Append(appendCtx, rec); err != nil {
		m.log.WarnContext(ctx, "transcript append failed",
			"identity", s.Identity, "sender", sender, "error", err)
	}
}

func isStartCommand(text string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(text)), config.StartCommand)
}

// startPayload returns whatever follows the start command token.
func startPayload(text string) string {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) < 2 {
		return ""
	}
	return strings.Join(fields[1:], " ")
}
