package conversation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/set-night/npsbot/internal/domain"
)

type fakeResolver struct {
	customer *domain.Customer
	err      error
	calls    atomic.Int32
}

func (f *fakeResolver) Resolve(_ context.Context, _, _ string) (*domain.Customer, error) {
	f.calls.Add(1)
	return f.customer, f.err
}

type fakeSentiment struct {
	result domain.SentimentResult
	err    error
	calls  atomic.Int32
}

func (f *fakeSentiment) Analyze(_ context.Context, _ string, _ int, _ domain.SentimentHint) (domain.SentimentResult, error) {
	f.calls.Add(1)
	return f.result, f.err
}

type fakeReplies struct {
	generateErr error
	block       bool
	clarify     string
	calls       atomic.Int32
	lastRequest domain.ReplyRequest
}

func (f *fakeReplies) Generate(ctx context.Context, req domain.ReplyRequest) (string, error) {
	f.calls.Add(1)
	f.lastRequest = req
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if f.generateErr != nil {
		return "", f.generateErr
	}
	return fmt.Sprintf("reply %d", req.Score), nil
}

func (f *fakeReplies) Greet(_ context.Context, c *domain.Customer) (string, error) {
	return GreetingMessage(c), nil
}

func (f *fakeReplies) Clarify(_ context.Context, _ string) (string, error) {
	return f.clarify, nil
}

type fakeEvaluator struct {
	err   error
	calls atomic.Int32
}

func (f *fakeEvaluator) Evaluate(_ context.Context, score int, feedback string, _ domain.EvaluationSource) (*domain.Evaluation, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Evaluation{
		Score:    score,
		Feedback: feedback,
		Classification: domain.Classification{
			Category: domain.CategoryForScore(score),
		},
		Priority: domain.PriorityLow,
	}, nil
}

type memTranscript struct {
	mu      sync.Mutex
	records []domain.TranscriptRecord
	err     error
}

func (m *memTranscript) Append(_ context.Context, rec domain.TranscriptRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *memTranscript) bySender(sender domain.Sender) []domain.TranscriptRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.TranscriptRecord
	for _, r := range m.records {
		if r.Sender == sender {
			out = append(out, r)
		}
	}
	return out
}

func (m *memTranscript) withPrefix(prefix string) []domain.TranscriptRecord {
	var out []domain.TranscriptRecord
	for _, r := range m.bySender(domain.SenderSystem) {
		if strings.HasPrefix(r.Text, prefix) {
			out = append(out, r)
		}
	}
	return out
}

type memCampaigns struct {
	mu        sync.Mutex
	campaigns []domain.Campaign
}

func (m *memCampaigns) UpsertCampaign(_ context.Context, c domain.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.campaigns = append(m.campaigns, c)
	return nil
}

func (m *memCampaigns) all() []domain.Campaign {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Campaign(nil), m.campaigns...)
}
