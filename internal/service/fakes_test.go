package service

import (
	"context"
	"sync"

	"github.com/set-night/npsbot/internal/domain"
)

type fakeCompleter struct {
	mu      sync.Mutex
	out     string
	err     error
	prompts []string
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string, _ int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	return f.out, f.err
}

// blockingCompleter answers only when its context ends.
type blockingCompleter struct{}

func (blockingCompleter) Complete(ctx context.Context, _ string, _ int) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

type memInteractions struct {
	mu      sync.Mutex
	items   []domain.Interaction
	ctxErrs []error
}

func (m *memInteractions) LogInteraction(ctx context.Context, in domain.Interaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, in)
	m.ctxErrs = append(m.ctxErrs, ctx.Err())
	return ctx.Err()
}

type fakeAlerter struct {
	contactIDs []string
}

func (f *fakeAlerter) AlertDetractor(_ context.Context, contactID string, _ *domain.Evaluation) {
	f.contactIDs = append(f.contactIDs, contactID)
}
