package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/set-night/npsbot/internal/domain"
)

type IdentityResolver interface {
	Resolve(ctx context.Context, identity, displayName string) (*domain.Customer, error)
}

type SentimentAnalyzer interface {
	Analyze(ctx context.Context, feedback string, score int, hint domain.SentimentHint) (domain.SentimentResult, error)
}

type ReplyGenerator interface {
	Generate(ctx context.Context, req domain.ReplyRequest) (string, error)
	Greet(ctx context.Context, customer *domain.Customer) (string, error)
	Clarify(ctx context.Context, text string) (string, error)
}

type Evaluator interface {
	Evaluate(ctx context.Context, score int, feedback string, src domain.EvaluationSource) (*domain.Evaluation, error)
}

// TranscriptSink persists conversation lines. Failures are logged by the caller and never abort a turn.
type TranscriptSink interface {
	Append(ctx context.Context, rec domain.TranscriptRecord) error
}

type CampaignStore interface {
	UpsertCampaign(ctx context.Context, c domain.Campaign) error
}

const (
	DefaultCallTimeout = 8 * time.Second
	maxRetries         = 1
)

// CallPolicy bounds every collaborator call.
type CallPolicy struct {
	Timeout time.Duration
	Retries int
}

func (p CallPolicy) normalized() CallPolicy {
	if p.Timeout <= 0 {
		p.Timeout = DefaultCallTimeout
	}
	if p.Retries < 0 {
		p.Retries = 0
	}
	if p.Retries > maxRetries {
		p.Retries = maxRetries
	}
	return p
}

// invoke runs fn with a per-attempt timeout and at most one retry.
func invoke[T any](ctx context.Context, p CallPolicy, name string, fn func(context.Context) (T, error)) (T, error) {
	p = p.normalized()

	var (
		zero T
		err  error
	)
	for attempt := 0; attempt <= p.Retries; attempt++ {
		var v T
		attemptCtx, cancel := context.WithTimeout(ctx, p.Timeout)
		v, err = fn(attemptCtx)
		cancel()
		if err == nil {
			return v, nil
		}
		if !retryable(ctx, err) {
			break
		}
	}
	return zero, fmt.Errorf("%s: %w", name, err)
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	return !errors.Is(err, domain.ErrCustomerNotFound) && !errors.Is(err, domain.ErrInvalidEvent)
}
