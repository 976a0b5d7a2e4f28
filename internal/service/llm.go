package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/set-night/npsbot/internal/config"
	"github.com/set-night/npsbot/internal/domain"
)

// Completer turns a prompt into text.
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// LLMService talks to an OpenAI-compatible chat endpoint.
type LLMService struct {
	model       llms.Model
	temperature float64
	timeout     time.Duration
}

func NewLLMService(cfg *config.Config) (*LLMService, error) {
	opts := []openai.Option{
		openai.WithModel(cfg.LLMModel),
		openai.WithToken(cfg.LLMAPIKey),
	}
	if cfg.LLMBaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.LLMBaseURL))
	}

	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create llm client: %w", err)
	}
	return &LLMService{model: model, temperature: cfg.LLMTemperature, timeout: requestTimeout(cfg)}, nil
}

// requestTimeout keeps a single completion inside one collaborator attempt.
func requestTimeout(cfg *config.Config) time.Duration {
	timeout := config.LLMRequestTimeout
	if cfg.CollaboratorTimeout > 0 {
		timeout = min(timeout, cfg.CollaboratorTimeout*3/4)
	}
	return timeout
}

// completeWithin runs the completion on a deadline that leaves a quarter of
// the caller's remaining time for the fallback path and the audit write.
func completeWithin(ctx context.Context, llm Completer, prompt string, maxTokens int) (string, error) {
	if deadline, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Until(deadline)*3/4)
		defer cancel()
	}
	return llm.Complete(ctx, prompt, maxTokens)
}

// auditContext detaches an audit write from the caller's cancellation.
func auditContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), config.AuditWriteTimeout)
}

func (s *LLMService) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := llms.GenerateFromSinglePrompt(ctx, s.model, prompt,
		llms.WithTemperature(s.temperature),
		llms.WithMaxTokens(maxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("llm completion: %w", err)
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return "", domain.ErrEmptyCompletion
	}
	return out, nil
}
