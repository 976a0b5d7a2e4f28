package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"
	"github.com/shopspring/decimal"

	"github.com/set-night/npsbot/internal/config"
	"github.com/set-night/npsbot/internal/domain"
)

const (
	churnLow    = "BAIXO"
	churnMedium = "MEDIO"
	churnHigh   = "ALTO"
)

// InteractionLogger records collaborator runs for auditing.
type InteractionLogger interface {
	LogInteraction(ctx context.Context, in domain.Interaction) error
}

// SentimentService labels feedback with the LLM and falls back to a local
// heuristic built from the score and the CRM context.
type SentimentService struct {
	llm          Completer
	interactions InteractionLogger
	log          *slog.Logger
}

func NewSentimentService(llm Completer, interactions InteractionLogger) *SentimentService {
	return &SentimentService{
		llm:          llm,
		interactions: interactions,
		log:          slog.Default().With(slog.String("component", "service.sentiment")),
	}
}

func (s *SentimentService) Analyze(ctx context.Context, feedback string, score int, hint domain.SentimentHint) (domain.SentimentResult, error) {
	start := time.Now()
	prompt := buildSentimentPrompt(feedback, score, hint.Customer)

	var (
		result domain.SentimentResult
		errMsg string
	)
	if s.llm != nil {
		raw, err := completeWithin(ctx, s.llm, prompt, config.SentimentMaxTokens)
		if err == nil {
			result, err = parseSentiment(raw)
		}
		if err != nil {
			s.log.WarnContext(ctx, "llm sentiment failed, using heuristic", "identity", hint.Identity, "error", err)
			errMsg = err.Error()
		}
	}
	if result.Label == "" {
		result = localSentiment(score, hint.Customer)
	}

	s.logInteraction(ctx, hint, feedback, score, len(prompt), result, errMsg, time.Since(start))
	return result, nil
}

func (s *SentimentService) logInteraction(ctx context.Context, hint domain.SentimentHint, feedback string, score, promptLen int, result domain.SentimentResult, errMsg string, took time.Duration) {
	if s.interactions == nil {
		return
	}
	contactID := hint.Identity
	if hint.Customer != nil && hint.Customer.ID != "" {
		contactID = hint.Customer.ID
	}
	auditCtx, cancel := auditContext(ctx)
	defer cancel()
	err := s.interactions.LogInteraction(auditCtx, domain.Interaction{
		ContactID: contactID,
		Type:      domain.InteractionSentiment,
		Agent:     "SentimentService",
		Input: map[string]any{
			"nps_score":  score,
			"feedback":   feedback,
			"prompt_len": promptLen,
		},
		Output: map[string]any{
			"sentimento_geral": result.Label,
			"nivel_satisfacao": result.Satisfaction,
			"risco_churn":      result.ChurnRisk,
			"justificativa":    result.Reason,
		},
		Success:        true,
		ErrorMessage:   errMsg,
		ProcessingTime: took,
	})
	if err != nil {
		s.log.WarnContext(ctx, "log interaction failed", "error", err)
	}
}

func buildSentimentPrompt(feedback string, score int, c *domain.Customer) string {
	var b strings.Builder
	b.WriteString("Analise a avaliação NPS abaixo e determine o sentimento do cliente e o risco de churn.\n\n")
	fmt.Fprintf(&b, "NOTA: %d/10\n", score)
	fmt.Fprintf(&b, "FEEDBACK: \"%s\"\n", strings.TrimSpace(feedback))

	if c != nil {
		fmt.Fprintf(&b, "\nCLIENTE: %s\n", strings.TrimSpace(c.FirstName+" "+c.LastName))
		if cc := c.Context; cc != nil {
			fmt.Fprintf(&b, "Valor total em negócios: R$ %s\n", cc.TotalValue.StringFixed(2))
			fmt.Fprintf(&b, "Negócios: %d | Tickets: %d | Notas: %d | E-mails: %d (últimos 30 dias)\n",
				cc.Deals, cc.Tickets, cc.Notes, cc.Emails)
		}
	}

	b.WriteString(`
Retorne APENAS um JSON com:
{
  "sentimento_geral": "POSITIVO/NEUTRO/NEGATIVO",
  "nivel_satisfacao": 1-10,
  "risco_churn": "BAIXO/MEDIO/ALTO",
  "justificativa": "explicação breve"
}`)
	return b.String()
}

type sentimentPayload struct {
	Label        string `json:"sentimento_geral"`
	Satisfaction any    `json:"nivel_satisfacao"`
	ChurnRisk    string `json:"risco_churn"`
	Reason       string `json:"justificativa"`
}

// parseSentiment reads the model answer, repairing the JSON when needed.
func parseSentiment(raw string) (domain.SentimentResult, error) {
	body := extractJSONObject(raw)
	if body == "" {
		return domain.SentimentResult{}, errors.New("no json object in completion")
	}

	var p sentimentPayload
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		repaired, rerr := jsonrepair.JSONRepair(body)
		if rerr != nil {
			return domain.SentimentResult{}, fmt.Errorf("repair sentiment json: %w", rerr)
		}
		if err := json.Unmarshal([]byte(repaired), &p); err != nil {
			return domain.SentimentResult{}, fmt.Errorf("parse sentiment json: %w", err)
		}
	}

	label := domain.Sentiment(strings.ToUpper(strings.TrimSpace(p.Label)))
	switch label {
	case domain.SentimentPositive, domain.SentimentNeutral, domain.SentimentNegative:
	default:
		return domain.SentimentResult{}, fmt.Errorf("unexpected sentiment label %q", p.Label)
	}

	return domain.SentimentResult{
		Label:        label,
		Satisfaction: clampSatisfaction(p.Satisfaction),
		ChurnRisk:    strings.ToUpper(strings.TrimSpace(p.ChurnRisk)),
		Reason:       strings.TrimSpace(p.Reason),
	}, nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	if start < 0 {
		return ""
	}
	end := strings.LastIndex(raw, "}")
	if end < start {
		return raw[start:]
	}
	return raw[start : end+1]
}

func clampSatisfaction(v any) int {
	var n int
	switch t := v.(type) {
	case float64:
		n = int(t)
	case string:
		n, _ = strconv.Atoi(strings.TrimSpace(t))
	}
	return max(0, min(10, n))
}

var (
	highValue = decimal.NewFromInt(50000)
	midValue  = decimal.NewFromInt(10000)
	lowValue  = decimal.NewFromInt(1000)
)

// localSentiment labels by score bucket; churn risk comes from CRM activity
// when the customer is known.
func localSentiment(score int, c *domain.Customer) domain.SentimentResult {
	res := domain.SentimentResult{
		Label:        domain.SentimentForScore(score),
		Satisfaction: score,
	}
	switch res.Label {
	case domain.SentimentNegative:
		res.ChurnRisk = churnHigh
	case domain.SentimentNeutral:
		res.ChurnRisk = churnMedium
	default:
		res.ChurnRisk = churnLow
	}

	if c == nil || c.Context == nil {
		res.Reason = fmt.Sprintf("Classificado pela nota %d/10", score)
		return res
	}

	cc := c.Context
	health := 5
	switch {
	case cc.TotalValue.GreaterThan(highValue):
		health += 2
	case cc.TotalValue.GreaterThan(midValue):
		health++
	case cc.TotalValue.LessThan(lowValue):
		health--
	}
	switch {
	case cc.Tickets == 0:
		health += 2
	case cc.Tickets >= 3:
		health -= 2
	}
	if health < 5 && res.ChurnRisk == churnLow {
		res.ChurnRisk = churnMedium
	}
	if health >= 8 && res.ChurnRisk == churnHigh {
		res.ChurnRisk = churnMedium
	}

	var reasons []string
	if cc.TotalValue.IsPositive() {
		reasons = append(reasons, fmt.Sprintf("Cliente com R$ %s em negócios", cc.TotalValue.StringFixed(2)))
	}
	if cc.Tickets > 0 {
		reasons = append(reasons, fmt.Sprintf("Possui %d ticket(s) aberto(s)", cc.Tickets))
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "Perfil de cliente regular")
	}
	res.Reason = strings.Join(reasons, "; ")
	return res
}
