package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/set-night/npsbot/internal/config"
	"github.com/set-night/npsbot/internal/domain"
)

const (
	sentimentVeryPositive = "MUITO_POSITIVO"
	sentimentAbsent       = "AUSENTE"

	intensityHigh   = "alta"
	intensityMedium = "media"
)

// DetractorAlerter is notified about every detractor answer.
type DetractorAlerter interface {
	AlertDetractor(ctx context.Context, contactID string, ev *domain.Evaluation)
}

// EvaluatorService classifies an NPS answer, extracts insights and recommends
// follow-up actions.
type EvaluatorService struct {
	llm          Completer
	interactions InteractionLogger
	alerts       DetractorAlerter
	log          *slog.Logger
}

func NewEvaluatorService(llm Completer, interactions InteractionLogger, alerts DetractorAlerter) *EvaluatorService {
	return &EvaluatorService{
		llm:          llm,
		interactions: interactions,
		alerts:       alerts,
		log:          slog.Default().With(slog.String("component", "service.evaluator")),
	}
}

func (s *EvaluatorService) Evaluate(ctx context.Context, score int, feedback string, src domain.EvaluationSource) (*domain.Evaluation, error) {
	if score < 0 || score > 10 {
		return nil, fmt.Errorf("evaluate score %d: %w", score, domain.ErrInvalidEvent)
	}
	start := time.Now()

	classification := classify(score)
	insights := extractInsights(feedback, score)
	ev := &domain.Evaluation{
		Score:          score,
		Classification: classification,
		Feedback:       feedback,
		Insights:       insights,
		Actions:        recommendActions(score, insights),
		Priority:       priorityFor(score, insights),
	}
	ev.Summary = s.summarize(ctx, ev)

	s.log.InfoContext(ctx, "nps evaluated",
		"contact_id", src.ContactID,
		"category", classification.Category,
		"priority", ev.Priority,
	)

	if s.interactions != nil {
		auditCtx, cancel := auditContext(ctx)
		err := s.interactions.LogInteraction(auditCtx, domain.Interaction{
			ContactID:      src.ContactID,
			Type:           domain.InteractionEvaluation,
			Agent:          "EvaluatorService",
			Input:          map[string]any{"nps_score": score, "feedback": feedback, "source": src.Channel},
			Output:         ev,
			Success:        true,
			ProcessingTime: time.Since(start),
		})
		cancel()
		if err != nil {
			s.log.WarnContext(ctx, "log interaction failed", "error", err)
		}
	}

	if s.alerts != nil && classification.Category == domain.CategoryDetractor {
		s.alerts.AlertDetractor(ctx, src.ContactID, ev)
	}
	return ev, nil
}

func classify(score int) domain.Classification {
	switch domain.CategoryForScore(score) {
	case domain.CategoryDetractor:
		return domain.Classification{
			Category:     domain.CategoryDetractor,
			Emoji:        "😠",
			Description:  "Cliente insatisfeito - risco de churn",
			Contribution: -1,
		}
	case domain.CategoryNeutral:
		return domain.Classification{
			Category:    domain.CategoryNeutral,
			Emoji:       "😐",
			Description: "Cliente satisfeito mas não engajado",
		}
	case domain.CategoryPromoter:
		return domain.Classification{
			Category:     domain.CategoryPromoter,
			Emoji:        "🤩",
			Description:  "Cliente entusiasta - potencial evangelista",
			Contribution: 1,
		}
	default:
		return domain.Classification{
			Category:    domain.CategoryInvalid,
			Emoji:       "❓",
			Description: "Nota fora da escala 0-10",
		}
	}
}

var (
	positiveWords = []string{"ótimo", "excelente", "maravilhoso", "perfeito", "adorei",
		"muito bom", "satisfeito", "recomendo", "parabens", "top"}
	negativeWords = []string{"ruim", "péssimo", "horrível", "decepcionante", "problema",
		"demora", "lento", "erro", "falha", "insatisfeito", "reclama"}

	themeOrder = []string{"atendimento", "produto", "preço", "velocidade", "qualidade", "comunicação"}
	themeWords = map[string][]string{
		"atendimento": {"atendimento", "suporte", "atendente", "equipe", "gente"},
		"produto":     {"produto", "sistema", "plataforma", "software", "ferramenta"},
		"preço":       {"preço", "custo", "valor", "caro", "barato", "investimento"},
		"velocidade":  {"rápido", "lento", "demora", "tempo", "agilidade", "demorou"},
		"qualidade":   {"qualidade", "excelente", "ruim", "bom", "standard"},
		"comunicação": {"comunicação", "resposta", "retorno", "feedback", "contato"},
	}

	keywordStopwords = map[string]bool{
		"muito": true, "para": true, "como": true, "esta": true, "este": true, "essa": true, "esse": true,
	}
)

const maxKeywords = 5

func extractInsights(feedback string, score int) domain.Insights {
	in := domain.Insights{
		Sentiment: string(domain.SentimentNeutral),
		Themes:    []string{},
		Keywords:  []string{},
		Intensity: intensityMedium,
	}
	if strings.TrimSpace(feedback) == "" {
		in.Sentiment = sentimentAbsent
		return in
	}

	lower := strings.ToLower(feedback)
	pos, neg := countWords(lower, positiveWords), countWords(lower, negativeWords)
	switch {
	case score >= 9 && pos > neg:
		in.Sentiment = sentimentVeryPositive
		in.Intensity = intensityHigh
	case score >= 7 && pos >= neg:
		in.Sentiment = string(domain.SentimentPositive)
	case score <= 6 && neg > pos:
		in.Sentiment = string(domain.SentimentNegative)
		if neg >= 2 {
			in.Intensity = intensityHigh
		}
	case score <= 6:
		in.Sentiment = string(domain.SentimentNegative)
	}

	for _, theme := range themeOrder {
		if containsAnyWord(lower, themeWords[theme]) {
			in.Themes = append(in.Themes, theme)
		}
	}

	for _, w := range strings.Fields(feedback) {
		if len(in.Keywords) == maxKeywords {
			break
		}
		if utf8.RuneCountInString(w) > 4 && !keywordStopwords[strings.ToLower(w)] {
			in.Keywords = append(in.Keywords, w)
		}
	}
	return in
}

func countWords(s string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(s, w) {
			n++
		}
	}
	return n
}

func recommendActions(score int, in domain.Insights) []domain.Action {
	switch domain.CategoryForScore(score) {
	case domain.CategoryDetractor:
		actions := []domain.Action{{
			Kind: "alerta", Action: "Contato imediato do CS - entender problema",
			Urgency: "alta", Owner: "Customer Success",
		}}
		for i, theme := range in.Themes {
			if i == 2 {
				break
			}
			actions = append(actions, domain.Action{
				Kind: "melhoria", Action: fmt.Sprintf("Revisar %s - identificado como problema", theme),
				Urgency: "media", Owner: "Product/Operations",
			})
		}
		return append(actions, domain.Action{
			Kind: "recuperacao", Action: "Oferecer compensação/benefício para recuperar confiança",
			Urgency: "media", Owner: "CS Manager",
		})
	case domain.CategoryNeutral:
		return []domain.Action{
			{Kind: "engajamento", Action: "Enviar material sobre novidades/features não utilizadas", Urgency: "baixa", Owner: "Marketing"},
			{Kind: "pesquisa", Action: "Follow-up qualitativo: o que falta para nota 10?", Urgency: "baixa", Owner: "CS"},
		}
	default:
		return []domain.Action{
			{Kind: "celebracao", Action: "Agradecimento personalizado do CEO/founder", Urgency: "baixa", Owner: "Leadership"},
			{Kind: "advocacia", Action: "Convidar para programa de embaixador/referência", Urgency: "baixa", Owner: "Marketing"},
			{Kind: "depoimento", Action: "Solicitar case study/depoimento para site", Urgency: "baixa", Owner: "Marketing"},
		}
	}
}

func priorityFor(score int, in domain.Insights) domain.Priority {
	switch {
	case score <= 4:
		return domain.PriorityUrgent
	case score <= 6:
		return domain.PriorityHigh
	case score <= 8 && in.Intensity == intensityHigh:
		return domain.PriorityMedium
	default:
		return domain.PriorityLow
	}
}

func (s *EvaluatorService) summarize(ctx context.Context, ev *domain.Evaluation) string {
	if s.llm != nil {
		out, err := completeWithin(ctx, s.llm, buildSummaryPrompt(ev), config.SummaryMaxTokens)
		if err == nil {
			if text := sanitizeReply(out); text != "" {
				return text
			}
		} else {
			s.log.WarnContext(ctx, "llm summary failed, using template", "error", err)
		}
	}
	return fallbackSummary(ev)
}

func buildSummaryPrompt(ev *domain.Evaluation) string {
	feedback := strings.TrimSpace(ev.Feedback)
	if feedback == "" {
		feedback = "Sem feedback textual"
	}
	themes := "Nenhum"
	if len(ev.Insights.Themes) > 0 {
		themes = strings.Join(ev.Insights.Themes, ", ")
	}

	return fmt.Sprintf(`Você é um analista de experiência do cliente especializado em NPS.

DADOS DA AVALIAÇÃO:
- Score NPS: %d/10
- Categoria: %s
- Sentimento detectado: %s
- Feedback textual: "%s"
- Temas identificados: %s

TAREFA:
Crie um resumo executivo CONCISO, ESPECÍFICO e ACIONÁVEL desta avaliação NPS.

FORMATO OBRIGATÓRIO:
%s [Classificação] - [Insight principal baseado no feedback]. [Ação sugerida específica].

DIRETRIZES:
- Máximo 2 linhas
- Mencione detalhes do feedback se houver
- Sugira ação CLARA e ACIONÁVEL

IMPORTANTE: Retorne APENAS o resumo, sem explicações.`,
		ev.Score, ev.Classification.Category, ev.Insights.Sentiment, feedback, themes, ev.Classification.Emoji)
}

func fallbackSummary(ev *domain.Evaluation) string {
	c := ev.Classification
	switch c.Category {
	case domain.CategoryDetractor:
		themes := "Nenhum identificado"
		if len(ev.Insights.Themes) > 0 {
			themes = strings.Join(ev.Insights.Themes, ", ")
		}
		return fmt.Sprintf("%s Cliente DETRATOR (%d/10) - REQUER AÇÃO IMEDIATA. Sentimento: %s. Temas: %s.",
			c.Emoji, ev.Score, ev.Insights.Sentiment, themes)
	case domain.CategoryNeutral:
		return fmt.Sprintf("%s Cliente NEUTRO (%d/10) - Oportunidade de engajamento. Sentimento: %s. Potencial de conversão para Promotor.",
			c.Emoji, ev.Score, ev.Insights.Sentiment)
	case domain.CategoryPromoter:
		return fmt.Sprintf("%s Cliente PROMOTOR (%d/10) - Excelente! Sentimento: %s. Candidato a programa de advocacia.",
			c.Emoji, ev.Score, ev.Insights.Sentiment)
	default:
		return fmt.Sprintf("❓ Nota inválida (%d) - Verificar resposta.", ev.Score)
	}
}
