package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/set-night/npsbot/internal/config"
	"github.com/set-night/npsbot/internal/conversation"
	"github.com/set-night/npsbot/internal/domain"
)

const (
	historyForReply = 10
	quoteLimit      = 50
)

// ReplyService writes the closing message of a round. Without a working LLM
// it picks a keyword template matching the feedback.
type ReplyService struct {
	llm Completer
	log *slog.Logger
}

func NewReplyService(llm Completer) *ReplyService {
	return &ReplyService{
		llm: llm,
		log: slog.Default().With(slog.String("component", "service.reply")),
	}
}

func (s *ReplyService) Generate(ctx context.Context, req domain.ReplyRequest) (string, error) {
	if s.llm != nil {
		out, err := completeWithin(ctx, s.llm, buildReplyPrompt(req), config.ReplyMaxTokens)
		if err == nil {
			if text := sanitizeReply(out); text != "" {
				return text, nil
			}
		} else {
			s.log.WarnContext(ctx, "llm reply failed, using template", "score", req.Score, "error", err)
		}
	}
	return EmpatheticTemplate(req.Score, req.Feedback), nil
}

func (s *ReplyService) Greet(_ context.Context, c *domain.Customer) (string, error) {
	return conversation.GreetingMessage(c), nil
}

func (s *ReplyService) Clarify(ctx context.Context, text string) (string, error) {
	if s.llm == nil {
		return "", domain.ErrCollaboratorUnavailable
	}
	out, err := completeWithin(ctx, s.llm, buildClarifyPrompt(text), config.ClarifyMaxTokens)
	if err != nil {
		return "", err
	}
	if text := sanitizeReply(out); text != "" {
		return text, nil
	}
	return "", domain.ErrEmptyCompletion
}

func buildReplyPrompt(req domain.ReplyRequest) string {
	var b strings.Builder
	b.WriteString("Você é a Tess, assistente de qualidade da Pareto. O cliente acabou de responder a pesquisa NPS.\n\n")
	fmt.Fprintf(&b, "NOTA: %d/10 (%s)\n", req.Score, domain.CategoryForScore(req.Score))
	fmt.Fprintf(&b, "FEEDBACK: \"%s\"\n", strings.TrimSpace(req.Feedback))
	if req.Sentiment.Label != "" {
		fmt.Fprintf(&b, "SENTIMENTO: %s (risco de churn: %s)\n", req.Sentiment.Label, orDash(req.Sentiment.ChurnRisk))
	}
	if req.Customer != nil && req.Customer.FirstName != "" {
		fmt.Fprintf(&b, "NOME DO CLIENTE: %s\n", req.Customer.FirstName)
	}

	history := req.History
	if len(history) > historyForReply {
		history = history[len(history)-historyForReply:]
	}
	if len(history) > 0 {
		b.WriteString("\nCONVERSA:\n")
		for _, m := range history {
			fmt.Fprintf(&b, "%s: %s\n", m.Sender, m.Text)
		}
	}

	b.WriteString(`
Escreva uma resposta empática e específica ao feedback:
- Agradeça a avaliação
- Se a nota for baixa, reconheça o problema e peça detalhes
- Se for alta, comemore e pergunte o que mais gostou
- Sem HTML, no máximo 3 linhas

Resposta:`)
	return b.String()
}

func buildClarifyPrompt(text string) string {
	return fmt.Sprintf(`Você é a Tess, assistente da Pareto. Está coletando avaliação NPS.

Usuário disse: "%s"

Você precisa de uma nota de 0 a 10, mas o usuário não deu.

Responda:
1. Primeiro, responda a mensagem deles de forma natural
2. Depois, peça a nota de 0 a 10

Diretrizes:
- Sem emojis
- Natural e conversacional
- Máximo 2-3 linhas

Resposta:`, strings.TrimSpace(text))
}

// sanitizeReply drops markup the model may have produced.
func sanitizeReply(s string) string {
	s = strings.TrimSpace(s)
	if strings.ContainsAny(s, "<>") {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
		if err == nil {
			s = doc.Text()
		}
	}
	return strings.TrimSpace(s)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

type keywordTemplate struct {
	words    []string
	template string
}

var (
	detractorTemplates = []keywordTemplate{
		{[]string{"atendimento", "suporte", "resposta", "contato"},
			"Poxa, que situação chata com o atendimento. 😔 Você mencionou '%s' - pode me contar mais detalhes sobre o que aconteceu? Queremos muito corrigir isso."},
		{[]string{"produto", "qualidade", "funciona", "bug", "erro"},
			"Entendo sua frustração com o produto. 😔 Sobre '%s' - isso não deveria acontecer. Pode me explicar melhor para eu escalar pro time técnico?"},
		{[]string{"preço", "caro", "valor", "custo"},
			"Entendo sua preocupação com o valor. Sobre '%s' - queremos entender melhor sua percepção. Pode me contar mais?"},
		{nil,
			"Poxa, sentimos muito. 😔 Vi que você mencionou '%s' - pode me contar mais detalhes? Queremos muito melhorar isso."},
	}
	neutralTemplates = []keywordTemplate{
		{[]string{"ok", "normal", "médio", "razoável"},
			"Legal que tá funcionando! Mas vi que você disse '%s' - o que falta para ser perfeito? Pode ser bem sincero!"},
		{[]string{"poderia", "falta", "melhorar", "gostaria"},
			"Obrigado pelo feedback! Sobre '%s' - adoraríamos ouvir mais sugestões. O que mais poderíamos fazer?"},
		{nil,
			"Obrigado! Vi que você mencionou '%s' - tem mais alguma coisa que poderíamos melhorar? Sua opinião é muito valiosa!"},
	}
	promoterTemplates = []keywordTemplate{
		{[]string{"adorei", "amei", "excelente", "perfeito", "ótimo"},
			"Que alegria ouvir isso! 🤩 Sobre '%s' - fico super feliz que você curtiu! Quer contar mais sobre o que te surpreendeu?"},
		{[]string{"equipe", "atendimento", "time", "pessoal"},
			"Que feedback incrível! 🤩 A equipe vai adorar saber sobre '%s' - tem mais algum detalhe que você queira compartilhar?"},
		{nil,
			"Muito obrigado! 🤩 Adoramos saber sobre '%s' - quer contar mais sobre o que você mais gostou?"},
	}
)

const (
	detractorNoFeedback = "Opa, vi que você deu uma nota baixa. 😔 Rolou algum problema específico? Conta pra gente, queremos muito entender e melhorar."
	neutralNoFeedback   = "Obrigado pelo feedback! O que falta para ser perfeito pra você? Pode ser sincero, vai nos ajudar muito! 💙"
	promoterNoFeedback  = "Que alegria saber disso! 🤩 Muito obrigado pela confiança. Se quiser compartilhar o que você mais gostou, ficaremos felizes em ouvir!"
)

// EmpatheticTemplate picks a canned reply by score bucket and feedback keywords.
func EmpatheticTemplate(score int, feedback string) string {
	feedback = strings.TrimSpace(feedback)
	hasFeedback := len([]rune(feedback)) > 3

	var (
		templates []keywordTemplate
		empty     string
	)
	switch domain.CategoryForScore(score) {
	case domain.CategoryDetractor:
		templates, empty = detractorTemplates, detractorNoFeedback
	case domain.CategoryNeutral:
		templates, empty = neutralTemplates, neutralNoFeedback
	default:
		templates, empty = promoterTemplates, promoterNoFeedback
	}
	if !hasFeedback {
		return empty
	}

	lower := strings.ToLower(feedback)
	quote := quoteFeedback(feedback)
	for _, t := range templates {
		if t.words == nil || containsAnyWord(lower, t.words) {
			return fmt.Sprintf(t.template, quote)
		}
	}
	return empty
}

func quoteFeedback(feedback string) string {
	r := []rune(feedback)
	if len(r) > quoteLimit {
		r = r[:quoteLimit]
	}
	return string(r) + "..."
}

func containsAnyWord(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
