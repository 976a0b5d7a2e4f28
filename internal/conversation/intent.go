package conversation

import (
	"regexp"
	"strings"
)

// Intent is the reading of a reply to the "may I ask you?" question.
type Intent string

const (
	IntentConfirm Intent = "confirm"
	IntentDecline Intent = "decline"
	IntentDetails Intent = "details"
	IntentUnknown Intent = "unknown"
)

var (
	whitespace = regexp.MustCompile(`\s+`)

	detailPhrases = []string{
		"como atribuo",
		"como faço",
		"como faco",
		"como fazer",
		"como funciona",
		"como deixo",
		"como dou",
		"como dar",
		"como avaliar",
		"como envio",
		"como mandar",
		"mais detalhes",
		"detalhes",
		"explica",
		"explicar",
		"o que é isso",
		"o que e isso",
	}
	howVerb = regexp.MustCompile(`\b(atribuir|atribuo|fa[cç]o|faco|faz|fazer|funciona|deixo|dar|nota|avaliar)\b`)

	confirmWords = regexp.MustCompile(`\b(sim|claro|ok|okay|certo|beleza|pode|pode ser|vamos|bora)\b`)
	declineWords = regexp.MustCompile(`\b(n[aã]o|nao)\b`)

	softDeclines = []string{"prefiro não", "prefiro nao", "agora não", "agora nao", "depois"}
)

func normalize(text string) string {
	return whitespace.ReplaceAllString(strings.ToLower(strings.TrimSpace(text)), " ")
}

// ClassifyIntent reads a short free-text reply. Questions about how to answer
// outrank a plain yes.
func ClassifyIntent(text string) Intent {
	n := normalize(text)
	if n == "" {
		return IntentUnknown
	}

	if containsAny(n, detailPhrases) {
		return IntentDetails
	}
	if strings.Contains(n, "como") && howVerb.MatchString(n) {
		return IntentDetails
	}
	if confirmWords.MatchString(n) {
		return IntentConfirm
	}
	if declineWords.MatchString(n) || containsAny(n, softDeclines) {
		return IntentDecline
	}
	return IntentUnknown
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
