package domain

// Category is the NPS bucket of a score.
type Category string

const (
	CategoryDetractor Category = "DETRATOR"
	CategoryNeutral   Category = "NEUTRO"
	CategoryPromoter  Category = "PROMOTOR"
	CategoryInvalid   Category = "INVALIDO"
)

func CategoryForScore(score int) Category {
	switch {
	case score < 0 || score > 10:
		return CategoryInvalid
	case score <= 6:
		return CategoryDetractor
	case score <= 8:
		return CategoryNeutral
	default:
		return CategoryPromoter
	}
}

type Priority string

const (
	PriorityUrgent Priority = "URGENTE"
	PriorityHigh   Priority = "ALTA"
	PriorityMedium Priority = "MEDIA"
	PriorityLow    Priority = "BAIXA"
)

type Classification struct {
	Category     Category `json:"categoria"`
	Emoji        string   `json:"emoji"`
	Description  string   `json:"descricao"`
	Contribution int      `json:"nps_contribution"`
}

type Insights struct {
	Sentiment string   `json:"sentimento_detectado"`
	Themes    []string `json:"temas"`
	Keywords  []string `json:"palavras_chave"`
	Intensity string   `json:"intensidade"`
}

type Action struct {
	Kind    string `json:"tipo"`
	Action  string `json:"acao"`
	Urgency string `json:"urgencia"`
	Owner   string `json:"responsavel"`
}

type Evaluation struct {
	Score          int            `json:"nps_score"`
	Classification Classification `json:"classificacao"`
	Feedback       string         `json:"feedback_texto"`
	Insights       Insights       `json:"insights"`
	Actions        []Action       `json:"acoes_recomendadas"`
	Priority       Priority       `json:"prioridade"`
	Summary        string         `json:"resumo_executivo"`
}

// EvaluationSource describes where a rating came from.
type EvaluationSource struct {
	Channel   string
	ContactID string
}
