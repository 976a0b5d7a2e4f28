package domain

type Sentiment string

const (
	SentimentPositive Sentiment = "POSITIVO"
	SentimentNeutral  Sentiment = "NEUTRO"
	SentimentNegative Sentiment = "NEGATIVO"
)

type SentimentResult struct {
	Label        Sentiment
	Satisfaction int
	ChurnRisk    string
	Reason       string
}

// SentimentHint carries what the analyzer may use beyond the feedback text.
type SentimentHint struct {
	Identity string
	Customer *Customer
}

// SentimentForScore buckets a score the way NPS does.
func SentimentForScore(score int) Sentiment {
	switch {
	case score <= 6:
		return SentimentNegative
	case score <= 8:
		return SentimentNeutral
	default:
		return SentimentPositive
	}
}
