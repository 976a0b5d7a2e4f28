package domain

import "time"

// TranscriptRecord is one persisted line of a conversation.
type TranscriptRecord struct {
	ID         string
	Identity   string
	Sender     Sender
	Text       string
	State      State
	Score      *int
	Sentiment  Sentiment
	ManualMode bool
	Metadata   map[string]any
	CreatedAt  time.Time
}

type Campaign struct {
	ContactID    string
	Score        int
	Feedback     string
	Category     Category
	Sentiment    Sentiment
	ResponseDate time.Time
}

type InteractionType string

const (
	InteractionSentiment  InteractionType = "sentiment_analysis"
	InteractionEvaluation InteractionType = "nps_response_evaluation"
)

// Interaction is an audit row of a collaborator run.
type Interaction struct {
	ContactID      string
	Type           InteractionType
	Agent          string
	Input          map[string]any
	Output         any
	Success        bool
	ErrorMessage   string
	ProcessingTime time.Duration
}

// NPSMetrics aggregates answered campaigns.
type NPSMetrics struct {
	Responses  int64
	Promoters  int64
	Neutrals   int64
	Detractors int64
}
