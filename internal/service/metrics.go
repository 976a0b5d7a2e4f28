package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/set-night/npsbot/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// NPSReport is the consolidated view of answered campaigns.
type NPSReport struct {
	Responses     int64           `json:"total_respostas"`
	Detractors    int64           `json:"detratores"`
	Neutrals      int64           `json:"neutros"`
	Promoters     int64           `json:"promotores"`
	NPS           decimal.Decimal `json:"nps_score"`
	DetractorsPct decimal.Decimal `json:"detratores_pct"`
	NeutralsPct   decimal.Decimal `json:"neutros_pct"`
	PromotersPct  decimal.Decimal `json:"promotores_pct"`
}

// ComputeNPS derives the score as the percentage of promoters minus the
// percentage of detractors, rounded to one decimal place.
func ComputeNPS(m domain.NPSMetrics) NPSReport {
	r := NPSReport{
		Responses:  m.Responses,
		Detractors: m.Detractors,
		Neutrals:   m.Neutrals,
		Promoters:  m.Promoters,
	}
	if m.Responses <= 0 {
		return r
	}

	total := decimal.NewFromInt(m.Responses)
	pct := func(n int64) decimal.Decimal {
		return decimal.NewFromInt(n).Mul(hundred).Div(total).Round(1)
	}
	r.DetractorsPct = pct(m.Detractors)
	r.NeutralsPct = pct(m.Neutrals)
	r.PromotersPct = pct(m.Promoters)
	r.NPS = decimal.NewFromInt(m.Promoters - m.Detractors).Mul(hundred).Div(total).Round(1)
	return r
}

// MetricsSource reads aggregated campaign answers.
type MetricsSource interface {
	NPSMetrics(ctx context.Context) (domain.NPSMetrics, error)
}

type MetricsService struct {
	source MetricsSource
}

func NewMetricsService(source MetricsSource) *MetricsService {
	return &MetricsService{source: source}
}

func (s *MetricsService) Report(ctx context.Context) (NPSReport, error) {
	m, err := s.source.NPSMetrics(ctx)
	if err != nil {
		return NPSReport{}, err
	}
	return ComputeNPS(m), nil
}
