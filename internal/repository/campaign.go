package repository

import (
	"context"
	"fmt"

	"github.com/set-night/npsbot/internal/domain"
)

// CampaignRepository keeps the latest NPS answer per contact.
type CampaignRepository struct {
	db DBTX
}

func NewCampaignRepository(db DBTX) *CampaignRepository {
	return &CampaignRepository{db: db}
}

const upsertCampaign = `
INSERT INTO nps_campaigns (contact_id, nps_score, nps_feedback, nps_category, sentiment, response_date)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (contact_id) DO UPDATE SET
    nps_score     = EXCLUDED.nps_score,
    nps_feedback  = EXCLUDED.nps_feedback,
    nps_category  = EXCLUDED.nps_category,
    sentiment     = EXCLUDED.sentiment,
    response_date = EXCLUDED.response_date,
    updated_at    = NOW()`

func (r *CampaignRepository) UpsertCampaign(ctx context.Context, c domain.Campaign) error {
	if c.ContactID == "" {
		return fmt.Errorf("upsert campaign: empty contact id")
	}
	score := c.Score
	_, err := r.db.Exec(ctx, upsertCampaign,
		c.ContactID,
		intPtrToPgInt4(&score),
		stringToPgText(c.Feedback),
		stringToPgText(string(c.Category)),
		stringToPgText(string(c.Sentiment)),
		timeToPgTimestamptz(c.ResponseDate),
	)
	if err != nil {
		return fmt.Errorf("upsert campaign: %w", err)
	}
	return nil
}

const npsMetrics = `
SELECT
    COUNT(*),
    COUNT(*) FILTER (WHERE nps_score >= 9),
    COUNT(*) FILTER (WHERE nps_score BETWEEN 7 AND 8),
    COUNT(*) FILTER (WHERE nps_score <= 6)
FROM nps_campaigns
WHERE nps_score IS NOT NULL`

func (r *CampaignRepository) NPSMetrics(ctx context.Context) (domain.NPSMetrics, error) {
	var m domain.NPSMetrics
	err := r.db.QueryRow(ctx, npsMetrics).Scan(&m.Responses, &m.Promoters, &m.Neutrals, &m.Detractors)
	if err != nil {
		return domain.NPSMetrics{}, fmt.Errorf("query nps metrics: %w", err)
	}
	return m, nil
}
