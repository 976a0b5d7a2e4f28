package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/set-night/npsbot/internal/domain"
)

// InteractionRepository audits collaborator runs in nps_interactions.
type InteractionRepository struct {
	db DBTX
}

func NewInteractionRepository(db DBTX) *InteractionRepository {
	return &InteractionRepository{db: db}
}

const insertInteraction = `
INSERT INTO nps_interactions
    (contact_id, interaction_type, agent_name, input_data, output_data, success, error_message, processing_time_ms)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

func (r *InteractionRepository) LogInteraction(ctx context.Context, in domain.Interaction) error {
	input, err := json.Marshal(in.Input)
	if err != nil {
		return fmt.Errorf("marshal interaction input: %w", err)
	}
	output, err := json.Marshal(in.Output)
	if err != nil {
		return fmt.Errorf("marshal interaction output: %w", err)
	}

	contactID := in.ContactID
	if contactID == "" {
		contactID = "unknown"
	}
	ms := float64(in.ProcessingTime.Microseconds()) / 1000

	_, err = r.db.Exec(ctx, insertInteraction,
		contactID,
		string(in.Type),
		in.Agent,
		input,
		output,
		in.Success,
		stringToPgText(in.ErrorMessage),
		ms,
	)
	if err != nil {
		return fmt.Errorf("insert interaction: %w", err)
	}
	return nil
}
