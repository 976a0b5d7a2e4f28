package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/set-night/npsbot/internal/domain"
)

// TranscriptRepository stores every conversation line in conversation_messages.
type TranscriptRepository struct {
	db DBTX
}

func NewTranscriptRepository(db DBTX) *TranscriptRepository {
	return &TranscriptRepository{db: db}
}

const insertMessage = `
INSERT INTO conversation_messages
    (id, chat_id, message_text, sender, conversation_state, nps_score, sentiment, manual_mode, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

func (r *TranscriptRepository) Append(ctx context.Context, rec domain.TranscriptRecord) error {
	meta := rec.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = r.db.Exec(ctx, insertMessage,
		rec.ID,
		rec.Identity,
		rec.Text,
		string(rec.Sender),
		string(rec.State),
		intPtrToPgInt4(rec.Score),
		stringToPgText(string(rec.Sentiment)),
		rec.ManualMode,
		metaJSON,
		timeToPgTimestamptz(rec.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert conversation message: %w", err)
	}
	return nil
}

const listMessages = `
SELECT id::text, chat_id, message_text, sender, conversation_state, nps_score, sentiment, manual_mode, metadata, created_at
FROM conversation_messages
WHERE chat_id = $1
ORDER BY created_at DESC
LIMIT $2`

// List returns the latest records of a chat, newest first.
func (r *TranscriptRepository) List(ctx context.Context, chatID string, limit int) ([]domain.TranscriptRecord, error) {
	rows, err := r.db.Query(ctx, listMessages, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("list conversation messages: %w", err)
	}
	defer rows.Close()

	var out []domain.TranscriptRecord
	for rows.Next() {
		var (
			rec       domain.TranscriptRecord
			sender    string
			state     string
			score     pgtype.Int4
			sentiment pgtype.Text
			meta      []byte
			createdAt pgtype.Timestamptz
		)
		if err := rows.Scan(&rec.ID, &rec.Identity, &rec.Text, &sender, &state, &score, &sentiment, &rec.ManualMode, &meta, &createdAt); err != nil {
			return nil, fmt.Errorf("scan conversation message: %w", err)
		}
		rec.Sender = domain.Sender(sender)
		rec.State = domain.State(state)
		rec.Score = pgInt4ToIntPtr(score)
		rec.Sentiment = domain.Sentiment(sentiment.String)
		rec.CreatedAt = pgTimestamptzToTime(createdAt)
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &rec.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata: %w", err)
			}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversation messages: %w", err)
	}
	return out, nil
}
