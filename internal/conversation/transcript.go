package conversation

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TranscriptMessage is one stored line of a conversation.
type TranscriptMessage struct {
	ID        string    `json:"id"`
	Phone     string    `json:"phone"`
	Role      string    `json:"role"` // "user" or "assistant"
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// TranscriptStore keeps the long-term message history in PostgreSQL.
// Appends are best-effort; the pipeline never fails a turn over history.
type TranscriptStore struct {
	db *sql.DB
}

// NewTranscriptStore creates a transcript store.
func NewTranscriptStore(db *sql.DB) *TranscriptStore {
	if db == nil {
		return nil
	}
	return &TranscriptStore{db: db}
}

// Append stores one message.
func (s *TranscriptStore) Append(ctx context.Context, phone, role, body string) error {
	if s == nil || s.db == nil {
		return nil
	}
	if phone == "" || body == "" {
		return nil
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversation_messages (id, phone, role, body, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.NewString(), phone, role, body, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("conversation: failed to append transcript message: %w", err)
	}
	return nil
}

// History returns the most recent messages for a phone, oldest first.
func (s *TranscriptStore) History(ctx context.Context, phone string, limit int) ([]TranscriptMessage, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, phone, role, body, created_at
		FROM (
			SELECT id, phone, role, body, created_at
			FROM conversation_messages
			WHERE phone = $1
			ORDER BY created_at DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC
	`, phone, limit)
	if err != nil {
		return nil, fmt.Errorf("conversation: failed to query transcript: %w", err)
	}
	defer rows.Close()

	var out []TranscriptMessage
	for rows.Next() {
		var m TranscriptMessage
		if err := rows.Scan(&m.ID, &m.Phone, &m.Role, &m.Body, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("conversation: failed to scan transcript message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
