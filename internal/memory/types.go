package memory

import (
	"context"
	"time"
)

// TurnRecord stores a single user or assistant turn of an HR chat session.
type TurnRecord struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	Role        string    `json:"role"`
	Content     string    `json:"content"`
	Intent      string    `json:"intent,omitempty"`
	Sources     []string  `json:"sources,omitempty"`
	PIIRedacted bool      `json:"pii_redacted"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store persists and retrieves session transcripts.
type Store interface {
	SaveTurn(ctx context.Context, record TurnRecord) error
	// History returns up to limit trailing turns of a session in
	// chronological order. limit <= 0 returns the whole transcript.
	History(ctx context.Context, sessionID string, limit int) ([]TurnRecord, error)
	Close() error
}
