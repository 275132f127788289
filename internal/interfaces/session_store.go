package interfaces

import (
	"context"

	"github.com/ternarybob/consilium/internal/models"
)

// SessionStore is the append-only conversation history keyed by session id.
// The orchestrator only appends new turns and reads a bounded recent suffix;
// it never deletes or reorders entries.
type SessionStore interface {
	// AppendTurn appends one (question, answer) turn to the session
	AppendTurn(ctx context.Context, turn *models.Turn) error

	// RecentTurns returns up to limit most recent turns in chronological order
	RecentTurns(ctx context.Context, sessionID string, limit int) ([]models.Turn, error)

	// TurnCount returns the number of turns stored for the session
	TurnCount(ctx context.Context, sessionID string) (int, error)

	Close() error
}
