package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/consilium/internal/common"
	"github.com/ternarybob/consilium/internal/interfaces"
	"github.com/ternarybob/consilium/internal/models"
	badgerstorage "github.com/ternarybob/consilium/internal/storage/badger"
)

// Store persists session turns in BadgerDB. The store is append-only from
// the orchestrator's point of view: turns are never deleted or reordered,
// and reads return a bounded recent suffix.
type Store struct {
	db       *badgerstorage.BadgerDB
	maxTurns int
	logger   arbor.ILogger

	// guards the count-then-insert sequence assignment
	mu sync.Mutex
}

// NewStore creates a session store over an open Badger connection
func NewStore(db *badgerstorage.BadgerDB, cfg *common.SessionConfig, logger arbor.ILogger) interfaces.SessionStore {
	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 50
	}

	return &Store{
		db:       db,
		maxTurns: maxTurns,
		logger:   logger,
	}
}

// AppendTurn appends one turn to the session, assigning the next sequence number
func (s *Store) AppendTurn(ctx context.Context, turn *models.Turn) error {
	if turn.SessionID == "" {
		return fmt.Errorf("turn requires a session id")
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	count, err := s.db.Store().Count(&models.Turn{}, badgerhold.Where("SessionID").Eq(turn.SessionID).Index("SessionID"))
	if err != nil {
		return fmt.Errorf("failed to count session turns: %w", err)
	}
	turn.Sequence = uint64(count) + 1

	key := fmt.Sprintf("%s:%012d", turn.SessionID, turn.Sequence)
	if err := s.db.Store().Insert(key, turn); err != nil {
		return fmt.Errorf("failed to append session turn: %w", err)
	}

	s.logger.Debug().
		Str("session_id", turn.SessionID).
		Int64("sequence", int64(turn.Sequence)).
		Msg("Session turn appended")

	return nil
}

// RecentTurns returns up to limit most recent turns in chronological order.
// The configured session cap bounds the read regardless of the caller's limit.
func (s *Store) RecentTurns(ctx context.Context, sessionID string, limit int) ([]models.Turn, error) {
	if sessionID == "" {
		return nil, nil
	}
	if limit <= 0 || limit > s.maxTurns {
		limit = s.maxTurns
	}

	var turns []models.Turn
	err := s.db.Store().Find(&turns, badgerhold.Where("SessionID").Eq(sessionID).Index("SessionID"))
	if err != nil {
		return nil, fmt.Errorf("failed to load session turns: %w", err)
	}

	sort.Slice(turns, func(i, j int) bool { return turns[i].Sequence < turns[j].Sequence })

	if len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return turns, nil
}

// TurnCount returns the number of turns stored for the session
func (s *Store) TurnCount(ctx context.Context, sessionID string) (int, error) {
	count, err := s.db.Store().Count(&models.Turn{}, badgerhold.Where("SessionID").Eq(sessionID).Index("SessionID"))
	if err != nil {
		return 0, fmt.Errorf("failed to count session turns: %w", err)
	}
	return int(count), nil
}

// Close is a no-op: the Badger connection is owned by the application
func (s *Store) Close() error { return nil }
