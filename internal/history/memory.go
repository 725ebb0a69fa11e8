package history

import (
	"context"
	"sort"
	"sync"

	"github.com/Iron-Ham/parley/internal/actor"
)

// MemoryStore keeps conversation history in process memory. Suited to
// tests and single-invocation runs; everything is lost when the process
// exits.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]actor.ConversationTurn
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string][]actor.ConversationTurn),
	}
}

// Append adds turns to the end of a session's history.
func (s *MemoryStore) Append(_ context.Context, sessionID string, turns []actor.ConversationTurn) error {
	if len(turns) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = append(s.sessions[sessionID], turns...)
	return nil
}

// Load returns a copy of a session's history.
func (s *MemoryStore) Load(_ context.Context, sessionID string) ([]actor.ConversationTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return actor.CloneTurns(s.sessions[sessionID]), nil
}

// Clear removes a session's history.
func (s *MemoryStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// Sessions returns the IDs with recorded history, lexically sorted.
func (s *MemoryStore) Sessions(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
