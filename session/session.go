package session

import (
	"context"
	"sync"
	"time"
)

// Turn is one question/answer exchange in a session transcript.
type Turn struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists per-session transcripts. Conversation state itself is
// request-scoped; the transcript is the only thing that outlives a request.
type Store interface {
	Append(ctx context.Context, sessionID string, turn Turn) error
	History(ctx context.Context, sessionID string) ([]Turn, error)
	Clear(ctx context.Context, sessionID string) error
}

// InMemoryStore keeps transcripts in process memory. Suitable for tests and
// single-instance deployments.
type InMemoryStore struct {
	mu    sync.RWMutex
	turns map[string][]Turn
}

// NewInMemoryStore creates an empty in-memory transcript store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{turns: make(map[string][]Turn)}
}

func (s *InMemoryStore) Append(_ context.Context, sessionID string, turn Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}
	s.turns[sessionID] = append(s.turns[sessionID], turn)
	return nil
}

func (s *InMemoryStore) History(_ context.Context, sessionID string) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := make([]Turn, len(s.turns[sessionID]))
	copy(history, s.turns[sessionID])
	return history, nil
}

func (s *InMemoryStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.turns, sessionID)
	return nil
}
