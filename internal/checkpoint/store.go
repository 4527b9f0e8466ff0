// Package checkpoint persists per-thread message history.
package checkpoint

import (
	"context"
	"sync"

	"github.com/parley-ai/parley/internal/model"
)

// Store is the durable snapshot store for thread histories. AppendTurn
// persists the full updated history for a thread; writers are expected to
// be single per thread, last-writer-wins otherwise.
type Store interface {
	// GetHistory returns the ordered message sequence for a thread, or an
	// empty slice if the thread is unknown.
	GetHistory(ctx context.Context, threadID string) ([]model.Message, error)

	// AppendTurn durably persists the full updated history for a thread.
	AppendTurn(ctx context.Context, threadID string, messages []model.Message) error

	// ListThreadIDs enumerates all threads with at least one persisted
	// checkpoint, most recently written first.
	ListThreadIDs(ctx context.Context) ([]string, error)

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error

	// Close releases store resources.
	Close() error
}

// MemoryStore is an in-memory Store used when the SQLite store cannot be
// initialized, and in tests. Histories do not survive a restart.
type MemoryStore struct {
	mu        sync.RWMutex
	histories map[string][]model.Message
	order     []string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		histories: make(map[string][]model.Message),
	}
}

// GetHistory returns a copy of the thread's history.
func (s *MemoryStore) GetHistory(ctx context.Context, threadID string) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.histories[threadID]
	out := make([]model.Message, len(history))
	copy(out, history)
	return out, nil
}

// AppendTurn replaces the stored history with the given snapshot.
func (s *MemoryStore) AppendTurn(ctx context.Context, threadID string, messages []model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.histories[threadID]; !exists {
		s.order = append(s.order, threadID)
	} else {
		for i, id := range s.order {
			if id == threadID {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
		s.order = append(s.order, threadID)
	}

	snapshot := make([]model.Message, len(messages))
	copy(snapshot, messages)
	s.histories[threadID] = snapshot
	return nil
}

// ListThreadIDs returns known thread IDs, most recently written first.
func (s *MemoryStore) ListThreadIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		out = append(out, s.order[i])
	}
	return out, nil
}

// Ping always succeeds for the in-memory store.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
