// Package service provides the session layer between HTTP handlers and the
// turn engine.
package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/parley-ai/parley/internal/checkpoint"
	"github.com/parley-ai/parley/internal/model"
	"github.com/parley-ai/parley/pkg/logger"
	"github.com/parley-ai/parley/pkg/metrics"
)

// PlaceholderThreadName is the display name of a thread before its first
// user message arrives.
const PlaceholderThreadName = "New Chat"

// maxThreadNameLen bounds derived thread names; longer first messages are
// truncated to 47 characters plus an ellipsis.
const maxThreadNameLen = 50

// DeriveThreadName builds a thread display name from the first user
// message: trimmed, truncated, whitespace collapsed, placeholder when empty.
func DeriveThreadName(first string) string {
	name := strings.TrimSpace(first)
	if name == "" {
		return PlaceholderThreadName
	}

	// Truncate on runes so a multi-byte character is never split.
	if runes := []rune(name); len(runes) > maxThreadNameLen {
		name = string(runes[:maxThreadNameLen-3]) + "..."
	}

	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return PlaceholderThreadName
	}
	return name
}

// ThreadService tracks thread metadata. The registry lives in memory and is
// hydrated from the checkpoint store at startup; message history itself is
// owned by the store.
type ThreadService struct {
	store  checkpoint.Store
	logger *logger.Logger

	mu      sync.RWMutex
	threads map[string]*model.Thread
}

// NewThreadService creates a thread service over the given store.
func NewThreadService(store checkpoint.Store, log *logger.Logger) *ThreadService {
	return &ThreadService{
		store:   store,
		logger:  log,
		threads: make(map[string]*model.Thread),
	}
}

// Hydrate rebuilds the thread registry from persisted checkpoints, deriving
// display names from each thread's first user message.
func (s *ThreadService) Hydrate(ctx context.Context) error {
	ids, err := s.store.ListThreadIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list threads: %w", err)
	}

	for _, id := range ids {
		history, err := s.store.GetHistory(ctx, id)
		if err != nil {
			s.logger.Warn("failed to load thread history",
				zap.String("thread_id", id),
				zap.Error(err),
			)
			continue
		}

		thread := &model.Thread{
			ID:           id,
			Name:         PlaceholderThreadName,
			MessageCount: len(history),
		}
		for i := range history {
			msg := history[i]
			if msg.Role == model.RoleUser && thread.Name == PlaceholderThreadName {
				thread.Name = DeriveThreadName(msg.Content)
			}
		}
		if len(history) > 0 {
			thread.CreatedAt = history[0].CreatedAt
			thread.UpdatedAt = history[len(history)-1].CreatedAt
			last := history[len(history)-1]
			thread.LastMessage = &last
		}

		s.mu.Lock()
		s.threads[id] = thread
		s.mu.Unlock()
	}

	s.logger.Info("thread registry hydrated", zap.Int("threads", len(ids)))
	return nil
}

// Create starts a new thread with a placeholder name.
func (s *ThreadService) Create(ctx context.Context) *model.Thread {
	now := time.Now()
	thread := &model.Thread{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Name:      PlaceholderThreadName,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.threads[thread.ID] = thread
	s.mu.Unlock()

	metrics.ThreadsTotal.Inc()
	s.logger.Info("thread created", zap.String("thread_id", thread.ID))

	return thread
}

// Get returns the thread with the given ID.
func (s *ThreadService) Get(ctx context.Context, threadID string) (*model.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	thread, exists := s.threads[threadID]
	if !exists {
		return nil, fmt.Errorf("thread not found")
	}
	out := *thread
	return &out, nil
}

// Ensure returns the thread with the given ID, registering it on first
// observed use of an unknown identifier.
func (s *ThreadService) Ensure(ctx context.Context, threadID string) *model.Thread {
	s.mu.Lock()
	defer s.mu.Unlock()

	if thread, exists := s.threads[threadID]; exists {
		out := *thread
		return &out
	}

	now := time.Now()
	thread := &model.Thread{
		ID:        threadID,
		Name:      PlaceholderThreadName,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.threads[threadID] = thread

	metrics.ThreadsTotal.Inc()
	out := *thread
	return &out
}

// List returns all threads, newest first.
func (s *ThreadService) List(ctx context.Context) *model.ListThreadsResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	threads := make([]model.Thread, 0, len(s.threads))
	for _, thread := range s.threads {
		threads = append(threads, *thread)
	}

	sort.Slice(threads, func(i, j int) bool {
		return threads[i].UpdatedAt.After(threads[j].UpdatedAt)
	})

	return &model.ListThreadsResponse{
		Threads: threads,
		Total:   len(threads),
	}
}

// ApplyFirstMessage sets the thread name from its first user message. The
// name is mutated exactly once: later messages never rename a thread.
func (s *ThreadService) ApplyFirstMessage(threadID, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	thread, exists := s.threads[threadID]
	if !exists {
		return
	}
	if thread.MessageCount > 0 || thread.Name != PlaceholderThreadName {
		return
	}
	thread.Name = DeriveThreadName(content)
}

// RecordTurn updates thread metadata after a committed turn.
func (s *ThreadService) RecordTurn(threadID string, turn []model.Message) {
	if len(turn) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	thread, exists := s.threads[threadID]
	if !exists {
		return
	}
	thread.MessageCount += len(turn)
	last := turn[len(turn)-1]
	thread.LastMessage = &last
	thread.UpdatedAt = time.Now()
}
