package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/parley-ai/parley/internal/engine"
	"github.com/parley-ai/parley/internal/events"
	"github.com/parley-ai/parley/internal/model"
	"github.com/parley-ai/parley/pkg/logger"
)

// TurnService binds the thread registry, the turn engine and the event
// publisher into the operation behind "send a message".
type TurnService struct {
	threads   *ThreadService
	engine    *engine.Engine
	publisher events.Publisher
	logger    *logger.Logger
}

// NewTurnService creates a turn service.
func NewTurnService(threads *ThreadService, eng *engine.Engine, publisher events.Publisher, log *logger.Logger) *TurnService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &TurnService{
		threads:   threads,
		engine:    eng,
		publisher: publisher,
		logger:    log,
	}
}

// Run processes one user message on a thread through to a final assistant
// answer. Unknown thread identifiers register a fresh thread; the first
// user message of a fresh thread names it.
func (s *TurnService) Run(ctx context.Context, threadID, content string, sink engine.Sink) ([]model.Message, error) {
	s.threads.Ensure(ctx, threadID)
	s.threads.ApplyFirstMessage(threadID, content)

	turn, err := s.engine.RunTurn(ctx, threadID, content, sink)
	if err != nil {
		s.publisher.PublishEvent(ctx, &model.TurnEvent{
			ID:        uuid.Must(uuid.NewV7()).String(),
			ThreadID:  threadID,
			Type:      model.EventTypeError,
			Reason:    err.Error(),
			CreatedAt: time.Now(),
		})
		return nil, err
	}

	s.threads.RecordTurn(threadID, turn)

	for i := range turn {
		s.publisher.PublishMessage(ctx, &turn[i])
	}
	s.publisher.PublishEvent(ctx, &model.TurnEvent{
		ID:        uuid.Must(uuid.NewV7()).String(),
		ThreadID:  threadID,
		Type:      model.EventTypeTurnComplete,
		CreatedAt: time.Now(),
	})

	return turn, nil
}
