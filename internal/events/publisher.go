// Package events provides optional NATS JetStream fan-out of committed
// messages and turn events for downstream consumers. The checkpoint store
// is the source of truth; this stream is an audit trail.
package events

import (
	"context"

	"github.com/parley-ai/parley/internal/model"
)

// Publisher fans out committed messages and turn events.
type Publisher interface {
	PublishMessage(ctx context.Context, msg *model.Message)
	PublishEvent(ctx context.Context, event *model.TurnEvent)
	Close()
}

// NopPublisher discards all events. Used when no NATS URL is configured or
// the connection could not be established.
type NopPublisher struct{}

// PublishMessage discards the message.
func (NopPublisher) PublishMessage(context.Context, *model.Message) {}

// PublishEvent discards the event.
func (NopPublisher) PublishEvent(context.Context, *model.TurnEvent) {}

// Close is a no-op.
func (NopPublisher) Close() {}
