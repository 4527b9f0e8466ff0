package model

import (
	"encoding/json"
	"time"
)

// EventType represents the type of turn event.
type EventType string

const (
	EventTypeError        EventType = "error"
	EventTypeToolActivity EventType = "tool_activity"
	EventTypeTurnComplete EventType = "turn_complete"
)

// TurnEvent is an out-of-band event emitted while a turn is running. It is
// published to the event bus when one is configured.
type TurnEvent struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"thread_id"`
	Type      EventType `json:"type"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TokenEvent represents a streaming token event.
type TokenEvent struct {
	Token string `json:"token"`
	Index int    `json:"index"`
}

// ToolStartEvent signals that a tool invocation has started.
type ToolStartEvent struct {
	ToolCallID string          `json:"tool_call_id"`
	Name       string          `json:"name"`
	Arguments  json.RawMessage `json:"arguments,omitempty"`
}

// ToolResultEvent carries the result message of one tool invocation.
type ToolResultEvent struct {
	Message Message `json:"message"`
}

// MessageCompleteEvent represents a message completion event.
type MessageCompleteEvent struct {
	Message Message `json:"message"`
}

// ErrorEvent represents an error event.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HeartbeatEvent represents a heartbeat event.
type HeartbeatEvent struct {
	Timestamp time.Time `json:"timestamp"`
}
