// Package model defines data structures for the chat service.
package model

import (
	"encoding/json"
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// ToolCall is a model-issued request to execute a named tool.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Message represents a single entry in a thread's history.
type Message struct {
	// Identity
	ID       string `json:"id"`
	ThreadID string `json:"thread_id"`

	// Content
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// Set on assistant messages that request tool execution.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// Set on tool result messages; ToolCallID correlates the result with
	// the assistant ToolCall that requested it.
	ToolCallID string `json:"tool_call_id,omitempty"`
	ToolName   string `json:"tool_name,omitempty"`

	// LLM metadata (nullable for non-assistant messages)
	Model      *string `json:"model,omitempty"`
	TokensIn   *int    `json:"tokens_in,omitempty"`
	TokensOut  *int    `json:"tokens_out,omitempty"`
	LatencyMs  *int64  `json:"latency_ms,omitempty"`
	StopReason *string `json:"stop_reason,omitempty"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
}

// IsToolRequest reports whether the message requests tool execution.
func (m *Message) IsToolRequest() bool {
	return m.Role == RoleAssistant && len(m.ToolCalls) > 0
}

// SendMessageRequest is the request to submit a user message to a thread.
type SendMessageRequest struct {
	Content string `json:"content"`
	Model   string `json:"model,omitempty"`
}

// SendMessageResponse carries the messages produced by one completed turn:
// the user message, any tool-call/tool-result pairs and the final assistant
// message, in order.
type SendMessageResponse struct {
	Messages []Message `json:"messages"`
}

// ListMessagesResponse is the response for listing a thread's history.
type ListMessagesResponse struct {
	Messages []Message `json:"messages"`
}
