package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsToolRequest(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want bool
	}{
		{"assistant with tool calls", Message{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "c1"}}}, true},
		{"assistant without tool calls", Message{Role: RoleAssistant, Content: "hi"}, false},
		{"user message", Message{Role: RoleUser, ToolCalls: []ToolCall{{ID: "c1"}}}, false},
		{"tool result", Message{Role: RoleTool, ToolCallID: "c1"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.msg.IsToolRequest())
		})
	}
}

func TestMessageJSONOmitsEmptyMetadata(t *testing.T) {
	b, err := json.Marshal(Message{ID: "m1", Role: RoleUser, Content: "hi"})
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	assert.NotContains(t, raw, "tool_calls")
	assert.NotContains(t, raw, "model")
	assert.NotContains(t, raw, "tokens_in")
}
