// Package tool implements the capabilities the model can invoke during a
// conversation turn.
package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/parley-ai/parley/internal/llm"
	"github.com/parley-ai/parley/pkg/logger"
	"github.com/parley-ai/parley/pkg/metrics"
)

// Tool is a single invocable capability. Invoke returns the result payload
// as a string; an error return is converted to an in-band error payload by
// the registry and never reaches the turn loop.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	Invoke(ctx context.Context, args json.RawMessage) (string, error)
}

// Registry holds the available tools and dispatches invocations by name.
type Registry struct {
	tools   map[string]Tool
	order   []string
	timeout time.Duration
	logger  *logger.Logger
}

// NewRegistry creates an empty tool registry. timeout bounds each
// invocation; zero means no bound beyond the caller's context.
func NewRegistry(log *logger.Logger, timeout time.Duration) *Registry {
	return &Registry{
		tools:   make(map[string]Tool),
		timeout: timeout,
		logger:  log,
	}
}

// Register adds a tool to the registry. Later registrations with the same
// name replace earlier ones.
func (r *Registry) Register(t Tool) {
	if _, exists := r.tools[t.Name()]; !exists {
		r.order = append(r.order, t.Name())
	}
	r.tools[t.Name()] = t
}

// Get returns the tool with the given name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Definitions returns tool declarations for the LLM request, in
// registration order.
func (r *Registry) Definitions() []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		defs = append(defs, llm.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return defs
}

// Execute invokes a tool by name and always returns a payload string.
// Unknown tools, invocation errors and timeouts all degrade to an error
// payload; a failure here never aborts the turn.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) string {
	t, ok := r.tools[name]
	if !ok {
		metrics.RecordToolExecution(name, "unknown", 0)
		return ErrorPayload(fmt.Sprintf("Unknown tool '%s'", name))
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := t.Invoke(ctx, args)
	elapsed := time.Since(start)

	if err != nil {
		r.logger.Warn("tool invocation failed",
			zap.String("tool", name),
			zap.Error(err),
		)
		metrics.RecordToolExecution(name, "error", elapsed.Seconds())
		return ErrorPayload(err.Error())
	}

	metrics.RecordToolExecution(name, "success", elapsed.Seconds())
	return result
}

// ErrorPayload encodes an error description as the in-band JSON payload
// shape shared by all tools.
func ErrorPayload(msg string) string {
	b, _ := json.Marshal(map[string]string{"error": msg})
	return string(b)
}
