// Package engine implements the conversation turn loop: it alternates
// between the LLM client and the tool registry until the model produces a
// final answer, then commits the turn to the checkpoint store.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/parley-ai/parley/internal/checkpoint"
	"github.com/parley-ai/parley/internal/llm"
	"github.com/parley-ai/parley/internal/model"
	"github.com/parley-ai/parley/internal/tool"
	"github.com/parley-ai/parley/pkg/logger"
	"github.com/parley-ai/parley/pkg/metrics"
)

// State is the turn-loop state.
type State int

const (
	// StateAwaitingModel means the next step is an LLM invocation.
	StateAwaitingModel State = iota
	// StateExecutingTools means the model requested tool calls that have
	// not been resolved yet.
	StateExecutingTools
	// StateDone is terminal for the turn.
	StateDone
)

func (s State) String() string {
	switch s {
	case StateAwaitingModel:
		return "awaiting_model"
	case StateExecutingTools:
		return "executing_tools"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Sink receives presentation events while a turn is running. Token errors
// abort streaming delivery only; turn semantics are unaffected by the sink.
type Sink interface {
	Token(token string, index int) error
	ToolStart(call model.ToolCall)
	ToolResult(msg model.Message)
}

type nopSink struct{}

func (nopSink) Token(string, int) error  { return nil }
func (nopSink) ToolStart(model.ToolCall) {}
func (nopSink) ToolResult(model.Message) {}

// sinkRelay feeds tokens to the sink until the first delivery failure, then
// drops the remainder. The LLM client never sees a sink error, so a viewer
// that goes away mid-stream cannot fail the model call or change what gets
// committed.
type sinkRelay struct {
	sink   Sink
	failed bool
}

func (r *sinkRelay) token(token string, index int) error {
	if r.failed {
		return nil
	}
	if err := r.sink.Token(token, index); err != nil {
		r.failed = true
	}
	return nil
}

// Config holds turn-loop settings.
type Config struct {
	// Model is the default model name; empty lets the provider choose.
	Model string
	// MaxTokens bounds each completion.
	MaxTokens int
	// MaxToolCycles caps model invocations per turn so a model that keeps
	// requesting tools cannot loop forever.
	MaxToolCycles int
	// ModelTimeout bounds each LLM call; zero means no bound beyond the
	// caller's context.
	ModelTimeout time.Duration
}

// Engine drives conversation turns. All collaborators are injected so the
// loop can be tested with fakes.
type Engine struct {
	llm    llm.Client
	tools  *tool.Registry
	store  checkpoint.Store
	logger *logger.Logger
	cfg    Config
}

// New creates a turn engine.
func New(llmClient llm.Client, tools *tool.Registry, store checkpoint.Store, log *logger.Logger, cfg Config) *Engine {
	if cfg.MaxToolCycles <= 0 {
		cfg.MaxToolCycles = 10
	}
	return &Engine{
		llm:    llmClient,
		tools:  tools,
		store:  store,
		logger: log,
		cfg:    cfg,
	}
}

// RunTurn processes one user submission through to one final assistant
// answer and commits the updated history. The returned slice holds the
// turn's messages only: the user message, any tool-call/tool-result pairs
// and the final assistant message, in order.
//
// LLM failures never surface as an error: the turn ends with a terminal
// assistant message describing the failure. Tool failures are captured as
// in-band error payloads by the registry.
func (e *Engine) RunTurn(ctx context.Context, threadID, content string, sink Sink) ([]model.Message, error) {
	if sink == nil {
		sink = nopSink{}
	}

	history, err := e.store.GetHistory(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	userMsg := e.newMessage(threadID, model.RoleUser)
	userMsg.Content = content

	messages := append(history, userMsg)
	turn := []model.Message{userMsg}

	state := StateAwaitingModel
	cycles := 0
	status := "completed"

	for state != StateDone {
		switch state {
		case StateAwaitingModel:
			if cycles >= e.cfg.MaxToolCycles {
				e.logger.Warn("tool cycle cap reached",
					zap.String("thread_id", threadID),
					zap.Int("cycles", cycles),
				)
				capMsg := e.newMessage(threadID, model.RoleAssistant)
				capMsg.Content = "I wasn't able to complete the request within the allowed number of tool steps. Please try again."
				messages = append(messages, capMsg)
				turn = append(turn, capMsg)
				status = "cycle_cap"
				state = StateDone
				continue
			}
			cycles++

			msg, err := e.invokeModel(ctx, messages, sink)
			if err != nil {
				e.logger.Error("model invocation failed",
					zap.String("thread_id", threadID),
					zap.Error(err),
				)
				errMsg := e.newMessage(threadID, model.RoleAssistant)
				errMsg.Content = fmt.Sprintf("I apologize, but I encountered an error: %v", err)
				messages = append(messages, errMsg)
				turn = append(turn, errMsg)
				status = "model_error"
				state = StateDone
				continue
			}

			messages = append(messages, msg)
			turn = append(turn, msg)

			if msg.IsToolRequest() {
				state = StateExecutingTools
			} else {
				state = StateDone
			}

		case StateExecutingTools:
			request := messages[len(messages)-1]
			results := e.executeTools(ctx, threadID, request.ToolCalls, sink)
			messages = append(messages, results...)
			turn = append(turn, results...)
			state = StateAwaitingModel
		}
	}

	e.commit(ctx, threadID, messages, turn)
	metrics.RecordTurn(status, cycles)

	e.logger.Info("turn completed",
		zap.String("thread_id", threadID),
		zap.String("status", status),
		zap.Int("cycles", cycles),
		zap.Int("messages", len(turn)),
	)

	return turn, nil
}

// invokeModel runs one LLM call with the current history and the tool
// declarations, streaming tokens to the sink.
func (e *Engine) invokeModel(ctx context.Context, messages []model.Message, sink Sink) (model.Message, error) {
	if e.cfg.ModelTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.ModelTimeout)
		defer cancel()
	}

	req := &llm.CompletionRequest{
		Model:     e.cfg.Model,
		Messages:  messages,
		Tools:     e.tools.Definitions(),
		MaxTokens: e.cfg.MaxTokens,
	}

	relay := &sinkRelay{sink: sink}

	start := time.Now()
	resp, err := e.llm.CompleteStream(ctx, req, relay.token)
	if err != nil {
		metrics.RecordLLMCall(e.cfg.Model, "error", time.Since(start).Seconds(), 0, 0)
		return model.Message{}, err
	}
	metrics.RecordLLMCall(resp.Model, "success", time.Since(start).Seconds(), resp.TokensIn, resp.TokensOut)

	msg := resp.Message
	msg.ID = uuid.Must(uuid.NewV7()).String()
	msg.ThreadID = messages[len(messages)-1].ThreadID
	msg.Role = model.RoleAssistant
	msg.CreatedAt = time.Now()
	msg.Model = &resp.Model
	msg.TokensIn = &resp.TokensIn
	msg.TokensOut = &resp.TokensOut
	msg.LatencyMs = &resp.LatencyMs
	msg.StopReason = &resp.StopReason
	return msg, nil
}

// executeTools resolves all pending tool calls. Calls run concurrently;
// results are appended in call order, one result per call, errors in-band.
func (e *Engine) executeTools(ctx context.Context, threadID string, calls []model.ToolCall, sink Sink) []model.Message {
	results := make([]model.Message, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		sink.ToolStart(call)

		wg.Add(1)
		go func(i int, call model.ToolCall) {
			defer wg.Done()

			payload := e.tools.Execute(ctx, call.Name, call.Arguments)

			msg := e.newMessage(threadID, model.RoleTool)
			msg.Content = payload
			msg.ToolCallID = call.ID
			msg.ToolName = call.Name
			results[i] = msg
		}(i, call)
	}
	wg.Wait()

	for _, msg := range results {
		sink.ToolResult(msg)
	}
	return results
}

// commit persists the full updated history. A write failure loses
// durability for this turn but does not fail it.
func (e *Engine) commit(ctx context.Context, threadID string, messages, turn []model.Message) {
	if err := e.store.AppendTurn(ctx, threadID, messages); err != nil {
		e.logger.Error("failed to commit checkpoint",
			zap.String("thread_id", threadID),
			zap.Error(err),
		)
		metrics.CheckpointWritesTotal.WithLabelValues("error").Inc()
		return
	}
	metrics.CheckpointWritesTotal.WithLabelValues("success").Inc()

	for _, msg := range turn {
		metrics.MessagesTotal.WithLabelValues(string(msg.Role)).Inc()
	}
}

func (e *Engine) newMessage(threadID string, role model.Role) model.Message {
	return model.Message{
		ID:        uuid.Must(uuid.NewV7()).String(),
		ThreadID:  threadID,
		Role:      role,
		CreatedAt: time.Now(),
	}
}
