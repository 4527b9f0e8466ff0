package tool

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-ai/parley/pkg/logger"
)

type fakeTool struct {
	name   string
	invoke func(ctx context.Context, args json.RawMessage) (string, error)
}

func (f *fakeTool) Name() string               { return f.name }
func (f *fakeTool) Description() string        { return "fake tool" }
func (f *fakeTool) Parameters() map[string]any { return map[string]any{"type": "object"} }

func (f *fakeTool) Invoke(ctx context.Context, args json.RawMessage) (string, error) {
	return f.invoke(ctx, args)
}

func TestRegistryExecute(t *testing.T) {
	ctx := context.Background()

	t.Run("dispatches to the named tool", func(t *testing.T) {
		r := NewRegistry(logger.NewNop(), 0)
		r.Register(&fakeTool{name: "echo", invoke: func(_ context.Context, args json.RawMessage) (string, error) {
			return string(args), nil
		}})

		out := r.Execute(ctx, "echo", json.RawMessage(`{"x":1}`))
		assert.Equal(t, `{"x":1}`, out)
	})

	t.Run("unknown tool yields error payload", func(t *testing.T) {
		r := NewRegistry(logger.NewNop(), 0)

		out := r.Execute(ctx, "missing", nil)

		var payload map[string]string
		require.NoError(t, json.Unmarshal([]byte(out), &payload))
		assert.Equal(t, "Unknown tool 'missing'", payload["error"])
	})

	t.Run("invocation error yields error payload", func(t *testing.T) {
		r := NewRegistry(logger.NewNop(), 0)
		r.Register(&fakeTool{name: "boom", invoke: func(context.Context, json.RawMessage) (string, error) {
			return "", errors.New("backend unavailable")
		}})

		out := r.Execute(ctx, "boom", nil)

		var payload map[string]string
		require.NoError(t, json.Unmarshal([]byte(out), &payload))
		assert.Equal(t, "backend unavailable", payload["error"])
	})

	t.Run("timeout bounds the invocation", func(t *testing.T) {
		r := NewRegistry(logger.NewNop(), 20*time.Millisecond)
		r.Register(&fakeTool{name: "slow", invoke: func(ctx context.Context, _ json.RawMessage) (string, error) {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Second):
				return "too late", nil
			}
		}})

		out := r.Execute(ctx, "slow", nil)

		var payload map[string]string
		require.NoError(t, json.Unmarshal([]byte(out), &payload))
		assert.Contains(t, payload["error"], "context deadline exceeded")
	})
}

func TestRegistryDefinitions(t *testing.T) {
	r := NewRegistry(logger.NewNop(), 0)
	r.Register(NewSearch(""))
	r.Register(NewCalculator())
	r.Register(NewStockQuote("", "demo"))

	defs := r.Definitions()
	require.Len(t, defs, 3)

	// Registration order is preserved so the model sees a stable tool list.
	assert.Equal(t, "search", defs[0].Name)
	assert.Equal(t, "calculator", defs[1].Name)
	assert.Equal(t, "get_stock_price", defs[2].Name)

	for _, def := range defs {
		assert.NotEmpty(t, def.Description)
		assert.Equal(t, "object", def.Parameters["type"])
	}
}
