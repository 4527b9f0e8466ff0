package checkpoint

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-ai/parley/internal/model"
)

func newTestStore(t *testing.T) (*SQLiteStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "checkpoints.db")
	s, err := NewSQLiteStore(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown thread yields empty history", func(t *testing.T) {
		s, _ := newTestStore(t)

		history, err := s.GetHistory(ctx, "missing")
		require.NoError(t, err)
		assert.NotNil(t, history)
		assert.Empty(t, history)
	})

	t.Run("round trip preserves message fields", func(t *testing.T) {
		s, _ := newTestStore(t)

		msgs := []model.Message{
			{ID: "m1", ThreadID: "t1", Role: model.RoleUser, Content: "what is 2+3?", CreatedAt: time.Now().UTC()},
			{
				ID: "m2", ThreadID: "t1", Role: model.RoleAssistant,
				ToolCalls: []model.ToolCall{{
					ID:        "call-1",
					Name:      "calculator",
					Arguments: json.RawMessage(`{"first_num":2,"second_num":3,"operation":"add"}`),
				}},
				CreatedAt: time.Now().UTC(),
			},
			{
				ID: "m3", ThreadID: "t1", Role: model.RoleTool,
				Content: `{"first_num":2,"second_num":3,"operation":"add","result":5}`,
				ToolCallID: "call-1", ToolName: "calculator",
				CreatedAt: time.Now().UTC(),
			},
			{ID: "m4", ThreadID: "t1", Role: model.RoleAssistant, Content: "2+3 is 5.", CreatedAt: time.Now().UTC()},
		}
		require.NoError(t, s.AppendTurn(ctx, "t1", msgs))

		history, err := s.GetHistory(ctx, "t1")
		require.NoError(t, err)
		require.Len(t, history, 4)
		assert.Equal(t, "calculator", history[1].ToolCalls[0].Name)
		assert.Equal(t, "call-1", history[2].ToolCallID)
		assert.Equal(t, "2+3 is 5.", history[3].Content)
	})

	t.Run("history survives reopen", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "checkpoints.db")

		s, err := NewSQLiteStore(ctx, path)
		require.NoError(t, err)
		require.NoError(t, s.AppendTurn(ctx, "t1", []model.Message{
			{ID: "m1", Role: model.RoleUser, Content: "hello"},
		}))
		require.NoError(t, s.Close())

		reopened, err := NewSQLiteStore(ctx, path)
		require.NoError(t, err)
		defer reopened.Close()

		history, err := reopened.GetHistory(ctx, "t1")
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, "hello", history[0].Content)
	})

	t.Run("list is newest first", func(t *testing.T) {
		s, _ := newTestStore(t)

		require.NoError(t, s.AppendTurn(ctx, "a", []model.Message{{ID: "1"}}))
		time.Sleep(10 * time.Millisecond)
		require.NoError(t, s.AppendTurn(ctx, "b", []model.Message{{ID: "2"}}))
		time.Sleep(10 * time.Millisecond)
		require.NoError(t, s.AppendTurn(ctx, "a", []model.Message{{ID: "1"}, {ID: "3"}}))

		ids, err := s.ListThreadIDs(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, ids)
	})

	t.Run("ping", func(t *testing.T) {
		s, _ := newTestStore(t)
		assert.NoError(t, s.Ping(ctx))
	})
}
