package service

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-ai/parley/internal/checkpoint"
	"github.com/parley-ai/parley/internal/model"
	"github.com/parley-ai/parley/pkg/logger"
)

func TestDeriveThreadName(t *testing.T) {
	tests := []struct {
		name  string
		first string
		want  string
	}{
		{"plain message", "Hello there", "Hello there"},
		{"trims surrounding whitespace", "  Hello there  ", "Hello there"},
		{"collapses inner whitespace", "  Hello   there, can you help?  ", "Hello there, can you help?"},
		{"empty yields placeholder", "", "New Chat"},
		{"whitespace only yields placeholder", "   \n\t  ", "New Chat"},
		{"newlines collapsed", "line one\nline two", "line one line two"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveThreadName(tt.first))
		})
	}

	t.Run("long message is truncated with ellipsis", func(t *testing.T) {
		long := strings.Repeat("a", 80)
		got := DeriveThreadName(long)
		assert.Equal(t, strings.Repeat("a", 47)+"...", got)
		assert.Len(t, got, 50)
	})

	t.Run("exactly at the limit is kept whole", func(t *testing.T) {
		exact := strings.Repeat("b", 50)
		assert.Equal(t, exact, DeriveThreadName(exact))
	})

	t.Run("truncation never splits a multi-byte rune", func(t *testing.T) {
		long := strings.Repeat("a", 46) + "éllo and plenty of trailing text"
		got := DeriveThreadName(long)
		assert.True(t, utf8.ValidString(got))
		assert.Equal(t, strings.Repeat("a", 46)+"é...", got)
	})

	t.Run("fully multi-byte name truncates on runes", func(t *testing.T) {
		long := strings.Repeat("日", 60)
		got := DeriveThreadName(long)
		assert.True(t, utf8.ValidString(got))
		assert.Equal(t, strings.Repeat("日", 47)+"...", got)
	})
}

func newTestThreadService(t *testing.T) (*ThreadService, *checkpoint.MemoryStore) {
	t.Helper()
	store := checkpoint.NewMemoryStore()
	return NewThreadService(store, logger.NewNop()), store
}

func TestThreadServiceCreateAndGet(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestThreadService(t)

	thread := svc.Create(ctx)
	assert.NotEmpty(t, thread.ID)
	assert.Equal(t, PlaceholderThreadName, thread.Name)

	got, err := svc.Get(ctx, thread.ID)
	require.NoError(t, err)
	assert.Equal(t, thread.ID, got.ID)

	_, err = svc.Get(ctx, "unknown")
	assert.Error(t, err)
}

func TestThreadServiceNamingOnce(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestThreadService(t)

	thread := svc.Create(ctx)

	svc.ApplyFirstMessage(thread.ID, "What is the weather today?")
	got, err := svc.Get(ctx, thread.ID)
	require.NoError(t, err)
	assert.Equal(t, "What is the weather today?", got.Name)

	// Later messages never rename the thread.
	svc.RecordTurn(thread.ID, []model.Message{{ID: "m1", Role: model.RoleUser}})
	svc.ApplyFirstMessage(thread.ID, "A completely different topic")
	got, err = svc.Get(ctx, thread.ID)
	require.NoError(t, err)
	assert.Equal(t, "What is the weather today?", got.Name)
}

func TestThreadServiceEnsure(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestThreadService(t)

	thread := svc.Ensure(ctx, "external-id")
	assert.Equal(t, "external-id", thread.ID)
	assert.Equal(t, PlaceholderThreadName, thread.Name)

	// Ensure is idempotent.
	again := svc.Ensure(ctx, "external-id")
	assert.Equal(t, thread.ID, again.ID)

	resp := svc.List(ctx)
	assert.Equal(t, 1, resp.Total)
}

func TestThreadServiceListNewestFirst(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestThreadService(t)

	first := svc.Create(ctx)
	time.Sleep(5 * time.Millisecond)
	second := svc.Create(ctx)
	time.Sleep(5 * time.Millisecond)

	// A turn on the first thread bumps it to the top.
	svc.RecordTurn(first.ID, []model.Message{{ID: "m1", Role: model.RoleUser}})

	resp := svc.List(ctx)
	require.Equal(t, 2, resp.Total)
	assert.Equal(t, first.ID, resp.Threads[0].ID)
	assert.Equal(t, second.ID, resp.Threads[1].ID)
}

func TestThreadServiceRecordTurn(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestThreadService(t)

	thread := svc.Create(ctx)
	turn := []model.Message{
		{ID: "m1", Role: model.RoleUser, Content: "hi"},
		{ID: "m2", Role: model.RoleAssistant, Content: "hello"},
	}
	svc.RecordTurn(thread.ID, turn)

	got, err := svc.Get(ctx, thread.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.MessageCount)
	require.NotNil(t, got.LastMessage)
	assert.Equal(t, "m2", got.LastMessage.ID)
}

func TestThreadServiceHydrate(t *testing.T) {
	ctx := context.Background()
	store := checkpoint.NewMemoryStore()

	now := time.Now()
	require.NoError(t, store.AppendTurn(ctx, "t1", []model.Message{
		{ID: "m1", ThreadID: "t1", Role: model.RoleUser, Content: "  Tell me about   Go  ", CreatedAt: now},
		{ID: "m2", ThreadID: "t1", Role: model.RoleAssistant, Content: "Go is a language.", CreatedAt: now.Add(time.Second)},
	}))

	svc := NewThreadService(store, logger.NewNop())
	require.NoError(t, svc.Hydrate(ctx))

	got, err := svc.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "Tell me about Go", got.Name)
	assert.Equal(t, 2, got.MessageCount)
	require.NotNil(t, got.LastMessage)
	assert.Equal(t, "m2", got.LastMessage.ID)
}
