package tool

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStockQuoteInvoke(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the provider quote", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "GLOBAL_QUOTE", r.URL.Query().Get("function"))
			assert.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
			assert.Equal(t, "demo", r.URL.Query().Get("apikey"))
			w.Write([]byte(`{"Global Quote": {"01. symbol": "AAPL", "05. price": "178.7200"}}`))
		}))
		defer srv.Close()

		s := NewStockQuote(srv.URL, "demo")
		out, err := s.Invoke(ctx, json.RawMessage(`{"symbol": "AAPL"}`))
		require.NoError(t, err)

		var payload map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &payload))
		quote, ok := payload["Global Quote"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "178.7200", quote["05. price"])
	})

	t.Run("http error yields error payload", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()

		s := NewStockQuote(srv.URL, "demo")
		out, err := s.Invoke(ctx, json.RawMessage(`{"symbol": "AAPL"}`))
		require.NoError(t, err)

		var payload map[string]string
		require.NoError(t, json.Unmarshal([]byte(out), &payload))
		assert.Contains(t, payload["error"], "API request failed")
	})

	t.Run("malformed provider body yields error payload", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`not json`))
		}))
		defer srv.Close()

		s := NewStockQuote(srv.URL, "demo")
		out, err := s.Invoke(ctx, json.RawMessage(`{"symbol": "AAPL"}`))
		require.NoError(t, err)

		var payload map[string]string
		require.NoError(t, json.Unmarshal([]byte(out), &payload))
		assert.Contains(t, payload["error"], "Unexpected error")
	})
}
