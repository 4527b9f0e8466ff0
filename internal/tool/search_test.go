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

func TestSearchInvoke(t *testing.T) {
	ctx := context.Background()

	t.Run("extracts snippets", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "go concurrency", r.URL.Query().Get("q"))
			w.Write([]byte(`<html><body>
				<div class="result"><a class="result__snippet">Goroutines are lightweight threads.</a></div>
				<div class="result"><a class="result__snippet">Channels connect goroutines.</a></div>
			</body></html>`))
		}))
		defer srv.Close()

		s := NewSearch(srv.URL)
		out, err := s.Invoke(ctx, json.RawMessage(`{"query": "go concurrency"}`))
		require.NoError(t, err)
		assert.Contains(t, out, "Goroutines are lightweight threads.")
		assert.Contains(t, out, "Channels connect goroutines.")
	})

	t.Run("caps result count", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<html><body>
				<a class="result__snippet">one</a>
				<a class="result__snippet">two</a>
				<a class="result__snippet">three</a>
				<a class="result__snippet">four</a>
				<a class="result__snippet">five</a>
				<a class="result__snippet">six</a>
			</body></html>`))
		}))
		defer srv.Close()

		s := NewSearch(srv.URL)
		out, err := s.Invoke(ctx, json.RawMessage(`{"query": "x"}`))
		require.NoError(t, err)
		assert.Contains(t, out, "five")
		assert.NotContains(t, out, "six")
	})

	t.Run("no results", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<html><body></body></html>`))
		}))
		defer srv.Close()

		s := NewSearch(srv.URL)
		out, err := s.Invoke(ctx, json.RawMessage(`{"query": "nothing"}`))
		require.NoError(t, err)
		assert.Equal(t, `No results found for "nothing"`, out)
	})

	t.Run("backend failure degrades to error string", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		s := NewSearch(srv.URL)
		out, err := s.Invoke(ctx, json.RawMessage(`{"query": "x"}`))
		require.NoError(t, err)
		assert.Contains(t, out, "Search failed:")
	})
}
