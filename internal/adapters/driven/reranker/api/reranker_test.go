package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/webrage/internal/core/domain"
)

func newTestReranker(t *testing.T, handler http.HandlerFunc, batchSize int) *Reranker {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	r, err := New(Config{BaseURL: srv.URL, APIKey: "key", BatchSize: batchSize, Concurrency: 2})
	require.NoError(t, err)
	return r
}

func TestScore_ObjectShapeOutOfOrder(t *testing.T) {
	r := newTestReranker(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/rerank", req.URL.Path)
		assert.Equal(t, "Bearer key", req.Header.Get("Authorization"))

		var body rerankRequest
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		assert.Equal(t, "capital of France", body.Query)
		assert.Len(t, body.Documents, 2)

		_, _ = w.Write([]byte(`{"results":[{"index":1,"relevance_score":0.2},{"index":0,"relevance_score":0.9}]}`))
	}, 10)

	scores, err := r.Score(context.Background(), "capital of France", []string{"Paris", "Eiffel"})

	require.NoError(t, err)
	assert.Equal(t, []float64{0.9, 0.2}, scores)
}

func TestScore_ArrayShapeIsClamped(t *testing.T) {
	r := newTestReranker(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"index":0,"score":7.5},{"index":1,"score":-2}]`))
	}, 10)

	scores, err := r.Score(context.Background(), "q", []string{"a", "b"})

	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0}, scores)
}

func TestScore_Batches(t *testing.T) {
	r := newTestReranker(t, func(w http.ResponseWriter, req *http.Request) {
		var body rerankRequest
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		results := make([]map[string]any, len(body.Documents))
		for i, d := range body.Documents {
			results[i] = map[string]any{"index": i, "relevance_score": float64(len(d)) / 10}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"results": results})
	}, 2)

	scores, err := r.Score(context.Background(), "q", []string{"a", "bb", "ccc", "dddd", "eeeee"})

	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.3, 0.4, 0.5}, scores)
}

func TestScore_FailsClosed(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusServiceUnavailable, `overloaded`},
		{"garbage", http.StatusOK, `<html>`},
		{"missing index", http.StatusOK, `{"results":[{"relevance_score":0.5}]}`},
		{"index out of range", http.StatusOK, `{"results":[{"index":4,"relevance_score":0.5}]}`},
		{"missing document", http.StatusOK, `{"results":[{"index":0,"relevance_score":0.5}]}`},
		{"missing score", http.StatusOK, `{"results":[{"index":0},{"index":1}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestReranker(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}, 10)

			_, err := r.Score(context.Background(), "q", []string{"a", "b"})
			assert.ErrorIs(t, err, domain.ErrRerankerUnavailable)
		})
	}
}

func TestScore_EmptyPassagesSkipsBackend(t *testing.T) {
	r := newTestReranker(t, func(http.ResponseWriter, *http.Request) {
		t.Fatal("backend must not be called")
	}, 10)

	scores, err := r.Score(context.Background(), "q", nil)

	require.NoError(t, err)
	assert.Empty(t, scores)
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestPing(t *testing.T) {
	r := newTestReranker(t, func(w http.ResponseWriter, req *http.Request) {
		var body rerankRequest
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		assert.Equal(t, "ping", body.Query)
		_, _ = w.Write([]byte(`[{"index":0,"score":0.5}]`))
	}, 10)

	assert.NoError(t, r.Ping(context.Background()))
	assert.True(t, strings.HasPrefix(r.ModelName(), "bge"))
}
