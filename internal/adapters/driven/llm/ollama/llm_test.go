package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/webrage/internal/core/domain"
	"github.com/custodia-labs/webrage/internal/core/ports/driven"
)

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "qwen2.5:1.5b", req.Model)
		assert.Equal(t, []chatMessage{
			{Role: "system", Content: "be brief"},
			{Role: "user", Content: "capital of France"},
		}, req.Messages)
		assert.False(t, req.Stream)
		require.NotNil(t, req.Options)
		assert.InDelta(t, 0.6, req.Options.Temperature, 1e-9)

		_ = json.NewEncoder(w).Encode(chatResponse{
			Message: chatMessage{Role: "assistant", Content: "  capital city of France \n"},
			Done:    true,
		})
	}))
	defer srv.Close()

	svc := NewLLMService(LLMConfig{BaseURL: srv.URL})
	out, err := svc.Generate(context.Background(), "capital of France",
		driven.GenerateOptions{System: "be brief", Temperature: 0.6})

	require.NoError(t, err)
	assert.Equal(t, "capital city of France", out)
}

func TestGenerate_WithoutSystemPrompt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []chatMessage{{Role: "user", Content: "q"}}, req.Messages)
		assert.Nil(t, req.Options)

		_ = json.NewEncoder(w).Encode(chatResponse{Message: chatMessage{Content: "a"}})
	}))
	defer srv.Close()

	out, err := NewLLMService(LLMConfig{BaseURL: srv.URL}).Generate(context.Background(), "q", driven.GenerateOptions{})

	require.NoError(t, err)
	assert.Equal(t, "a", out)
}

func TestGenerate_ErrorIsUnavailable(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
		},
		{
			name: "error in body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"error":"model not found"}`))
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`not json`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			svc := NewLLMService(LLMConfig{BaseURL: srv.URL})
			_, err := svc.Generate(context.Background(), "q", driven.GenerateOptions{})

			assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
		})
	}
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_, _ = w.Write([]byte(`{"models":[{"name":"qwen2.5:1.5b"},{"name":"nomic-embed-text:latest"}]}`))
	}))
	defer srv.Close()

	t.Run("model pulled", func(t *testing.T) {
		svc := NewLLMService(LLMConfig{BaseURL: srv.URL})
		assert.NoError(t, svc.Ping(context.Background()))
		assert.Equal(t, DefaultLLMModel, svc.ModelName())
	})

	t.Run("latest tag matches bare name", func(t *testing.T) {
		svc := NewLLMService(LLMConfig{BaseURL: srv.URL, Model: "nomic-embed-text"})
		assert.NoError(t, svc.Ping(context.Background()))
	})

	t.Run("model missing", func(t *testing.T) {
		svc := NewLLMService(LLMConfig{BaseURL: srv.URL, Model: "llama3.2"})
		err := svc.Ping(context.Background())
		require.ErrorIs(t, err, domain.ErrLLMUnavailable)
		assert.Contains(t, err.Error(), "ollama pull llama3.2")
	})
}
