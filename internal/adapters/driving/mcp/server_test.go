package mcp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/webrage/internal/adapters/driven/storage/memory"
)

func TestNewServer(t *testing.T) {
	t.Run("nil retrieval service returns error", func(t *testing.T) {
		ports := &Ports{}
		server, err := NewServer(ports)
		require.Error(t, err)
		assert.Nil(t, server)
		assert.ErrorIs(t, err, ErrMissingRetrievalService)
	})

	t.Run("valid ports creates server", func(t *testing.T) {
		ports := &Ports{
			Retrieval: &mockRetrievalService{},
		}
		server, err := NewServer(ports)
		require.NoError(t, err)
		assert.NotNil(t, server)
	})
}

func TestPorts_Validate(t *testing.T) {
	t.Run("nil retrieval service returns error", func(t *testing.T) {
		ports := &Ports{Research: &mockResearchService{}}
		err := ports.Validate()
		assert.ErrorIs(t, err, ErrMissingRetrievalService)
	})

	t.Run("retrieval only is valid", func(t *testing.T) {
		ports := &Ports{
			Retrieval: &mockRetrievalService{},
		}
		err := ports.Validate()
		assert.NoError(t, err)
	})

	t.Run("all ports is valid", func(t *testing.T) {
		ports := &Ports{
			Retrieval: &mockRetrievalService{},
			Research:  &mockResearchService{},
			Ingestion: &mockIngestionService{},
			Store:     memory.NewVectorStore(),
		}
		err := ports.Validate()
		assert.NoError(t, err)
	})
}

func TestServer_RunHTTP(t *testing.T) {
	t.Run("stops when context is cancelled", func(t *testing.T) {
		server, err := NewServer(&Ports{Retrieval: &mockRetrievalService{}})
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- server.RunHTTP(ctx, "127.0.0.1:0") }()
		cancel()

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("RunHTTP did not return after cancellation")
		}
	})

	t.Run("invalid address", func(t *testing.T) {
		server, err := NewServer(&Ports{Retrieval: &mockRetrievalService{}})
		require.NoError(t, err)

		err = server.RunHTTP(context.Background(), "not-an-address")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "listen")
	})
}

func TestServer_Handler(t *testing.T) {
	server, err := NewServer(&Ports{Retrieval: &mockRetrievalService{}})
	require.NoError(t, err)
	assert.NotNil(t, server.Handler())
}
