package embedder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewWithoutBackendUsesHash(t *testing.T) {
	p := New(context.Background(), Config{}, nil)

	assert.Equal(t, ProviderHash, p.Name())
	assert.Equal(t, HashDimension, p.Dimension())
}

func TestNewWithUnreachableBackendFallsBack(t *testing.T) {
	p := New(context.Background(), Config{BaseURL: "http://127.0.0.1:1"}, nil)

	assert.Equal(t, ProviderHash, p.Name())
	assert.Equal(t, HashDimension, p.Dimension())
}

func TestNewWithHealthyBackend(t *testing.T) {
	srv := embeddingServer(t, HTTPDimension, nil)

	p := New(context.Background(), Config{BaseURL: srv.URL}, nil)

	assert.Equal(t, ProviderHTTP, p.Name())
	assert.Equal(t, HTTPDimension, p.Dimension())
	assert.NoError(t, p.Close())
}
