package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/persona-chat/internal/ai"
	"github.com/suPer8Hu/persona-chat/internal/config"
	"github.com/suPer8Hu/persona-chat/internal/grounding"
)

func TestNewRegistry_KnowsConfiguredProviders(t *testing.T) {
	reg := NewRegistry(config.Config{OllamaBaseURL: "http://localhost:11434", OllamaModel: "llama3:latest", OpenRouterAPIKey: "k"})
	ctx := context.Background()

	p, err := reg.Get(ctx, "Ollama", "", ai.Settings{})
	require.NoError(t, err)
	assert.Equal(t, "llama3:latest", p.(*ai.OllamaProvider).Model)

	_, err = reg.Get(ctx, "openrouter", "", ai.Settings{})
	require.NoError(t, err)

	_, err = reg.Embedder(ctx, "ollama", "nomic-embed-text")
	require.NoError(t, err)

	_, err = reg.Get(ctx, "claude", "", ai.Settings{})
	assert.Error(t, err)
}

func TestNewObjectStore(t *testing.T) {
	s, err := NewObjectStore(context.Background(), config.Config{ObjectStore: "fs", ObjectStoreRoot: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &grounding.FSStore{}, s)

	_, err = NewObjectStore(context.Background(), config.Config{ObjectStore: "ftp"})
	assert.Error(t, err)
}
