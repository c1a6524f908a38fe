package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_GetNormalizesNameAndPassesSettings(t *testing.T) {
	reg := NewRegistry()

	var gotModel string
	var gotSettings Settings
	reg.Register("Fake", func(ctx context.Context, model string, s Settings) (Provider, error) {
		gotModel = model
		gotSettings = s
		return ProviderFunc(func(ctx context.Context, messages []Message) (string, error) {
			return "hi", nil
		}), nil
	})

	p, err := reg.Get(context.Background(), "  fake ", "m1", Settings{Temperature: Float32(0.3), MaxTokens: 64})
	require.NoError(t, err)
	assert.Equal(t, "m1", gotModel)
	require.NotNil(t, gotSettings.Temperature)
	assert.InDelta(t, 0.3, *gotSettings.Temperature, 1e-6)
	assert.Equal(t, 64, gotSettings.MaxTokens)

	out, err := p.Chat(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "hi", out)
}

func TestRegistry_UnknownProvider(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Get(context.Background(), "nope", "", Settings{})
	require.Error(t, err)

	_, err = reg.Embedder(context.Background(), "nope", "")
	require.Error(t, err)
}

func TestOllamaProvider_SendsOptionsAndSystemRole(t *testing.T) {
	var got ollamaChatReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(ollamaChatResp{Message: ollamaMsg{Role: RoleAssistant, Content: "hello"}})
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama3", Settings{Temperature: Float32(0.7), MaxTokens: 128})
	out, err := p.Chat(context.Background(), []Message{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Content: "hi"},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
	assert.False(t, got.Stream)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, RoleSystem, got.Messages[0].Role)
	assert.EqualValues(t, 128, got.Options["num_predict"])
}

func TestOllamaEmbedder_CountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ollamaEmbedResp{Embeddings: [][]float32{{1, 0}}})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "nomic-embed-text")

	v, err := e.EmbedQuery(context.Background(), "one")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, v)

	_, err = e.EmbedDocuments(context.Background(), []string{"one", "two"})
	require.Error(t, err)
}

func TestOpenRouterProvider_RequiresKey(t *testing.T) {
	p := NewOpenRouterProvider("", "", "some/model", "", "", Settings{})
	_, err := p.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.Error(t, err)
}
