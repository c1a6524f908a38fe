package ai

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

type ProviderFactory func(ctx context.Context, model string, s Settings) (Provider, error)

type EmbedderFactory func(ctx context.Context, model string) (Embedder, error)

type Registry struct {
	mu        sync.RWMutex
	factories map[string]ProviderFactory
	embedders map[string]EmbedderFactory
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]ProviderFactory),
		embedders: make(map[string]EmbedderFactory),
	}
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (r *Registry) Register(name string, f ProviderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[normalize(name)] = f
}

func (r *Registry) RegisterEmbedder(name string, f EmbedderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.embedders[normalize(name)] = f
}

func (r *Registry) Get(ctx context.Context, name string, model string, s Settings) (Provider, error) {
	name = normalize(name)
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown ai provider: %s", name)
	}
	return f(ctx, model, s)
}

func (r *Registry) Embedder(ctx context.Context, name string, model string) (Embedder, error) {
	name = normalize(name)
	r.mu.RLock()
	f, ok := r.embedders[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown embedding provider: %s", name)
	}
	return f(ctx, model)
}
