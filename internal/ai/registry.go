package ai

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Loader fetches the tokenizer and model published under repo.
type Loader func(ctx context.Context, repo string) (*Artifacts, error)

type Registry struct {
	mu      sync.RWMutex
	loaders map[string]Loader
}

func NewRegistry() *Registry {
	return &Registry{loaders: make(map[string]Loader)}
}

func (r *Registry) Register(name string, l Loader) {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaders[name] = l
}

func (r *Registry) Load(ctx context.Context, name string, repo string) (*Artifacts, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.RLock()
	l, ok := r.loaders[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown model backend: %s", name)
	}
	a, err := l(ctx, repo)
	if err != nil {
		return nil, fmt.Errorf("load %s from %s backend: %w", repo, name, err)
	}
	if a == nil || a.Tokenizer == nil || a.Model == nil {
		return nil, fmt.Errorf("load %s from %s backend: incomplete artifacts", repo, name)
	}
	return a, nil
}
