package store

import (
	"context"
	"sync"

	"github.com/openquant/etrade-mcp/core"
	"github.com/openquant/etrade-mcp/ports"
)

// MemoryStore is an in-memory implementation of the TokenStore interface,
// used in tests and as a fallback when no durable backend is wanted.
type MemoryStore struct {
	token *core.AccessToken
	mu    sync.RWMutex
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() ports.TokenStore {
	return &MemoryStore{}
}

// Load returns the held pair, or (nil, nil) when empty
func (s *MemoryStore) Load(ctx context.Context) (*core.AccessToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.token == nil {
		return nil, nil
	}
	token := *s.token
	return &token, nil
}

// Save replaces the held pair
func (s *MemoryStore) Save(ctx context.Context, token core.AccessToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = &token
	return nil
}

// Clear drops the held pair
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = nil
	return nil
}
