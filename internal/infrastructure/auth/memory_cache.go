package auth

import (
	"context"
	"sync"

	"github.com/DRSN-tech/visual-search/internal/domain"
)

// MemoryTokenCache хранит токен в памяти процесса.
type MemoryTokenCache struct {
	mu    sync.RWMutex
	token *domain.AccessToken
}

func NewMemoryTokenCache() *MemoryTokenCache {
	return &MemoryTokenCache{}
}

func (c *MemoryTokenCache) Get(_ context.Context) (*domain.AccessToken, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.token == nil {
		return nil, nil
	}

	token := *c.token
	return &token, nil
}

func (c *MemoryTokenCache) Set(_ context.Context, token *domain.AccessToken) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	copied := *token
	c.token = &copied

	return nil
}
