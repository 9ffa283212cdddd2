package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/pkg/clients"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/jimlawless/whereami"
	r "github.com/redis/go-redis/v9"
)

// TokenCache хранит access token провайдера эмбеддингов в Redis, общий для всех реплик.
// Ключ живет до реального истечения токена.
type TokenCache struct {
	client *clients.RedisClient
	key    string
	now    func() time.Time
}

func NewTokenCache(client *clients.RedisClient, key string, now func() time.Time) *TokenCache {
	if now == nil {
		now = time.Now
	}

	return &TokenCache{
		client: client,
		key:    key,
		now:    now,
	}
}

func (t *TokenCache) Get(ctx context.Context) (*domain.AccessToken, error) {
	data, err := t.client.Client.Get(ctx, t.key).Bytes()
	if err != nil {
		if errors.Is(err, r.Nil) {
			return nil, nil
		}

		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	var token domain.AccessToken
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return &token, nil
}

func (t *TokenCache) Set(ctx context.Context, token *domain.AccessToken) error {
	ttl := token.ExpiresAt.Sub(t.now())
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(token)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	if err := t.client.Client.Set(ctx, t.key, data, ttl).Err(); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}
