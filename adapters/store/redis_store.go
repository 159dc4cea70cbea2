package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/openquant/etrade-mcp/core"
	"github.com/openquant/etrade-mcp/ports"
)

// RedisStore is a Redis implementation of the TokenStore interface, for
// deployments that share the access token pair between hosts. The pair is
// stored as one JSON value under a single key so it can never be updated
// one-sided.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore creates a new Redis store. The key is namespaced per
// environment so sandbox and production pairs never collide.
func NewRedisStore(client *redis.Client, environment string) ports.TokenStore {
	return &RedisStore{
		client: client,
		key:    "etrade:tokens:" + environment,
	}
}

// Load reads the token record. A missing or unparseable value yields
// (nil, nil); corrupt values are deleted.
func (s *RedisStore) Load(ctx context.Context) (*core.AccessToken, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read token record: %w", err)
	}

	var token core.AccessToken
	if err := json.Unmarshal(data, &token); err != nil || !token.Valid() {
		_ = s.client.Del(ctx, s.key).Err()
		return nil, nil
	}

	return &token, nil
}

// Save replaces the token record in one SET
func (s *RedisStore) Save(ctx context.Context, token core.AccessToken) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to encode token record: %w", err)
	}

	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write token record: %w", err)
	}

	return nil
}

// Clear removes the token record. DEL on a missing key is a no-op.
func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("failed to remove token record: %w", err)
	}
	return nil
}
