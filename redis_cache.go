package saga

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultCacheTTL is how long a cached listing stays usable as a fallback.
const DefaultCacheTTL = 24 * time.Hour

// RedisCache implements SnapshotCache in Redis so separate CLI invocations
// and the HTTP server share one fallback copy.
type RedisCache struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

// NewRedisCache creates a new RedisCache.
// prefix defaults to "saga-dashboard:" and ttl to DefaultCacheTTL.
func NewRedisCache(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisCache {
	if prefix == "" {
		prefix = "saga-dashboard:"
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisCache{client: client, key: prefix + "sagas", ttl: ttl}
}

// StoreSagas replaces the cached listing.
func (c *RedisCache) StoreSagas(ctx context.Context, sagas []Saga) error {
	if sagas == nil {
		sagas = []Saga{}
	}
	b, err := json.Marshal(sagas)
	if err != nil {
		return fmt.Errorf("marshal sagas: %w", err)
	}
	if err := c.client.Set(ctx, c.key, b, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// LoadSagas returns the cached listing.
func (c *RedisCache) LoadSagas(ctx context.Context) ([]Saga, error) {
	b, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return []Saga{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var sagas []Saga
	if err := json.Unmarshal(b, &sagas); err != nil {
		return nil, fmt.Errorf("unmarshal sagas: %w", err)
	}
	return sagas, nil
}

// Ensure RedisCache implements SnapshotCache.
var _ SnapshotCache = (*RedisCache)(nil)
