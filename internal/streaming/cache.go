package streaming

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Cache is the hash-write half of the depth/price cache Redis DB:
// HSET under a fixed hash key ("depth", "price"), field
// event_id::market_id. Kept as an interface separate from Client;
// cmd/depth backs both with the same Redis connection.
type Cache interface {
	HSet(ctx context.Context, hashKey, field, value string) error
}

// RedisCache implements Cache against a live redis.Cmdable.
type RedisCache struct {
	rdb redis.Cmdable
}

// NewRedisCache wraps an already-configured redis.Cmdable.
func NewRedisCache(rdb redis.Cmdable) *RedisCache {
	return &RedisCache{rdb: rdb}
}

func (c *RedisCache) HSet(ctx context.Context, hashKey, field, value string) error {
	return c.rdb.HSet(ctx, hashKey, field, value).Err()
}

// NewFakeCache builds an in-memory Cache for tests.
func NewFakeCache() *FakeCache {
	return &FakeCache{data: make(map[string]map[string]string)}
}

// FakeCache is an in-memory Cache.
type FakeCache struct {
	mu   sync.Mutex
	data map[string]map[string]string
}

func (c *FakeCache) HSet(_ context.Context, hashKey, field, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.data[hashKey]
	if !ok {
		h = make(map[string]string)
		c.data[hashKey] = h
	}
	h[field] = value
	return nil
}

// Get returns the stored value for hashKey/field, for test assertions.
func (c *FakeCache) Get(hashKey, field string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.data[hashKey]
	if !ok {
		return "", false
	}
	v, ok := h[field]
	return v, ok
}
