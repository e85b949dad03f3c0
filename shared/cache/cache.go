package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned by Get when the key does not exist
var ErrCacheMiss = errors.New("cache miss")

// Cache is a namespaced key/value cache on top of Redis
type Cache struct {
	redis     redis.UniversalClient
	namespace string
}

// NewCache creates a cache whose keys are prefixed with "namespace:"
func NewCache(namespace string, client redis.UniversalClient) *Cache {
	return &Cache{
		redis:     client,
		namespace: namespace,
	}
}

// Key returns the full Redis key for key
func (c *Cache) Key(key string) string {
	return c.namespace + ":" + key
}

// Get returns the cached value or ErrCacheMiss
func (c *Cache) Get(ctx context.Context, key string) (string, error) {
	val, err := c.redis.Get(ctx, c.Key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

// Set stores value with the given time-to-live
func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.redis.Set(ctx, c.Key(key), value, ttl).Err()
}

// Delete removes key. Deleting a missing key is not an error.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.redis.Del(ctx, c.Key(key)).Err()
}
