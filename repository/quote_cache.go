package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// QuoteCache is a redis-backed cache for calculator responses
type QuoteCache struct {
	client *redis.Client
}

// NewQuoteCache creates a new quote cache against the given redis address
func NewQuoteCache(addr string) *QuoteCache {
	return &QuoteCache{
		client: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

// Get returns the cached value for key, if present
func (c *QuoteCache) Get(ctx context.Context, key string) (string, bool) {
	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		return "", false
	}
	return val, true
}

// Set stores a value with the given TTL
func (c *QuoteCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

// Close releases the underlying redis connection
func (c *QuoteCache) Close() error {
	return c.client.Close()
}
