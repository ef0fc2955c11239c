package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores short lived strings under a key prefix
type Cache struct {
	client *Client
	prefix string
}

func NewCache(client *Client, prefix string) *Cache {
	return &Cache{client: client, prefix: prefix}
}

// Get returns the cached value and whether it was present
func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.client.rdb.Get(ctx, c.prefix+":"+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get failed: %w", err)
	}
	return val, true, nil
}

func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.client.rdb.Set(ctx, c.prefix+":"+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}
