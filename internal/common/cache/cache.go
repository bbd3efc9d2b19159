package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/open-builders/sponsor-points-backend/internal/platform/redis"
)

// CacheService stores JSON-encoded values in Redis.
type CacheService struct {
	client *redis.Client
}

// NewCacheService wraps a connected Redis client.
func NewCacheService(client *redis.Client) *CacheService {
	return &CacheService{client: client}
}

// Get decodes the value at key into dest. A miss is returned as redis.Nil.
func (c *CacheService) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// Lookup is Get with the miss reported as found=false.
func (c *CacheService) Lookup(ctx context.Context, key string, dest interface{}) (found bool, err error) {
	err = c.Get(ctx, key, dest)
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Set stores value under key. A zero ttl keeps the key until it is overwritten.
func (c *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

// Delete removes key; deleting a missing key is not an error.
func (c *CacheService) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}
