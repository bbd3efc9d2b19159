package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/open-builders/sponsor-points-backend/internal/common/cache"
	rplatform "github.com/open-builders/sponsor-points-backend/internal/platform/redis"
	"github.com/open-builders/sponsor-points-backend/internal/platform/telegram"
)

// ChatCache caches Telegram chat metadata resolved when sponsors are registered.
type ChatCache struct {
	cache *cache.CacheService
	ttl   time.Duration
}

func NewChatCache(client *rplatform.Client, ttl time.Duration) *ChatCache {
	return &ChatCache{cache: cache.NewCacheService(client), ttl: ttl}
}

func (c *ChatCache) key(chatID string) string { return fmt.Sprintf("tg:chat:%s", chatID) }

// Get returns the cached chat. A miss is reported as redis.Nil.
func (c *ChatCache) Get(ctx context.Context, chatID string) (*telegram.Chat, error) {
	var chat telegram.Chat
	if err := c.cache.Get(ctx, c.key(chatID), &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

func (c *ChatCache) Set(ctx context.Context, chatID string, chat *telegram.Chat) error {
	return c.cache.Set(ctx, c.key(chatID), chat, c.ttl)
}

func (c *ChatCache) Invalidate(ctx context.Context, chatID string) error {
	return c.cache.Delete(ctx, c.key(chatID))
}
