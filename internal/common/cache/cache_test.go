package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-builders/sponsor-points-backend/internal/platform/redis"
)

type entry struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func newTestCache(t *testing.T) (*CacheService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCacheService(redis.Wrap(client)), mr
}

func TestCacheRoundTripAndMiss(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	var got entry
	err := c.Get(ctx, "missing", &got)
	assert.True(t, errors.Is(err, goredis.Nil))

	found, err := c.Lookup(ctx, "missing", &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Set(ctx, "k", entry{Name: "a", Count: 2}, time.Minute))
	found, err = c.Lookup(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, entry{Name: "a", Count: 2}, got)

	assert.True(t, mr.Exists("k"))

	mr.FastForward(2 * time.Minute)
	found, err = c.Lookup(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCacheDelete(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", entry{Name: "a"}, 0))
	require.NoError(t, c.Delete(ctx, "k"))
	assert.False(t, mr.Exists("k"))
	require.NoError(t, c.Delete(ctx, "k"))
}

func TestCacheCorruptValue(t *testing.T) {
	c, mr := newTestCache(t)
	require.NoError(t, mr.Set("k", "{not json"))

	var got entry
	_, err := c.Lookup(context.Background(), "k", &got)
	assert.Error(t, err)
}
