package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rplatform "github.com/open-builders/sponsor-points-backend/internal/platform/redis"
	"github.com/open-builders/sponsor-points-backend/internal/platform/telegram"
)

func newTestClient(t *testing.T) (*rplatform.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = c.Close() })
	return rplatform.Wrap(c), mr
}

func TestPairLockExclusive(t *testing.T) {
	client, mr := newTestClient(t)
	lock := NewPairLock(client, time.Minute)
	ctx := context.Background()

	release, err := lock.Acquire(ctx, 1, 2)
	require.NoError(t, err)

	_, err = lock.Acquire(ctx, 1, 2)
	assert.ErrorIs(t, err, ErrLockHeld)

	other, err := lock.Acquire(ctx, 1, 3)
	require.NoError(t, err)
	other()

	release()
	assert.False(t, mr.Exists("membership:lock:1:2"))

	again, err := lock.Acquire(ctx, 1, 2)
	require.NoError(t, err)
	again()
}

func TestPairLockExpires(t *testing.T) {
	client, mr := newTestClient(t)
	lock := NewPairLock(client, time.Second)
	ctx := context.Background()

	stale, err := lock.Acquire(ctx, 5, 6)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	fresh, err := lock.Acquire(ctx, 5, 6)
	require.NoError(t, err)

	// Releasing the expired owner must not drop the new owner's lock.
	stale()
	assert.True(t, mr.Exists("membership:lock:5:6"))
	fresh()
}

func TestPairLockRefreshedWhileHeld(t *testing.T) {
	client, mr := newTestClient(t)
	lock := NewPairLock(client, 300*time.Millisecond)
	key := "membership:lock:7:8"

	release, err := lock.Acquire(context.Background(), 7, 8)
	require.NoError(t, err)

	// Without a refresh the key would be gone after a second jump of the same size.
	mr.FastForward(200 * time.Millisecond)
	require.Eventually(t, func() bool { return mr.TTL(key) > 200*time.Millisecond }, 2*time.Second, 10*time.Millisecond)
	mr.FastForward(200 * time.Millisecond)
	assert.True(t, mr.Exists(key))

	release()
	release()
	assert.False(t, mr.Exists(key))
}

func TestTickStoreLease(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewTickStore(client, time.Minute)
	ctx := context.Background()

	release, ok, err := store.AcquireLease(ctx, "run-1")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = store.AcquireLease(ctx, "run-2")
	require.NoError(t, err)
	assert.False(t, ok)

	release()
	release2, ok, err := store.AcquireLease(ctx, "run-2")
	require.NoError(t, err)
	assert.True(t, ok)
	release2()
}

func TestTickStoreReport(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewTickStore(client, time.Minute)
	ctx := context.Background()

	var got struct{ RunID string }
	found, err := store.LoadReport(ctx, &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.SaveReport(ctx, struct{ RunID string }{"abc"}))
	found, err = store.LoadReport(ctx, &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "abc", got.RunID)
}

func TestChatCache(t *testing.T) {
	client, mr := newTestClient(t)
	cache := NewChatCache(client, time.Hour)
	ctx := context.Background()

	_, err := cache.Get(ctx, "@news")
	assert.ErrorIs(t, err, goredis.Nil)

	require.NoError(t, cache.Set(ctx, "@news", &telegram.Chat{ID: -1001, Title: "News", Username: "news"}))
	chat, err := cache.Get(ctx, "@news")
	require.NoError(t, err)
	assert.Equal(t, "News", chat.Title)

	mr.FastForward(2 * time.Hour)
	_, err = cache.Get(ctx, "@news")
	assert.ErrorIs(t, err, goredis.Nil)
}
