package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	go_redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-builders/sponsor-points-backend/internal/platform/redis"
)

type accessCall struct {
	chatID    string
	hasAccess bool
}

type fakeAccess struct {
	mu    sync.Mutex
	calls []accessCall
	err   error
	// failFirst makes the first n calls fail with a store error.
	failFirst int
}

func (f *fakeAccess) UpdateAccessByChatID(ctx context.Context, chatID string, hasAccess bool, checkedAt time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, accessCall{chatID, hasAccess})
	if len(f.calls) <= f.failFirst {
		return 0, errors.New("connection reset")
	}
	return 1, f.err
}

func (f *fakeAccess) snapshot() []accessCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]accessCall(nil), f.calls...)
}

func TestProcessMessage(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]interface{}
		want   []accessCall
	}{
		{"removed", map[string]interface{}{"type": "bot_removed", "channel_id": "-1001"}, []accessCall{{"-1001", false}}},
		{"added", map[string]interface{}{"type": "bot_added", "channel_id": "@news"}, []accessCall{{"@news", true}}},
		{"unknown type", map[string]interface{}{"type": "giveaway_created", "channel_id": "-1001"}, nil},
		{"missing channel", map[string]interface{}{"type": "bot_removed"}, nil},
		{"missing type", map[string]interface{}{"channel_id": "-1001"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			access := &fakeAccess{}
			w := NewRedisStreamWorker(nil, access, "", zerolog.Nop())
			assert.NoError(t, w.processMessage(context.Background(), tt.values))
			assert.Equal(t, tt.want, access.snapshot())
		})
	}
}

func TestProcessMessageReturnsStoreError(t *testing.T) {
	access := &fakeAccess{err: errors.New("db down")}
	w := NewRedisStreamWorker(nil, access, "", zerolog.Nop())
	err := w.processMessage(context.Background(), map[string]interface{}{"type": "bot_removed", "channel_id": "-1"})
	assert.Error(t, err)
	assert.Len(t, access.snapshot(), 1)
}

func TestWorkerConsumesStream(t *testing.T) {
	mr := miniredis.RunT(t)
	client := go_redis.NewClient(&go_redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	access := &fakeAccess{}
	w := NewRedisStreamWorker(redis.Wrap(client), access, "test", zerolog.Nop())

	require.NoError(t, client.XGroupCreateMkStream(context.Background(), streamKey, consumerGroup, "$").Err())
	require.NoError(t, client.XAdd(context.Background(), &go_redis.XAddArgs{
		Stream: streamKey,
		Values: map[string]interface{}{"type": "bot_removed", "channel_id": "-100500"},
	}).Err())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(access.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, accessCall{"-100500", false}, access.snapshot()[0])

	cancel()
	select {
	case <-done:
	case <-time.After(7 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestWorkerRedeliversFailedEvent(t *testing.T) {
	mr := miniredis.RunT(t)
	client := go_redis.NewClient(&go_redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	access := &fakeAccess{failFirst: 1}
	w := NewRedisStreamWorker(redis.Wrap(client), access, "test", zerolog.Nop())
	w.retryDelay = 10 * time.Millisecond

	ctx := context.Background()
	require.NoError(t, client.XGroupCreateMkStream(ctx, streamKey, consumerGroup, "$").Err())
	require.NoError(t, client.XAdd(ctx, &go_redis.XAddArgs{
		Stream: streamKey,
		Values: map[string]interface{}{"type": "bot_added", "channel_id": "-100600"},
	}).Err())

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		w.Start(runCtx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(access.snapshot()) >= 2 }, 3*time.Second, 10*time.Millisecond)
	calls := access.snapshot()
	assert.Equal(t, accessCall{"-100600", true}, calls[0])
	assert.Equal(t, calls[0], calls[1])

	cancel()
	select {
	case <-done:
	case <-time.After(7 * time.Second):
		t.Fatal("worker did not stop")
	}
}
