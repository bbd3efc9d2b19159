package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	rplatform "github.com/open-builders/sponsor-points-backend/internal/platform/redis"
)

// ErrLockHeld is returned when another process owns the pair lock.
var ErrLockHeld = errors.New("pair lock is held by another process")

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

// PairLock serialises reconciliation of one (user, channel) pair across processes.
type PairLock struct {
	client *rplatform.Client
	ttl    time.Duration
}

func NewPairLock(client *rplatform.Client, ttl time.Duration) *PairLock {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &PairLock{client: client, ttl: ttl}
}

func (l *PairLock) key(userID, channelID int64) string {
	return fmt.Sprintf("membership:lock:%d:%d", userID, channelID)
}

// Acquire takes the lock or returns ErrLockHeld. While held, the TTL is pushed forward every
// third of its length, so a slow Telegram call cannot outlive it. The returned func stops the
// refresh and releases the lock only if still owned.
func (l *PairLock) Acquire(ctx context.Context, userID, channelID int64) (func(), error) {
	key := l.key(userID, channelID)
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockHeld
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.refresh(key, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			// The caller's ctx may already be cancelled; release must still run.
			rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = releaseScript.Run(rctx, l.client, []string{key}, token).Err()
		})
	}, nil
}

func (l *PairLock) refresh(key, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			n, err := refreshScript.Run(rctx, l.client, []string{key}, token, l.ttl.Milliseconds()).Int()
			cancel()
			if err == nil && n == 0 {
				// Lost the key; nothing left to extend.
				return
			}
		}
	}
}
