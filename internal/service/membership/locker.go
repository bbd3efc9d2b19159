package membership

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type pairKey struct {
	userID    int64
	channelID int64
}

type pairEntry struct {
	mu   sync.Mutex
	refs int
}

// PairLocker serialises work on a (user, channel) pair. Goroutines of this process queue on
// a keyed mutex; when a RemoteLock is set, the holder then also claims it, polling until
// it is free or the wait runs out.
type PairLocker struct {
	mu      sync.Mutex
	entries map[pairKey]*pairEntry

	remote  RemoteLock
	retry   time.Duration
	maxWait time.Duration
}

func NewPairLocker(remote RemoteLock) *PairLocker {
	return &PairLocker{
		entries: make(map[pairKey]*pairEntry),
		remote:  remote,
		retry:   50 * time.Millisecond,
		maxWait: 15 * time.Second,
	}
}

// Lock blocks until the pair is owned by the caller. The returned func must be called exactly once.
func (l *PairLocker) Lock(ctx context.Context, userID, channelID int64) (func(), error) {
	key := pairKey{userID, channelID}

	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &pairEntry{}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	unlockLocal := func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.entries, key)
		}
		l.mu.Unlock()
	}

	if l.remote == nil {
		return unlockLocal, nil
	}

	release, err := l.acquireRemote(ctx, userID, channelID)
	if err != nil {
		unlockLocal()
		return nil, err
	}
	return func() {
		release()
		unlockLocal()
	}, nil
}

func (l *PairLocker) acquireRemote(ctx context.Context, userID, channelID int64) (func(), error) {
	deadline := time.Now().Add(l.maxWait)
	for {
		release, err := l.remote.Acquire(ctx, userID, channelID)
		if err == nil {
			return release, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("lock pair %d/%d: %w", userID, channelID, err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}
}
