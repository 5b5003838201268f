package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	redisv9 "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrLockBusy is returned when another holder kept the lock past the wait.
var ErrLockBusy = errors.New("document is locked by another processor")

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redisv9.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// refreshScript extends the TTL only if the key still holds our token.
var refreshScript = redisv9.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// DocumentLock serializes processing of a single document across processes.
// A held lock is refreshed every ttl/3 until released, so work may outlive
// the TTL without the key expiring under it.
type DocumentLock struct {
	client       *redisv9.Client
	ttl          time.Duration
	wait         time.Duration
	pollInterval time.Duration
	refreshEvery time.Duration
	logger       *zap.Logger
}

func NewDocumentLock(client *redisv9.Client, ttl, wait time.Duration, logger *zap.Logger) *DocumentLock {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentLock{
		client:       client,
		ttl:          ttl,
		wait:         wait,
		pollInterval: 200 * time.Millisecond,
		refreshEvery: ttl / 3,
		logger:       logger,
	}
}

// Acquire blocks until the lock is held, the wait elapses (ErrLockBusy), or
// ctx ends. The returned func stops the refresher and releases the lock if we
// still own it.
func (l *DocumentLock) Acquire(ctx context.Context, documentID uint) (func(context.Context) error, error) {
	key := lockKey(documentID)
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis acquire document lock failed: %w", err)
		}
		if ok {
			return l.hold(key, token), nil
		}
		if !time.Now().Before(deadline) {
			return nil, ErrLockBusy
		}

		timer := time.NewTimer(l.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (l *DocumentLock) hold(key, token string) func(context.Context) error {
	stop := make(chan struct{})
	done := make(chan struct{})
	go l.refresh(key, token, stop, done)

	var once sync.Once
	return func(releaseCtx context.Context) error {
		once.Do(func() { close(stop) })
		<-done
		if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("redis release document lock failed: %w", err)
		}
		return nil
	}
}

func (l *DocumentLock) refresh(key, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.refreshEvery)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), l.refreshEvery)
		extended, err := refreshScript.Run(ctx, l.client, []string{key}, token, l.ttl.Milliseconds()).Int()
		cancel()
		if err != nil {
			l.logger.Warn("refresh document lock failed", zap.String("key", key), zap.Error(err))
			continue
		}
		if extended == 0 {
			l.logger.Error("document lock lost before release", zap.String("key", key))
			return
		}
	}
}

func lockKey(documentID uint) string {
	return fmt.Sprintf("document:lock:%d", documentID)
}
