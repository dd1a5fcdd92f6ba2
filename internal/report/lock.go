package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"fintrack/internal/log"
)

// ErrLockBusy is returned when another process holds the storage lock for
// longer than the retry window.
var ErrLockBusy = errors.New("storage lock busy")

// RedisLocker guards storage rotation across processes sharing one volume.
type RedisLocker struct {
	client *redislock.Client
	key    string
	ttl    time.Duration
	logger *log.Logger
}

// NewRedisLocker wraps rdb. The lock expires after ttl even if its holder
// dies.
func NewRedisLocker(rdb redis.UniversalClient, key string, ttl time.Duration, logger *log.Logger) *RedisLocker {
	if logger == nil {
		logger = log.Default()
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{
		client: redislock.New(rdb),
		key:    key,
		ttl:    ttl,
		logger: logger.WithComponent(log.ComponentStorage),
	}
}

func (l *RedisLocker) Lock(ctx context.Context) (func(), error) {
	lock, err := l.client.Obtain(ctx, l.key, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 50),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s", ErrLockBusy, l.key)
	}
	if err != nil {
		return nil, fmt.Errorf("obtain %s: %w", l.key, err)
	}
	return func() {
		// Detached: the caller's context may already be done.
		if err := lock.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.logger.Warn("Release storage lock", log.FieldError, err)
		}
	}, nil
}
