// Package checkpoint keeps the last period the scheduled batch completed
// in Redis, so every worker sharing the instance agrees on it.
package checkpoint

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"fintrack/internal/core"
)

// DefaultKey is the Redis key holding the last completed period.
const DefaultKey = "fintrack:scheduler:last-period"

// Redis stores the checkpoint as a "YYYY-MM" string.
type Redis struct {
	rdb redis.Cmdable
	key string
}

func NewRedis(rdb redis.Cmdable, key string) *Redis {
	if key == "" {
		key = DefaultKey
	}
	return &Redis{rdb: rdb, key: key}
}

func (c *Redis) LastCompleted(ctx context.Context) (core.Period, error) {
	v, err := c.rdb.Get(ctx, c.key).Result()
	if errors.Is(err, redis.Nil) {
		return core.Period{}, nil
	}
	if err != nil {
		return core.Period{}, fmt.Errorf("get %s: %w", c.key, err)
	}
	return core.ParsePeriodKey(v)
}

func (c *Redis) MarkCompleted(ctx context.Context, p core.Period) error {
	if err := c.rdb.Set(ctx, c.key, p.Key(), 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", c.key, err)
	}
	return nil
}
