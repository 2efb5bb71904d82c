package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisQueueKey = "storefront:queue:jobs"

// RedisDriver is a durable queue driver: LPUSH to enqueue, BRPOP to consume.
type RedisDriver struct {
	rdb     *redis.Client
	key     string
	timeout time.Duration
}

// NewRedisDriver creates a Redis-backed queue driver.
func NewRedisDriver(rdb *redis.Client) *RedisDriver {
	return &RedisDriver{rdb: rdb, key: redisQueueKey, timeout: 5 * time.Second}
}

func (d *RedisDriver) Push(ctx context.Context, payload []byte) error {
	if err := d.rdb.LPush(ctx, d.key, payload).Err(); err != nil {
		return fmt.Errorf("queue/redis: push: %w", err)
	}
	return nil
}

// Pop blocks for up to five seconds; a timeout yields (nil, nil).
func (d *RedisDriver) Pop(ctx context.Context) ([]byte, error) {
	result, err := d.rdb.BRPop(ctx, d.timeout, d.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("queue/redis: pop: %w", err)
	}
	if len(result) < 2 {
		return nil, nil
	}
	return []byte(result[1]), nil
}
