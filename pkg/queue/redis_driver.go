package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisDriver keeps immediate jobs in a list (LPUSH/BRPOP) and delayed
// jobs in a sorted set scored by the Unix time they become due. Due jobs
// are promoted by whichever worker pops next.
type RedisDriver struct {
	rdb        *redis.Client
	readyKey   string
	delayedKey string
	wait       time.Duration
}

// NewRedisDriver creates a Redis-backed driver under prefix, e.g. "lister:".
func NewRedisDriver(rdb *redis.Client, prefix string) *RedisDriver {
	return &RedisDriver{
		rdb:        rdb,
		readyKey:   prefix + "queue:jobs",
		delayedKey: prefix + "queue:delayed",
		wait:       time.Second,
	}
}

func (d *RedisDriver) Push(ctx context.Context, payload []byte) error {
	if err := d.rdb.LPush(ctx, d.readyKey, payload).Err(); err != nil {
		return fmt.Errorf("queue/redis: push: %w", err)
	}
	return nil
}

// Pop promotes due delayed jobs, then blocks up to one second for a job.
func (d *RedisDriver) Pop(ctx context.Context) ([]byte, error) {
	if err := d.promote(ctx); err != nil {
		return nil, err
	}

	result, err := d.rdb.BRPop(ctx, d.wait, d.readyKey).Result()
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

func (d *RedisDriver) PushDelayed(ctx context.Context, payload []byte, delay time.Duration) error {
	runAt := float64(time.Now().Add(delay).Unix())
	if err := d.rdb.ZAdd(ctx, d.delayedKey, redis.Z{Score: runAt, Member: string(payload)}).Err(); err != nil {
		return fmt.Errorf("queue/redis: push delayed: %w", err)
	}
	return nil
}

func (d *RedisDriver) promote(ctx context.Context) error {
	now := strconv.FormatInt(time.Now().Unix(), 10)
	jobs, err := d.rdb.ZRangeByScore(ctx, d.delayedKey, &redis.ZRangeBy{Min: "-inf", Max: now}).Result()
	if err != nil {
		return fmt.Errorf("queue/redis: scan delayed: %w", err)
	}
	for _, job := range jobs {
		// ZRem decides which worker owns the job.
		removed, err := d.rdb.ZRem(ctx, d.delayedKey, job).Result()
		if err != nil {
			return fmt.Errorf("queue/redis: claim delayed: %w", err)
		}
		if removed == 1 {
			if err := d.rdb.LPush(ctx, d.readyKey, job).Err(); err != nil {
				return fmt.Errorf("queue/redis: promote: %w", err)
			}
		}
	}
	return nil
}
