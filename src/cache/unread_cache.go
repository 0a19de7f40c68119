// Package cache keeps per-account unread notification counts in Redis.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/theleywin/Collab-Nest/src/config"
)

// UnreadCounter caches unread counts. The database stays the source of truth:
// writers invalidate, readers repopulate on a miss.
type UnreadCounter interface {
	Get(ctx context.Context, accountID uint) (int64, bool, error)
	Set(ctx context.Context, accountID uint, count int64) error
	Invalidate(ctx context.Context, accountIDs ...uint) error
}

// RedisUnreadCounter stores counts under notifications:unread:<accountId>.
type RedisUnreadCounter struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis creates the go-redis client the cache runs on.
func NewRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})
}

func NewRedisUnreadCounter(client *redis.Client, ttl time.Duration) *RedisUnreadCounter {
	return &RedisUnreadCounter{client: client, ttl: ttl}
}

func unreadKey(accountID uint) string {
	return fmt.Sprintf("notifications:unread:%d", accountID)
}

func (c *RedisUnreadCounter) Get(ctx context.Context, accountID uint) (int64, bool, error) {
	raw, err := c.client.Get(ctx, unreadKey(accountID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("redis get unread count: %w", err)
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt unread count %q: %w", raw, err)
	}
	return n, true, nil
}

func (c *RedisUnreadCounter) Set(ctx context.Context, accountID uint, count int64) error {
	if err := c.client.Set(ctx, unreadKey(accountID), count, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set unread count: %w", err)
	}
	return nil
}

func (c *RedisUnreadCounter) Invalidate(ctx context.Context, accountIDs ...uint) error {
	if len(accountIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(accountIDs))
	for _, id := range accountIDs {
		keys = append(keys, unreadKey(id))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis invalidate unread count: %w", err)
	}
	return nil
}

// NopUnreadCounter always misses; used when Redis is not configured.
type NopUnreadCounter struct{}

func (NopUnreadCounter) Get(context.Context, uint) (int64, bool, error) { return 0, false, nil }
func (NopUnreadCounter) Set(context.Context, uint, int64) error        { return nil }
func (NopUnreadCounter) Invalidate(context.Context, ...uint) error     { return nil }
