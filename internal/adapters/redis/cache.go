package rediscache

import (
    "context"
    "errors"
    "time"

    "github.com/redis/go-redis/v9"
)

// Cache adapts a shared Redis to the ValueCache port: TTL'd values plus
// the SetNX primitive backing the distributed locks.
type Cache struct {
    rdb *redis.Client
}

func Connect(ctx context.Context, url string) (*Cache, error) {
    opts, err := redis.ParseURL(url)
    if err != nil {
        return nil, err
    }
    rdb := redis.NewClient(opts)
    if err := rdb.Ping(ctx).Err(); err != nil {
        rdb.Close()
        return nil, err
    }
    return &Cache{rdb: rdb}, nil
}

func (c *Cache) Close() error { return c.rdb.Close() }

func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
    v, err := c.rdb.Get(ctx, key).Result()
    if errors.Is(err, redis.Nil) {
        return "", false, nil
    }
    if err != nil {
        return "", false, err
    }
    return v, true, nil
}

func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
    return c.rdb.Set(ctx, key, value, ttl).Err()
}

func (c *Cache) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
    return c.rdb.SetNX(ctx, key, value, ttl).Result()
}

func (c *Cache) Del(ctx context.Context, key string) error {
    return c.rdb.Del(ctx, key).Err()
}
