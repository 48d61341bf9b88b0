package memcache

import (
    "context"
    "sync"
    "time"

    "github.com/jonboulle/clockwork"
)

// Cache is an in-process ValueCache used for development and tests when
// no shared Redis is configured. Expired entries are dropped lazily on
// access; with a single process there is no cross-process lock safety,
// which is acceptable for the single-node setup it serves.
type Cache struct {
    mu    sync.Mutex
    items map[string]item
    clock clockwork.Clock
}

type item struct {
    value     string
    expiresAt time.Time // zero = never
}

func New(clock clockwork.Clock) *Cache {
    if clock == nil {
        clock = clockwork.NewRealClock()
    }
    return &Cache{items: make(map[string]item), clock: clock}
}

func (c *Cache) Get(_ context.Context, key string) (string, bool, error) {
    c.mu.Lock()
    defer c.mu.Unlock()
    it, ok := c.live(key)
    if !ok {
        return "", false, nil
    }
    return it.value, true, nil
}

func (c *Cache) Set(_ context.Context, key, value string, ttl time.Duration) error {
    c.mu.Lock()
    defer c.mu.Unlock()
    c.items[key] = c.entry(value, ttl)
    return nil
}

func (c *Cache) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
    c.mu.Lock()
    defer c.mu.Unlock()
    if _, ok := c.live(key); ok {
        return false, nil
    }
    c.items[key] = c.entry(value, ttl)
    return true, nil
}

func (c *Cache) Del(_ context.Context, key string) error {
    c.mu.Lock()
    defer c.mu.Unlock()
    delete(c.items, key)
    return nil
}

// live returns the entry if present and unexpired, expiring lazily.
// Callers must hold mu.
func (c *Cache) live(key string) (item, bool) {
    it, ok := c.items[key]
    if !ok {
        return item{}, false
    }
    if !it.expiresAt.IsZero() && !c.clock.Now().Before(it.expiresAt) {
        delete(c.items, key)
        return item{}, false
    }
    return it, true
}

func (c *Cache) entry(value string, ttl time.Duration) item {
    it := item{value: value}
    if ttl > 0 {
        it.expiresAt = c.clock.Now().Add(ttl)
    }
    return it
}
