package ports

import (
    "context"
    "time"
)

// ValueCache is the volatile tier: a shared TTL key-value cache with an
// atomic set-if-absent primitive for distributed locks. Implementations
// must be safe for concurrent use across processes sharing the backend.
type ValueCache interface {
    // Get returns the cached value and whether the key was present.
    Get(ctx context.Context, key string) (string, bool, error)

    Set(ctx context.Context, key, value string, ttl time.Duration) error

    // SetNX sets the key only if absent, returning whether it was set.
    // This is the lock-acquire primitive; the ttl is the lock expiry
    // backstop against a crashed holder.
    SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

    Del(ctx context.Context, key string) error
}
