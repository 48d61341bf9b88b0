package counters

// Cache key layout. Scope keys and lock keys live in the same volatile
// cache but under distinct prefixes; the warm lock is deliberately
// separate from the per-scope sitewide locks so a warming pass and an
// incidental user-triggered recomputation cannot deadlock each other.

const (
    scopePrefix        = "counter:"
    sitewideLockPrefix = "lock:sitewide:"
    warmLockKey        = "lock:warm"
)

// scopeKey builds the canonical cache key for a lookup scope. The
// placeholders keep (counter, none, all) distinct from a council slug
// or year label that happens to be empty elsewhere.
func scopeKey(counterSlug, councilSlug, yearLabel string) string {
    if councilSlug == "" {
        councilSlug = "none"
    }
    if yearLabel == "" {
        yearLabel = "all"
    }
    return scopePrefix + counterSlug + ":" + councilSlug + ":" + yearLabel
}

func sitewideLockKey(key string) string {
    return sitewideLockPrefix + key
}
