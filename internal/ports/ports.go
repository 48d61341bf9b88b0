package ports

import (
    "context"
    "time"

    "counterboard/internal/domain"
)

// ValueRequest identifies a lookup scope plus the caller's tolerance for
// cost and staleness. Empty CouncilSlug means sitewide, empty YearLabel
// means all years.
type ValueRequest struct {
    CounterSlug string
    CouncilSlug string
    YearLabel   string

    // AllowExpensive permits a sitewide/all-years recomputation on a
    // cache miss. User-facing requests leave this false and render the
    // deferred state instead of blocking.
    AllowExpensive bool

    // AllowStaleFallback serves the last stale durable value when
    // computation fails outright.
    AllowStaleFallback bool
}

// CounterReader serves counter values and cache statistics.
type CounterReader interface {
    // Value never fails; degraded outcomes are carried in the result kind.
    Value(ctx context.Context, req ValueRequest) domain.CounterValue

    Statistics(ctx context.Context, lookback time.Duration) (CacheStats, error)
}

// StaleMarker is called by figure writers when an input changes.
type StaleMarker interface {
    MarkStale(ctx context.Context, counterSlug string, councilSlug, yearLabel *string) error
}

// Warmer precomputes promote-flagged counters.
type Warmer interface {
    WarmCritical(ctx context.Context) (WarmReport, error)
}

// WarmReport summarises one warming pass.
type WarmReport struct {
    Considered int
    Computed   int
    Failed     int
    Elapsed    time.Duration
}

// CacheStats is the exposed statistics payload.
type CacheStats struct {
    Total     int64              `json:"total"`
    Fresh     int64              `json:"fresh"`
    Stale     int64              `json:"stale"`
    CacheHits int64              `json:"cache_hits"`
    Fastest   *ComputationSample `json:"fastest,omitempty"`
    Slowest   *ComputationSample `json:"slowest,omitempty"`
}

// ComputationSample names one durable row and how long it took to compute.
type ComputationSample struct {
    CounterSlug string  `json:"counter"`
    CouncilSlug string  `json:"council,omitempty"`
    YearLabel   string  `json:"year,omitempty"`
    Seconds     float64 `json:"seconds"`
}
