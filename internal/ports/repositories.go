package ports

import (
    "context"
    "time"

    "counterboard/internal/domain"
)

// FigureStore reads submitted figures. This service never writes figures.
type FigureStore interface {
    // FiguresByFieldAndScope is the bulk path for sitewide scope: one
    // query covering every matching council, never a per-council loop.
    FiguresByFieldAndScope(ctx context.Context, fieldSlugs []string, filter *domain.CouncilFilter, yearLabel *string) ([]domain.Figure, error)

    // CouncilFigures fetches one council's figures for the given fields,
    // optionally narrowed to a single year.
    CouncilFigures(ctx context.Context, councilSlug string, fieldSlugs []string, yearLabel *string) ([]domain.Figure, error)
}

// CouncilRegistry resolves council identities and the council-level
// population attribute used as the first per-capita strategy.
type CouncilRegistry interface {
    GetCouncil(ctx context.Context, slug string) (domain.Council, bool, error)
    SumPopulation(ctx context.Context, filter *domain.CouncilFilter) (string, error)
}

// YearRegistry lists known financial years in chronological order.
type YearRegistry interface {
    Years(ctx context.Context) ([]domain.FinancialYear, error)
}

// CounterRegistry resolves counter definitions and the promote-flagged
// site/group counter configuration consumed by warming.
type CounterRegistry interface {
    GetCounter(ctx context.Context, slug string) (domain.CounterDefinition, bool, error)
    PromotedSiteCounters(ctx context.Context) ([]domain.SiteCounter, error)
    PromotedGroupCounters(ctx context.Context) ([]domain.GroupCounter, error)
}

// StoreStats summarises the durable rows for GetStatistics.
type StoreStats struct {
    Total     int64
    Fresh     int64
    Stale     int64
    CacheHits int64
    Fastest   *domain.CounterResult
    Slowest   *domain.CounterResult
}

// ResultRepository manages the durable counter_results rows, the only
// state this service owns.
type ResultRepository interface {
    Get(ctx context.Context, counterSlug string, councilSlug, yearLabel *string) (domain.CounterResult, bool, error)

    // Upsert writes a fresh computation: value, hash and timestamps are
    // overwritten and the stale mark budget is reset.
    Upsert(ctx context.Context, res domain.CounterResult) error

    // RecordHit bumps cache_hits and last_accessed. Best effort.
    RecordHit(ctx context.Context, counterSlug string, councilSlug, yearLabel *string) error

    // MarkStale flags the row stale unless it has already been marked
    // more than maxPerWindow times inside the trailing window. Reports
    // whether the row transitioned.
    MarkStale(ctx context.Context, counterSlug string, councilSlug, yearLabel *string, window time.Duration, maxPerWindow int) (bool, error)

    Statistics(ctx context.Context, since time.Time) (StoreStats, error)
}
