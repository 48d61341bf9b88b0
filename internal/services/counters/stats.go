package counters

import (
    "context"
    "time"

    "counterboard/internal/domain"
    "counterboard/internal/ports"
)

// Statistics reports on durable rows touched within the lookback
// window: freshness split, accumulated hit counts, and the fastest and
// slowest recorded computations.
func (s *Service) Statistics(ctx context.Context, lookback time.Duration) (ports.CacheStats, error) {
    since := s.clock.Now().Add(-lookback)
    raw, err := s.results.Statistics(ctx, since)
    if err != nil {
        return ports.CacheStats{}, err
    }
    return ports.CacheStats{
        Total:     raw.Total,
        Fresh:     raw.Fresh,
        Stale:     raw.Stale,
        CacheHits: raw.CacheHits,
        Fastest:   sample(raw.Fastest),
        Slowest:   sample(raw.Slowest),
    }, nil
}

func sample(r *domain.CounterResult) *ports.ComputationSample {
    if r == nil {
        return nil
    }
    return &ports.ComputationSample{
        CounterSlug: r.CounterSlug,
        CouncilSlug: deref(r.CouncilSlug),
        YearLabel:   deref(r.YearLabel),
        Seconds:     r.CalculationSeconds,
    }
}
