package counters

import (
    "context"
    "errors"
    "fmt"

    "counterboard/internal/domain"
    "counterboard/internal/ports"
    "counterboard/internal/services/aggregate"
)

// ErrWarmRunning reports that another warming pass holds the warm lock.
// Callers should treat it as "already running", not retry.
var ErrWarmRunning = errors.New("warming already running")

// WarmCritical recomputes every promote-flagged site and group counter
// whose durable row is stale or absent. One pass runs system-wide at a
// time, serialized by its own lock key.
func (s *Service) WarmCritical(ctx context.Context) (ports.WarmReport, error) {
    var report ports.WarmReport

    acquired, err := s.cache.SetNX(ctx, warmLockKey, "1", s.lockTTL)
    if err != nil {
        return report, fmt.Errorf("acquire warm lock: %w", err)
    }
    if !acquired {
        return report, ErrWarmRunning
    }
    defer s.unlock(warmLockKey)

    start := s.clock.Now()

    site, err := s.counters.PromotedSiteCounters(ctx)
    if err != nil {
        return report, fmt.Errorf("load site counters: %w", err)
    }
    groups, err := s.counters.PromotedGroupCounters(ctx)
    if err != nil {
        return report, fmt.Errorf("load group counters: %w", err)
    }

    for _, sc := range site {
        s.warmOne(ctx, &report, sc.CounterSlug, sc.YearLabel, nil)
    }
    for _, gc := range groups {
        s.warmOne(ctx, &report, gc.CounterSlug, gc.YearLabel, groupFilter(gc))
    }

    report.Elapsed = s.clock.Since(start)
    s.log.Info("warming pass finished",
        "considered", report.Considered,
        "computed", report.Computed,
        "failed", report.Failed,
        "elapsed", report.Elapsed)
    return report, nil
}

// warmOne recomputes one configured scope when its row is stale or
// missing. Fresh rows are left alone; warming must not churn values
// users are already being served.
func (s *Service) warmOne(ctx context.Context, report *ports.WarmReport, counterSlug string, yearLabel *string, filter *domain.CouncilFilter) {
    report.Considered++

    row, found, err := s.results.Get(ctx, counterSlug, nil, yearLabel)
    if err == nil && found && !row.IsStale {
        return
    }
    if err != nil {
        s.log.Warn("warm: durable read failed", "counter", counterSlug, "err", err)
    }

    def, ok, err := s.counters.GetCounter(ctx, counterSlug)
    if err != nil || !ok {
        s.log.Error("warm: counter missing", "counter", counterSlug, "err", err)
        report.Failed++
        return
    }

    scope := aggregate.Scope{YearLabel: deref(yearLabel), Filter: filter}
    key := scopeKey(counterSlug, "", deref(yearLabel))
    if _, err := s.computeAndStore(ctx, def, scope, key, nil, yearLabel); err != nil {
        s.log.Error("warm: computation failed", "counter", counterSlug, "err", err)
        report.Failed++
        return
    }
    report.Computed++
}

func groupFilter(gc domain.GroupCounter) *domain.CouncilFilter {
    f := &domain.CouncilFilter{Slugs: gc.CouncilSlugs}
    if gc.ListSlug != nil {
        f.ListSlug = *gc.ListSlug
    }
    if gc.CouncilType != nil {
        f.Type = *gc.CouncilType
    }
    if f.Empty() {
        return nil
    }
    return f
}
