package counters

import (
    "context"
    "log/slog"
    "time"

    "github.com/jonboulle/clockwork"
    "github.com/shopspring/decimal"

    "counterboard/internal/domain"
    "counterboard/internal/ports"
    "counterboard/internal/services/aggregate"
)

// Computer evaluates a counter formula for a scope. Satisfied by
// *aggregate.Engine; a fake stands in for it in tests.
type Computer interface {
    Compute(ctx context.Context, def domain.CounterDefinition, scope aggregate.Scope) (aggregate.Result, error)
}

// Options tune the coordinator. Zero values pick the defaults below.
type Options struct {
    Logger *slog.Logger
    Clock  clockwork.Clock

    // ValueTTL bounds how long the volatile tier may serve a value
    // without consulting the durable store.
    ValueTTL time.Duration

    // LockTTL is the distributed-lock expiry, the backstop against a
    // crashed holder.
    LockTTL time.Duration

    // StaleWindow and StaleMaxPerWindow bound how often one row may be
    // re-marked stale, so bursty figure edits cannot thrash an
    // expensive sitewide counter.
    StaleWindow       time.Duration
    StaleMaxPerWindow int

    // HitTimeout bounds the best-effort hit-count write.
    HitTimeout time.Duration
}

const (
    defaultValueTTL    = 15 * time.Minute
    defaultLockTTL     = 20 * time.Minute
    defaultStaleWindow = time.Hour
    defaultStaleMax    = 5
    defaultHitTimeout  = 2 * time.Second
)

// Service is the cache coordinator: tiered lookup over the volatile
// cache, the durable result store and the aggregation engine, with
// distributed locks around expensive sitewide recomputation.
type Service struct {
    cache    ports.ValueCache
    results  ports.ResultRepository
    counters ports.CounterRegistry
    councils ports.CouncilRegistry
    engine   Computer
    clock    clockwork.Clock
    log      *slog.Logger

    valueTTL   time.Duration
    lockTTL    time.Duration
    staleWin   time.Duration
    staleMax   int
    hitTimeout time.Duration
}

func New(cache ports.ValueCache, results ports.ResultRepository, counters ports.CounterRegistry, councils ports.CouncilRegistry, engine Computer, opts Options) *Service {
    if opts.Logger == nil {
        opts.Logger = slog.Default()
    }
    if opts.Clock == nil {
        opts.Clock = clockwork.NewRealClock()
    }
    if opts.ValueTTL <= 0 {
        opts.ValueTTL = defaultValueTTL
    }
    if opts.LockTTL <= 0 {
        opts.LockTTL = defaultLockTTL
    }
    if opts.StaleWindow <= 0 {
        opts.StaleWindow = defaultStaleWindow
    }
    if opts.StaleMaxPerWindow <= 0 {
        opts.StaleMaxPerWindow = defaultStaleMax
    }
    if opts.HitTimeout <= 0 {
        opts.HitTimeout = defaultHitTimeout
    }
    return &Service{
        cache:      cache,
        results:    results,
        counters:   counters,
        councils:   councils,
        engine:     engine,
        clock:      opts.Clock,
        log:        opts.Logger,
        valueTTL:   opts.ValueTTL,
        lockTTL:    opts.LockTTL,
        staleWin:   opts.StaleWindow,
        staleMax:   opts.StaleMaxPerWindow,
        hitTimeout: opts.HitTimeout,
    }
}

// Value is the tiered lookup. It never fails: configuration gaps and
// computation errors degrade to zero, contention and deferred expensive
// work surface as the deferred kind.
func (s *Service) Value(ctx context.Context, req ports.ValueRequest) domain.CounterValue {
    start := s.clock.Now()
    key := scopeKey(req.CounterSlug, req.CouncilSlug, req.YearLabel)

    // Tier 1: volatile cache. The dominant path under normal load.
    if raw, ok, err := s.cache.Get(ctx, key); err != nil {
        s.log.Warn("volatile cache read failed", "key", key, "err", err)
    } else if ok {
        if amt, perr := decimal.NewFromString(raw); perr == nil {
            s.recordHit(req)
            s.observe("volatile", key, start, nil)
            return domain.Ready(amt, domain.TierVolatile)
        }
        s.log.Warn("volatile cache held unparsable value", "key", key, "raw", raw)
    }

    councilPtr := optional(req.CouncilSlug)
    yearPtr := optional(req.YearLabel)

    // Tier 2: durable store, promoted back into the volatile tier.
    row, rowOK, err := s.results.Get(ctx, req.CounterSlug, councilPtr, yearPtr)
    if err != nil {
        s.log.Warn("durable store read failed", "key", key, "err", err)
        rowOK = false
    }
    if rowOK && !row.IsStale {
        if err := s.cache.Set(ctx, key, row.Value.String(), s.valueTTL); err != nil {
            s.log.Warn("volatile cache write failed", "key", key, "err", err)
        }
        s.recordHit(req)
        s.observe("durable", key, start, nil)
        return domain.Ready(row.Value, domain.TierDurable)
    }

    // Tier 3: compute. Sitewide scope is expensive and lock-protected.
    def, ok, err := s.counters.GetCounter(ctx, req.CounterSlug)
    if err != nil {
        s.observe("none", key, start, err)
        return s.failedValue(ctx, key, row, rowOK, req.AllowStaleFallback)
    }
    if !ok {
        s.log.Error("unknown counter requested", "counter", req.CounterSlug)
        s.observe("none", key, start, nil)
        return domain.Ready(decimal.Zero, domain.TierNone)
    }
    if req.CouncilSlug != "" {
        if _, found, cerr := s.councils.GetCouncil(ctx, req.CouncilSlug); cerr != nil {
            s.observe("none", key, start, cerr)
            return s.failedValue(ctx, key, row, rowOK, req.AllowStaleFallback)
        } else if !found {
            s.log.Error("unknown council requested", "council", req.CouncilSlug)
            s.observe("none", key, start, nil)
            return domain.Ready(decimal.Zero, domain.TierNone)
        }
    }

    scope := aggregate.Scope{CouncilSlug: req.CouncilSlug, YearLabel: req.YearLabel}
    if scope.Sitewide() {
        if !req.AllowExpensive {
            s.observe("deferred", key, start, nil)
            return domain.Deferred()
        }
        acquired, lerr := s.cache.SetNX(ctx, sitewideLockKey(key), "1", s.lockTTL)
        if lerr != nil {
            s.observe("none", key, start, lerr)
            return s.failedValue(ctx, key, row, rowOK, req.AllowStaleFallback)
        }
        if !acquired {
            // Another worker is already computing this scope; don't wait.
            s.observe("deferred", key, start, nil)
            return domain.Deferred()
        }
        defer s.unlock(sitewideLockKey(key))
    }

    val, cerr := s.computeAndStore(ctx, def, scope, key, councilPtr, yearPtr)
    if cerr != nil {
        s.observe("none", key, start, cerr)
        return s.failedValue(ctx, key, row, rowOK, req.AllowStaleFallback)
    }
    s.observe("computed", key, start, nil)
    return domain.Ready(val, domain.TierComputed)
}

// computeAndStore runs the engine and writes the result through both
// cache tiers.
func (s *Service) computeAndStore(ctx context.Context, def domain.CounterDefinition, scope aggregate.Scope, key string, councilPtr, yearPtr *string) (decimal.Decimal, error) {
    began := s.clock.Now()
    res, err := s.engine.Compute(ctx, def, scope)
    if err != nil {
        return decimal.Zero, err
    }
    elapsed := s.clock.Since(began)

    now := s.clock.Now()
    if err := s.results.Upsert(ctx, domain.CounterResult{
        CounterSlug:        def.Slug,
        CouncilSlug:        councilPtr,
        YearLabel:          yearPtr,
        Value:              res.Value,
        DataHash:           res.InputsHash,
        IsStale:            false,
        CalculatedAt:       now,
        CalculationSeconds: elapsed.Seconds(),
        LastAccessed:       now,
        StaleWindowStart:   now,
    }); err != nil {
        // The caller still gets the computed value.
        s.log.Warn("durable store write failed", "key", key, "err", err)
    }
    if err := s.cache.Set(ctx, key, res.Value.String(), s.valueTTL); err != nil {
        s.log.Warn("volatile cache write failed", "key", key, "err", err)
    }
    return res.Value, nil
}

// failedValue is the tier-3 failure path: stale durable data when the
// caller permits it, zero otherwise.
func (s *Service) failedValue(ctx context.Context, key string, row domain.CounterResult, rowOK, allowStale bool) domain.CounterValue {
    if allowStale && rowOK && row.IsStale {
        s.log.Warn("serving stale fallback", "key", key, "calculated_at", row.CalculatedAt)
        return domain.Ready(row.Value, domain.TierStale)
    }
    return domain.Unavailable()
}

// MarkStale flags the durable row after an underlying figure changed.
// Rate limited per row to StaleMaxPerWindow transitions per window; an
// over-budget call is a no-op, not an error.
func (s *Service) MarkStale(ctx context.Context, counterSlug string, councilSlug, yearLabel *string) error {
    marked, err := s.results.MarkStale(ctx, counterSlug, councilSlug, yearLabel, s.staleWin, s.staleMax)
    if err != nil {
        return err
    }
    if marked {
        s.log.Info("counter result marked stale",
            "counter", counterSlug,
            "council", deref(councilSlug),
            "year", deref(yearLabel))
    }
    return nil
}

// unlock releases a distributed lock. A release failure is only a
// warning: the value already computed must still be returned, and the
// lock TTL expires it eventually.
func (s *Service) unlock(lockKey string) {
    ctx, cancel := context.WithTimeout(context.Background(), s.hitTimeout)
    defer cancel()
    if err := s.cache.Del(ctx, lockKey); err != nil {
        s.log.Warn("lock release failed", "lock", lockKey, "err", err)
    }
}

// recordHit bumps the durable hit counter without blocking the request.
func (s *Service) recordHit(req ports.ValueRequest) {
    councilPtr := optional(req.CouncilSlug)
    yearPtr := optional(req.YearLabel)
    go func() {
        ctx, cancel := context.WithTimeout(context.Background(), s.hitTimeout)
        defer cancel()
        if err := s.results.RecordHit(ctx, req.CounterSlug, councilPtr, yearPtr); err != nil {
            s.log.Debug("hit count update failed", "counter", req.CounterSlug, "err", err)
        }
    }()
}

func (s *Service) observe(tier, key string, start time.Time, err error) {
    attrs := []any{"tier", tier, "scope", key, "elapsed", s.clock.Since(start)}
    if err != nil {
        attrs = append(attrs, "err", err)
        s.log.Error("counter lookup failed", attrs...)
        return
    }
    s.log.Info("counter lookup", attrs...)
}

func optional(s string) *string {
    if s == "" {
        return nil
    }
    return &s
}

func deref(s *string) string {
    if s == nil {
        return ""
    }
    return *s
}
