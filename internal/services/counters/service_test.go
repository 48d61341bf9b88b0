package counters

import (
    "context"
    "errors"
    "fmt"
    "sync"
    "testing"
    "time"

    "github.com/jonboulle/clockwork"
    "github.com/shopspring/decimal"

    "counterboard/internal/adapters/memcache"
    "counterboard/internal/domain"
    "counterboard/internal/ports"
    "counterboard/internal/services/aggregate"
)

type fakeResults struct {
    mu    sync.Mutex
    rows  map[string]*domain.CounterResult
    clock clockwork.Clock
}

func newFakeResults(clock clockwork.Clock) *fakeResults {
    return &fakeResults{rows: map[string]*domain.CounterResult{}, clock: clock}
}

func rowKey(counter string, council, year *string) string {
    c, y := "", ""
    if council != nil {
        c = *council
    }
    if year != nil {
        y = *year
    }
    return fmt.Sprintf("%s|%s|%s", counter, c, y)
}

func (f *fakeResults) Get(_ context.Context, counter string, council, year *string) (domain.CounterResult, bool, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    r, ok := f.rows[rowKey(counter, council, year)]
    if !ok {
        return domain.CounterResult{}, false, nil
    }
    return *r, true, nil
}

func (f *fakeResults) Upsert(_ context.Context, res domain.CounterResult) error {
    f.mu.Lock()
    defer f.mu.Unlock()
    key := rowKey(res.CounterSlug, res.CouncilSlug, res.YearLabel)
    if existing, ok := f.rows[key]; ok {
        res.CacheHits = existing.CacheHits
    }
    res.IsStale = false
    res.StaleMarkedAt = nil
    res.StaleMarkCount = 0
    f.rows[key] = &res
    return nil
}

func (f *fakeResults) RecordHit(_ context.Context, counter string, council, year *string) error {
    f.mu.Lock()
    defer f.mu.Unlock()
    if r, ok := f.rows[rowKey(counter, council, year)]; ok {
        r.CacheHits++
        r.LastAccessed = f.clock.Now()
    }
    return nil
}

func (f *fakeResults) MarkStale(_ context.Context, counter string, council, year *string, window time.Duration, maxPerWindow int) (bool, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    r, ok := f.rows[rowKey(counter, council, year)]
    if !ok {
        return false, nil
    }
    return r.ApplyStaleMark(f.clock.Now(), window, maxPerWindow), nil
}

func (f *fakeResults) Statistics(_ context.Context, since time.Time) (ports.StoreStats, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    var stats ports.StoreStats
    for _, r := range f.rows {
        if r.LastAccessed.Before(since) {
            continue
        }
        stats.Total++
        if r.IsStale {
            stats.Stale++
        } else {
            stats.Fresh++
        }
        stats.CacheHits += r.CacheHits
        if stats.Fastest == nil || r.CalculationSeconds < stats.Fastest.CalculationSeconds {
            c := *r
            stats.Fastest = &c
        }
        if stats.Slowest == nil || r.CalculationSeconds > stats.Slowest.CalculationSeconds {
            c := *r
            stats.Slowest = &c
        }
    }
    return stats, nil
}

type fakeRegistry struct {
    counters map[string]domain.CounterDefinition
    site     []domain.SiteCounter
    groups   []domain.GroupCounter
}

func (f *fakeRegistry) GetCounter(_ context.Context, slug string) (domain.CounterDefinition, bool, error) {
    d, ok := f.counters[slug]
    return d, ok, nil
}

func (f *fakeRegistry) PromotedSiteCounters(context.Context) ([]domain.SiteCounter, error) {
    return f.site, nil
}

func (f *fakeRegistry) PromotedGroupCounters(context.Context) ([]domain.GroupCounter, error) {
    return f.groups, nil
}

type fakeCouncilRegistry struct {
    councils map[string]domain.Council
}

func (f *fakeCouncilRegistry) GetCouncil(_ context.Context, slug string) (domain.Council, bool, error) {
    c, ok := f.councils[slug]
    return c, ok, nil
}

func (f *fakeCouncilRegistry) SumPopulation(context.Context, *domain.CouncilFilter) (string, error) {
    return "0", nil
}

// spyEngine counts computations and serves canned values per scope key.
type spyEngine struct {
    mu      sync.Mutex
    calls   int
    values  map[string]decimal.Decimal
    err     error
    started chan struct{} // closed on first call when set
    release chan struct{} // blocks computation until closed when set
}

func (s *spyEngine) Compute(_ context.Context, def domain.CounterDefinition, scope aggregate.Scope) (aggregate.Result, error) {
    s.mu.Lock()
    s.calls++
    started := s.started
    s.started = nil
    release := s.release
    s.mu.Unlock()
    if started != nil {
        close(started)
    }
    if release != nil {
        <-release
    }
    if s.err != nil {
        return aggregate.Result{}, s.err
    }
    v, ok := s.values[scopeKey(def.Slug, scope.CouncilSlug, scope.YearLabel)]
    if !ok {
        v = decimal.Zero
    }
    return aggregate.Result{Value: v, InputsHash: "test-hash"}, nil
}

func (s *spyEngine) count() int {
    s.mu.Lock()
    defer s.mu.Unlock()
    return s.calls
}

type fixture struct {
    svc     *Service
    cache   *memcache.Cache
    results *fakeResults
    engine  *spyEngine
    clock   *clockwork.FakeClock
}

func newFixture(t *testing.T, reg *fakeRegistry, engine *spyEngine) *fixture {
    t.Helper()
    clock := clockwork.NewFakeClock()
    cache := memcache.New(clock)
    results := newFakeResults(clock)
    if reg == nil {
        reg = &fakeRegistry{counters: map[string]domain.CounterDefinition{
            "total-debt": {Slug: "total-debt", Formula: domain.Formula{Kind: domain.FormulaCalc, Calc: domain.CalcTotalDebt}},
        }}
    }
    councils := &fakeCouncilRegistry{councils: map[string]domain.Council{
        "a": {Slug: "a"}, "b": {Slug: "b"},
    }}
    svc := New(cache, results, reg, councils, engine, Options{Clock: clock})
    return &fixture{svc: svc, cache: cache, results: results, engine: engine, clock: clock}
}

func TestValueIdempotentAndCached(t *testing.T) {
    engine := &spyEngine{values: map[string]decimal.Decimal{
        scopeKey("total-debt", "a", "2024"): decimal.NewFromInt(120),
    }}
    fx := newFixture(t, nil, engine)
    ctx := context.Background()
    req := ports.ValueRequest{CounterSlug: "total-debt", CouncilSlug: "a", YearLabel: "2024"}

    first := fx.svc.Value(ctx, req)
    if first.Kind != domain.ValueReady || !first.Amount.Equal(decimal.NewFromInt(120)) {
        t.Fatalf("first call: got %s/%s", first.Kind, first.Amount)
    }
    if first.Tier != domain.TierComputed {
        t.Fatalf("first call should compute, served from %s", first.Tier)
    }

    second := fx.svc.Value(ctx, req)
    if !second.Amount.Equal(first.Amount) {
        t.Fatalf("second call changed value: %s vs %s", second.Amount, first.Amount)
    }
    if second.Tier != domain.TierVolatile && second.Tier != domain.TierDurable {
        t.Fatalf("second call hit tier %s", second.Tier)
    }
    if engine.count() != 1 {
        t.Fatalf("engine computed %d times, want 1", engine.count())
    }
}

func TestDurableTierPromotesToVolatile(t *testing.T) {
    engine := &spyEngine{}
    fx := newFixture(t, nil, engine)
    ctx := context.Background()

    council := "a"
    year := "2024"
    fx.results.Upsert(ctx, domain.CounterResult{
        CounterSlug: "total-debt",
        CouncilSlug: &council,
        YearLabel:   &year,
        Value:       decimal.NewFromInt(77),
        CalculatedAt: fx.clock.Now(),
        LastAccessed: fx.clock.Now(),
        StaleWindowStart: fx.clock.Now(),
    })

    req := ports.ValueRequest{CounterSlug: "total-debt", CouncilSlug: "a", YearLabel: "2024"}
    first := fx.svc.Value(ctx, req)
    if first.Tier != domain.TierDurable {
        t.Fatalf("expected durable tier, got %s", first.Tier)
    }
    second := fx.svc.Value(ctx, req)
    if second.Tier != domain.TierVolatile {
        t.Fatalf("expected volatile tier after promotion, got %s", second.Tier)
    }
    if engine.count() != 0 {
        t.Fatalf("no computation expected, got %d", engine.count())
    }
}

func TestSitewideDeferredWithoutAllowExpensive(t *testing.T) {
    engine := &spyEngine{}
    fx := newFixture(t, nil, engine)

    v := fx.svc.Value(context.Background(), ports.ValueRequest{CounterSlug: "total-debt", YearLabel: "2024"})
    if v.Kind != domain.ValueDeferred {
        t.Fatalf("expected deferred, got %s", v.Kind)
    }
    if !v.Amount.Equal(domain.DeferredAmount) {
        t.Fatalf("deferred amount must be the sentinel, got %s", v.Amount)
    }
    if engine.count() != 0 {
        t.Fatal("deferred lookup must not compute")
    }
}

func TestSitewideComputedThenServedCheaply(t *testing.T) {
    engine := &spyEngine{values: map[string]decimal.Decimal{
        scopeKey("total-debt", "", "2024"): decimal.NewFromInt(150),
    }}
    fx := newFixture(t, nil, engine)
    ctx := context.Background()

    v := fx.svc.Value(ctx, ports.ValueRequest{CounterSlug: "total-debt", YearLabel: "2024", AllowExpensive: true})
    if v.Kind != domain.ValueReady || !v.Amount.Equal(decimal.NewFromInt(150)) {
        t.Fatalf("got %s/%s, want ready/150", v.Kind, v.Amount)
    }

    // Cached now: a cheap request must serve 150, not the sentinel.
    v = fx.svc.Value(ctx, ports.ValueRequest{CounterSlug: "total-debt", YearLabel: "2024"})
    if v.Kind != domain.ValueReady || !v.Amount.Equal(decimal.NewFromInt(150)) {
        t.Fatalf("repeat got %s/%s, want ready/150", v.Kind, v.Amount)
    }
    if engine.count() != 1 {
        t.Fatalf("engine computed %d times, want 1", engine.count())
    }
}

func TestSitewideLockContention(t *testing.T) {
    engine := &spyEngine{
        values:  map[string]decimal.Decimal{scopeKey("total-debt", "", "2024"): decimal.NewFromInt(150)},
        started: make(chan struct{}),
        release: make(chan struct{}),
    }
    fx := newFixture(t, nil, engine)
    ctx := context.Background()
    req := ports.ValueRequest{CounterSlug: "total-debt", YearLabel: "2024", AllowExpensive: true}

    done := make(chan domain.CounterValue, 1)
    go func() { done <- fx.svc.Value(ctx, req) }()
    <-engine.started

    // Second caller must not wait for the minutes-long computation.
    contended := fx.svc.Value(ctx, req)
    if contended.Kind != domain.ValueDeferred {
        t.Fatalf("contended call got %s, want deferred", contended.Kind)
    }

    close(engine.release)
    winner := <-done
    if winner.Kind != domain.ValueReady || !winner.Amount.Equal(decimal.NewFromInt(150)) {
        t.Fatalf("winner got %s/%s", winner.Kind, winner.Amount)
    }
    if engine.count() != 1 {
        t.Fatalf("exactly one computation expected, got %d", engine.count())
    }

    // Lock released: a fresh miss may compute again.
    if _, held, _ := fx.cache.Get(ctx, sitewideLockKey(scopeKey("total-debt", "", "2024"))); held {
        t.Fatal("lock still held after computation")
    }
}

func TestStaleFallbackOnComputeFailure(t *testing.T) {
    engine := &spyEngine{err: errors.New("figure store down")}
    fx := newFixture(t, nil, engine)
    ctx := context.Background()

    council := "a"
    year := "2024"
    fx.results.Upsert(ctx, domain.CounterResult{
        CounterSlug:      "total-debt",
        CouncilSlug:      &council,
        YearLabel:        &year,
        Value:            decimal.NewFromInt(99),
        CalculatedAt:     fx.clock.Now(),
        LastAccessed:     fx.clock.Now(),
        StaleWindowStart: fx.clock.Now(),
    })
    if err := fx.svc.MarkStale(ctx, "total-debt", &council, &year); err != nil {
        t.Fatal(err)
    }

    req := ports.ValueRequest{CounterSlug: "total-debt", CouncilSlug: "a", YearLabel: "2024", AllowStaleFallback: true}
    v := fx.svc.Value(ctx, req)
    if v.Tier != domain.TierStale || !v.Amount.Equal(decimal.NewFromInt(99)) {
        t.Fatalf("got tier=%s amount=%s, want stale fallback 99", v.Tier, v.Amount)
    }

    req.AllowStaleFallback = false
    v = fx.svc.Value(ctx, req)
    if v.Kind != domain.ValueUnavailable || !v.Amount.IsZero() {
        t.Fatalf("got %s/%s, want unavailable/0", v.Kind, v.Amount)
    }
}

func TestUnknownCounterDegradesToZero(t *testing.T) {
    engine := &spyEngine{}
    fx := newFixture(t, nil, engine)

    v := fx.svc.Value(context.Background(), ports.ValueRequest{CounterSlug: "no-such-counter", CouncilSlug: "a", YearLabel: "2024"})
    if v.Kind != domain.ValueReady || !v.Amount.IsZero() {
        t.Fatalf("got %s/%s, want ready/0", v.Kind, v.Amount)
    }
    if engine.count() != 0 {
        t.Fatal("unknown counter must not compute")
    }
}

func TestMarkStaleRateLimited(t *testing.T) {
    engine := &spyEngine{}
    fx := newFixture(t, nil, engine)
    ctx := context.Background()

    council := "a"
    year := "2024"
    fx.results.Upsert(ctx, domain.CounterResult{
        CounterSlug:      "total-debt",
        CouncilSlug:      &council,
        YearLabel:        &year,
        Value:            decimal.NewFromInt(1),
        CalculatedAt:     fx.clock.Now(),
        LastAccessed:     fx.clock.Now(),
        StaleWindowStart: fx.clock.Now(),
    })

    transitions := 0
    for i := 0; i < 6; i++ {
        marked, err := fx.results.MarkStale(ctx, "total-debt", &council, &year, time.Hour, 5)
        if err != nil {
            t.Fatal(err)
        }
        if marked {
            transitions++
        }
        fx.clock.Advance(time.Minute)
    }
    if transitions != 5 {
        t.Fatalf("got %d transitions, want 5", transitions)
    }

    // Budget resets once the trailing window has passed.
    fx.clock.Advance(2 * time.Hour)
    marked, err := fx.results.MarkStale(ctx, "total-debt", &council, &year, time.Hour, 5)
    if err != nil {
        t.Fatal(err)
    }
    if !marked {
        t.Fatal("mark after window must succeed")
    }
}

func TestStatistics(t *testing.T) {
    engine := &spyEngine{values: map[string]decimal.Decimal{
        scopeKey("total-debt", "a", "2024"): decimal.NewFromInt(120),
    }}
    fx := newFixture(t, nil, engine)
    ctx := context.Background()

    fx.svc.Value(ctx, ports.ValueRequest{CounterSlug: "total-debt", CouncilSlug: "a", YearLabel: "2024"})

    stats, err := fx.svc.Statistics(ctx, 24*time.Hour)
    if err != nil {
        t.Fatal(err)
    }
    if stats.Total != 1 || stats.Fresh != 1 || stats.Stale != 0 {
        t.Fatalf("unexpected stats: %+v", stats)
    }
    if stats.Slowest == nil || stats.Slowest.CounterSlug != "total-debt" {
        t.Fatalf("expected a slowest sample, got %+v", stats.Slowest)
    }
}
