package postgres

import (
    "context"
    "errors"
    "time"

    "github.com/jackc/pgx/v5"

    "counterboard/internal/domain"
    "counterboard/internal/ports"
)

// ResultRepository. Rows are keyed (counter, council-or-null,
// year-or-null); the unique index coalesces the nullable columns so at
// most one row exists per scope.

const resultColumns = `
    id, counter_slug, council_slug, year_label, value, data_hash, is_stale,
    calculated_at, calculation_seconds, cache_hits, last_accessed,
    stale_marked_at, stale_window_start, stale_mark_count`

func (db *DB) Get(ctx context.Context, counterSlug string, councilSlug, yearLabel *string) (domain.CounterResult, bool, error) {
    var r domain.CounterResult
    err := db.Pool.QueryRow(ctx, `
        SELECT `+resultColumns+`
        FROM counter_results
        WHERE counter_slug = $1
          AND COALESCE(council_slug, '') = COALESCE($2, '')
          AND COALESCE(year_label, '') = COALESCE($3, '')
    `, counterSlug, councilSlug, yearLabel).Scan(
        &r.ID, &r.CounterSlug, &r.CouncilSlug, &r.YearLabel, &r.Value, &r.DataHash, &r.IsStale,
        &r.CalculatedAt, &r.CalculationSeconds, &r.CacheHits, &r.LastAccessed,
        &r.StaleMarkedAt, &r.StaleWindowStart, &r.StaleMarkCount)
    if errors.Is(err, pgx.ErrNoRows) {
        return domain.CounterResult{}, false, nil
    }
    if err != nil {
        return domain.CounterResult{}, false, err
    }
    return r, true, nil
}

// Upsert writes a fresh computation. On conflict the value, hash and
// timestamps are overwritten and the stale budget is reset; hit counts
// survive the rewrite.
func (db *DB) Upsert(ctx context.Context, res domain.CounterResult) error {
    _, err := db.Pool.Exec(ctx, `
        INSERT INTO counter_results (
            counter_slug, council_slug, year_label, value, data_hash, is_stale,
            calculated_at, calculation_seconds, cache_hits, last_accessed,
            stale_marked_at, stale_window_start, stale_mark_count
        ) VALUES ($1, $2, $3, $4, $5, false, $6, $7, 0, $8, NULL, $9, 0)
        ON CONFLICT (counter_slug, COALESCE(council_slug, ''), COALESCE(year_label, ''))
        DO UPDATE SET
            value = EXCLUDED.value,
            data_hash = EXCLUDED.data_hash,
            is_stale = false,
            calculated_at = EXCLUDED.calculated_at,
            calculation_seconds = EXCLUDED.calculation_seconds,
            last_accessed = EXCLUDED.last_accessed,
            stale_marked_at = NULL,
            stale_window_start = EXCLUDED.stale_window_start,
            stale_mark_count = 0
    `, res.CounterSlug, res.CouncilSlug, res.YearLabel, res.Value, res.DataHash,
        res.CalculatedAt, res.CalculationSeconds, res.LastAccessed, res.StaleWindowStart)
    return err
}

func (db *DB) RecordHit(ctx context.Context, counterSlug string, councilSlug, yearLabel *string) error {
    _, err := db.Pool.Exec(ctx, `
        UPDATE counter_results
        SET cache_hits = cache_hits + 1, last_accessed = now()
        WHERE counter_slug = $1
          AND COALESCE(council_slug, '') = COALESCE($2, '')
          AND COALESCE(year_label, '') = COALESCE($3, '')
    `, counterSlug, councilSlug, yearLabel)
    return err
}

// MarkStale transitions the row to stale unless maxPerWindow marks have
// already landed inside the trailing window. The window bookkeeping and
// the guard run in a single statement so concurrent markers cannot
// overshoot the budget.
func (db *DB) MarkStale(ctx context.Context, counterSlug string, councilSlug, yearLabel *string, window time.Duration, maxPerWindow int) (bool, error) {
    tag, err := db.Pool.Exec(ctx, `
        UPDATE counter_results
        SET is_stale = true,
            stale_marked_at = now(),
            stale_mark_count = CASE
                WHEN stale_window_start < now() - make_interval(secs => $4) THEN 1
                ELSE stale_mark_count + 1
            END,
            stale_window_start = CASE
                WHEN stale_window_start < now() - make_interval(secs => $4) THEN now()
                ELSE stale_window_start
            END
        WHERE counter_slug = $1
          AND COALESCE(council_slug, '') = COALESCE($2, '')
          AND COALESCE(year_label, '') = COALESCE($3, '')
          AND (stale_window_start < now() - make_interval(secs => $4) OR stale_mark_count < $5)
    `, counterSlug, councilSlug, yearLabel, window.Seconds(), maxPerWindow)
    if err != nil {
        return false, err
    }
    return tag.RowsAffected() > 0, nil
}

func (db *DB) Statistics(ctx context.Context, since time.Time) (ports.StoreStats, error) {
    var stats ports.StoreStats
    err := db.Pool.QueryRow(ctx, `
        SELECT count(*),
               count(*) FILTER (WHERE NOT is_stale),
               count(*) FILTER (WHERE is_stale),
               COALESCE(sum(cache_hits), 0)
        FROM counter_results
        WHERE last_accessed >= $1
    `, since).Scan(&stats.Total, &stats.Fresh, &stats.Stale, &stats.CacheHits)
    if err != nil {
        return stats, err
    }

    fastest, err := db.statSample(ctx, since, "ASC")
    if err != nil {
        return stats, err
    }
    slowest, err := db.statSample(ctx, since, "DESC")
    if err != nil {
        return stats, err
    }
    stats.Fastest, stats.Slowest = fastest, slowest
    return stats, nil
}

func (db *DB) statSample(ctx context.Context, since time.Time, dir string) (*domain.CounterResult, error) {
    var r domain.CounterResult
    err := db.Pool.QueryRow(ctx, `
        SELECT `+resultColumns+`
        FROM counter_results
        WHERE last_accessed >= $1
        ORDER BY calculation_seconds `+dir+`
        LIMIT 1
    `, since).Scan(
        &r.ID, &r.CounterSlug, &r.CouncilSlug, &r.YearLabel, &r.Value, &r.DataHash, &r.IsStale,
        &r.CalculatedAt, &r.CalculationSeconds, &r.CacheHits, &r.LastAccessed,
        &r.StaleMarkedAt, &r.StaleWindowStart, &r.StaleMarkCount)
    if errors.Is(err, pgx.ErrNoRows) {
        return nil, nil
    }
    if err != nil {
        return nil, err
    }
    return &r, nil
}
