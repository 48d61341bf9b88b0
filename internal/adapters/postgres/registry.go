package postgres

import (
    "context"
    "errors"
    "fmt"
    "strings"

    "github.com/jackc/pgx/v5"

    "counterboard/internal/domain"
)

// Read-only registry lookups. Councils, years, counter definitions and
// the site/group counter configuration are owned by the wider platform;
// this service only reads them.

func (db *DB) GetCouncil(ctx context.Context, slug string) (domain.Council, bool, error) {
    var c domain.Council
    err := db.Pool.QueryRow(ctx, `
        SELECT slug, name, council_type, nation, status, COALESCE(population, '')
        FROM councils
        WHERE slug = $1
    `, slug).Scan(&c.Slug, &c.Name, &c.Type, &c.Nation, &c.Status, &c.Population)
    if errors.Is(err, pgx.ErrNoRows) {
        return domain.Council{}, false, nil
    }
    if err != nil {
        return domain.Council{}, false, err
    }
    return c, true, nil
}

// SumPopulation totals the council-level population attribute across
// the filtered councils, excluding non-numeric text server-side. The
// sum comes back as text to keep the free-text contract of figures.
func (db *DB) SumPopulation(ctx context.Context, filter *domain.CouncilFilter) (string, error) {
    conds := []string{"population ~ '" + numericValue + "'"}
    var args []any
    if !filter.Empty() {
        if len(filter.Slugs) > 0 {
            args = append(args, filter.Slugs)
            conds = append(conds, fmt.Sprintf("slug = ANY($%d)", len(args)))
        }
        if filter.ListSlug != "" {
            args = append(args, filter.ListSlug)
            conds = append(conds, fmt.Sprintf(
                "slug IN (SELECT council_slug FROM council_list_members WHERE list_slug = $%d)", len(args)))
        }
        if filter.Type != "" {
            args = append(args, filter.Type)
            conds = append(conds, fmt.Sprintf("council_type = $%d", len(args)))
        }
    }
    var sum string
    err := db.Pool.QueryRow(ctx, `
        SELECT COALESCE(sum(population::numeric), 0)::text
        FROM councils
        WHERE `+strings.Join(conds, " AND "), args...).Scan(&sum)
    return sum, err
}

func (db *DB) Years(ctx context.Context) ([]domain.FinancialYear, error) {
    rows, err := db.Pool.Query(ctx, `
        SELECT label, sort_order FROM financial_years ORDER BY sort_order
    `)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    var out []domain.FinancialYear
    for rows.Next() {
        var y domain.FinancialYear
        if err := rows.Scan(&y.Label, &y.SortOrder); err != nil {
            return nil, err
        }
        out = append(out, y)
    }
    return out, rows.Err()
}

func (db *DB) GetCounter(ctx context.Context, slug string) (domain.CounterDefinition, bool, error) {
    var (
        d    domain.CounterDefinition
        kind string
    )
    err := db.Pool.QueryRow(ctx, `
        SELECT slug, name, formula_kind, COALESCE(formula_field, ''), COALESCE(formula_calc, ''),
               precision, show_currency, previous_year
        FROM counters
        WHERE slug = $1
    `, slug).Scan(&d.Slug, &d.Name, &kind, &d.Formula.Field, &d.Formula.Calc,
        &d.Precision, &d.ShowCurrency, &d.PreviousYear)
    if errors.Is(err, pgx.ErrNoRows) {
        return domain.CounterDefinition{}, false, nil
    }
    if err != nil {
        return domain.CounterDefinition{}, false, err
    }
    d.Formula.Kind = domain.FormulaKind(kind)
    return d, true, nil
}

func (db *DB) PromotedSiteCounters(ctx context.Context) ([]domain.SiteCounter, error) {
    rows, err := db.Pool.Query(ctx, `
        SELECT counter_slug, year_label, promote
        FROM site_counters
        WHERE promote
    `)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    var out []domain.SiteCounter
    for rows.Next() {
        var sc domain.SiteCounter
        if err := rows.Scan(&sc.CounterSlug, &sc.YearLabel, &sc.Promote); err != nil {
            return nil, err
        }
        out = append(out, sc)
    }
    return out, rows.Err()
}

func (db *DB) PromotedGroupCounters(ctx context.Context) ([]domain.GroupCounter, error) {
    rows, err := db.Pool.Query(ctx, `
        SELECT counter_slug, year_label, COALESCE(council_slugs, '{}'), list_slug, council_type, promote
        FROM group_counters
        WHERE promote
    `)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    var out []domain.GroupCounter
    for rows.Next() {
        var gc domain.GroupCounter
        if err := rows.Scan(&gc.CounterSlug, &gc.YearLabel, &gc.CouncilSlugs, &gc.ListSlug, &gc.CouncilType, &gc.Promote); err != nil {
            return nil, err
        }
        out = append(out, gc)
    }
    return out, rows.Err()
}
