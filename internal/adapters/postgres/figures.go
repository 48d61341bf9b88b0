package postgres

import (
    "context"
    "fmt"
    "strings"

    "counterboard/internal/domain"
)

// FigureStore

// FiguresByFieldAndScope fetches every figure matching the field set,
// optional council filter and optional year in one query. This is the
// only sitewide code path: per-council iteration over thousands of
// councils turns a seconds-long pass into minutes.
func (db *DB) FiguresByFieldAndScope(ctx context.Context, fieldSlugs []string, filter *domain.CouncilFilter, yearLabel *string) ([]domain.Figure, error) {
    var (
        conds = []string{"f.field_slug = ANY($1)"}
        args  = []any{fieldSlugs}
    )
    if yearLabel != nil {
        args = append(args, *yearLabel)
        conds = append(conds, fmt.Sprintf("f.year_label = $%d", len(args)))
    }
    if !filter.Empty() {
        if len(filter.Slugs) > 0 {
            args = append(args, filter.Slugs)
            conds = append(conds, fmt.Sprintf("f.council_slug = ANY($%d)", len(args)))
        }
        if filter.ListSlug != "" {
            args = append(args, filter.ListSlug)
            conds = append(conds, fmt.Sprintf(
                "f.council_slug IN (SELECT council_slug FROM council_list_members WHERE list_slug = $%d)", len(args)))
        }
        if filter.Type != "" {
            args = append(args, filter.Type)
            conds = append(conds, fmt.Sprintf(
                "f.council_slug IN (SELECT slug FROM councils WHERE council_type = $%d)", len(args)))
        }
    }

    rows, err := db.Pool.Query(ctx, `
        SELECT f.council_slug, f.field_slug, f.year_label, f.value
        FROM figures f
        WHERE `+strings.Join(conds, " AND "), args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    var out []domain.Figure
    for rows.Next() {
        var fig domain.Figure
        if err := rows.Scan(&fig.CouncilSlug, &fig.FieldSlug, &fig.YearLabel, &fig.Value); err != nil {
            return nil, err
        }
        out = append(out, fig)
    }
    return out, rows.Err()
}

func (db *DB) CouncilFigures(ctx context.Context, councilSlug string, fieldSlugs []string, yearLabel *string) ([]domain.Figure, error) {
    args := []any{councilSlug, fieldSlugs}
    q := `
        SELECT council_slug, field_slug, year_label, value
        FROM figures
        WHERE council_slug = $1 AND field_slug = ANY($2)`
    if yearLabel != nil {
        args = append(args, *yearLabel)
        q += " AND year_label = $3"
    }
    rows, err := db.Pool.Query(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    var out []domain.Figure
    for rows.Next() {
        var fig domain.Figure
        if err := rows.Scan(&fig.CouncilSlug, &fig.FieldSlug, &fig.YearLabel, &fig.Value); err != nil {
            return nil, err
        }
        out = append(out, fig)
    }
    return out, rows.Err()
}
