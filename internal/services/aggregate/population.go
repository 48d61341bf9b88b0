package aggregate

import (
    "context"

    "github.com/shopspring/decimal"
)

// populationStrategy is one way of finding a per-capita denominator for
// a scope. Strategies are tried in order; the first strictly positive
// value wins.
type populationStrategy func(ctx context.Context, field string, scope Scope) (decimal.Decimal, error)

func (e *Engine) populationFor(ctx context.Context, field string, scope Scope) (decimal.Decimal, error) {
    for _, strategy := range e.population {
        v, err := strategy(ctx, field, scope)
        if err != nil {
            return decimal.Zero, err
        }
        if v.Sign() > 0 {
            return v, nil
        }
    }
    return decimal.Zero, nil
}

// populationFromCouncils reads the council-level population attribute:
// the single council's value, or the filtered sum for sitewide scope.
func (e *Engine) populationFromCouncils(ctx context.Context, _ string, scope Scope) (decimal.Decimal, error) {
    if scope.Sitewide() {
        raw, err := e.councils.SumPopulation(ctx, scope.Filter)
        if err != nil {
            return decimal.Zero, err
        }
        v, _ := parseFigure(raw)
        return v, nil
    }
    c, ok, err := e.councils.GetCouncil(ctx, scope.CouncilSlug)
    if err != nil || !ok {
        return decimal.Zero, err
    }
    v, _ := parseFigure(c.Population)
    return v, nil
}

// populationFromFigures falls back to submitted population figures,
// aggregated the same way as any other field.
func (e *Engine) populationFromFigures(ctx context.Context, field string, scope Scope) (decimal.Decimal, error) {
    res, err := e.sumFields(ctx, []string{field}, scope)
    if err != nil {
        return decimal.Zero, err
    }
    return res.Value, nil
}
