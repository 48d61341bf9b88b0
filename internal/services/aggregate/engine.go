package aggregate

import (
    "context"
    "crypto/sha256"
    "encoding/hex"
    "fmt"
    "log/slog"
    "sort"

    "github.com/shopspring/decimal"

    "counterboard/internal/domain"
    "counterboard/internal/ports"
)

// perCapitaScale is the rounding applied to per-capita division; raw
// sums are exact.
const perCapitaScale = 6

// Scope selects what a formula is evaluated over. Empty CouncilSlug
// means every council (optionally narrowed by Filter); empty YearLabel
// means every year.
type Scope struct {
    CouncilSlug string
    YearLabel   string
    Filter      *domain.CouncilFilter
}

// Sitewide reports whether evaluation spans more than one council.
func (s Scope) Sitewide() bool { return s.CouncilSlug == "" }

// Result carries the computed value and a fingerprint of the figures it
// was derived from, used by the cache for change detection.
type Result struct {
    Value      decimal.Decimal
    InputsHash string
}

// Engine evaluates counter formulas against the figure store. The
// sitewide path is a single bulk fetch per field set; it must never
// degrade into a per-council loop.
type Engine struct {
    figures  ports.FigureStore
    councils ports.CouncilRegistry
    years    ports.YearRegistry
    log      *slog.Logger

    population []populationStrategy
}

func New(figures ports.FigureStore, councils ports.CouncilRegistry, years ports.YearRegistry, log *slog.Logger) *Engine {
    if log == nil {
        log = slog.Default()
    }
    e := &Engine{figures: figures, councils: councils, years: years, log: log}
    // Ordered fallback: council-level attribute first, then the figure
    // field; first strictly positive result wins.
    e.population = []populationStrategy{e.populationFromCouncils, e.populationFromFigures}
    return e
}

// Compute evaluates def's formula for the scope. A counter flagged
// previous-year is evaluated against the chronologically preceding year
// label; at the earliest known year the result is zero.
func (e *Engine) Compute(ctx context.Context, def domain.CounterDefinition, scope Scope) (Result, error) {
    if def.PreviousYear && scope.YearLabel != "" {
        years, err := e.years.Years(ctx)
        if err != nil {
            return Result{}, fmt.Errorf("load years: %w", err)
        }
        prev, ok := domain.PreviousYearLabel(years, scope.YearLabel)
        if !ok {
            return Result{Value: decimal.Zero}, nil
        }
        scope.YearLabel = prev
    }

    switch def.Formula.Kind {
    case domain.FormulaField:
        return e.sumFields(ctx, []string{def.Formula.Field}, scope)
    case domain.FormulaCalc:
        calc, ok := domain.LookupCalculation(def.Formula.Calc)
        if !ok {
            return Result{}, fmt.Errorf("unknown calculation %q", def.Formula.Calc)
        }
        res, err := e.sumFields(ctx, calc.Fields, scope)
        if err != nil {
            return Result{}, err
        }
        if !calc.PerCapita {
            return res, nil
        }
        denom, err := e.populationFor(ctx, calc.PerCapitaOver, scope)
        if err != nil {
            return Result{}, err
        }
        if denom.Sign() <= 0 {
            // Missing or zero population yields zero, not a division error.
            return Result{Value: decimal.Zero, InputsHash: res.InputsHash}, nil
        }
        return Result{
            Value:      res.Value.DivRound(denom, perCapitaScale),
            InputsHash: res.InputsHash,
        }, nil
    default:
        return Result{}, fmt.Errorf("unknown formula kind %q", def.Formula.Kind)
    }
}

// sumFields totals the numeric figures for the field set in scope. One
// store call either way: per-council lookup or the bulk sitewide fetch.
func (e *Engine) sumFields(ctx context.Context, fields []string, scope Scope) (Result, error) {
    var (
        figs []domain.Figure
        err  error
    )
    year := optional(scope.YearLabel)
    if scope.Sitewide() {
        figs, err = e.figures.FiguresByFieldAndScope(ctx, fields, scope.Filter, year)
        e.log.Debug("bulk figure fetch", "fields", fields, "rows", len(figs))
    } else {
        figs, err = e.figures.CouncilFigures(ctx, scope.CouncilSlug, fields, year)
    }
    if err != nil {
        return Result{}, fmt.Errorf("fetch figures: %w", err)
    }
    return Result{Value: sumFigures(figs), InputsHash: fingerprint(figs)}, nil
}

// fingerprint hashes the raw input figures in a stable order so a cached
// value can be recognised as derived from the same data.
func fingerprint(figs []domain.Figure) string {
    lines := make([]string, 0, len(figs))
    for _, f := range figs {
        lines = append(lines, f.CouncilSlug+"|"+f.FieldSlug+"|"+f.YearLabel+"|"+f.Value)
    }
    sort.Strings(lines)
    h := sha256.New()
    for _, l := range lines {
        h.Write([]byte(l))
        h.Write([]byte{'\n'})
    }
    return hex.EncodeToString(h.Sum(nil))
}

func optional(s string) *string {
    if s == "" {
        return nil
    }
    return &s
}
