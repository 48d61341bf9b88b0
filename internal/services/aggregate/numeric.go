package aggregate

import (
    "regexp"

    "github.com/shopspring/decimal"

    "counterboard/internal/domain"
)

// Figures are free text; legacy submissions include notes like "n/a" or
// "see appendix". Only values matching this pattern are summable, the
// rest are excluded silently.
var numericPattern = regexp.MustCompile(`^[+-]?[0-9]+(\.[0-9]+)?$`)

// parseFigure returns the decimal value of a raw figure string and
// whether it conformed to the strict numeric pattern.
func parseFigure(raw string) (decimal.Decimal, bool) {
    if !numericPattern.MatchString(raw) {
        return decimal.Zero, false
    }
    d, err := decimal.NewFromString(raw)
    if err != nil {
        return decimal.Zero, false
    }
    return d, true
}

// sumFigures totals the numeric figures; non-conforming values count as zero.
func sumFigures(figs []domain.Figure) decimal.Decimal {
    total := decimal.Zero
    for _, f := range figs {
        if v, ok := parseFigure(f.Value); ok {
            total = total.Add(v)
        }
    }
    return total
}
