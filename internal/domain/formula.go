package domain

type FormulaKind string

const (
    // FormulaField sums a single raw field.
    FormulaField FormulaKind = "field"
    // FormulaCalc is one of the closed set of named calculations below.
    FormulaCalc FormulaKind = "calc"
)

// Formula describes how a counter derives its value. No expression
// parsing: either a direct field reference or a named calculation.
type Formula struct {
    Kind  FormulaKind
    Field string // set when Kind == FormulaField
    Calc  string // set when Kind == FormulaCalc
}

// CounterDefinition binds a slug to a formula plus display settings.
// Immutable for the duration of any single lookup.
type CounterDefinition struct {
    Slug         string
    Name         string
    Formula      Formula
    Precision    int
    ShowCurrency bool
    PreviousYear bool // compute against the chronologically preceding year
}

// Calculation is a resolved named calculation: a fixed set of fields to
// sum, optionally divided by a per-capita denominator field.
type Calculation struct {
    Name          string
    Fields        []string
    PerCapita     bool
    PerCapitaOver string // population-like field slug
}

const (
    CalcTotalDebt     = "total-debt"
    CalcDebtPerCapita = "debt-per-capita"
)

// debt is the sum of the three liability fields.
var debtFields = []string{"current-liabilities", "long-term-liabilities", "finance-leases-and-equivalent"}

var calculations = map[string]Calculation{
    CalcTotalDebt: {
        Name:   CalcTotalDebt,
        Fields: debtFields,
    },
    CalcDebtPerCapita: {
        Name:          CalcDebtPerCapita,
        Fields:        debtFields,
        PerCapita:     true,
        PerCapitaOver: "population",
    },
}

// LookupCalculation resolves a named calculation. Unknown names report
// false so callers can degrade to a zero result.
func LookupCalculation(name string) (Calculation, bool) {
    c, ok := calculations[name]
    return c, ok
}

// FormulaFields returns every field slug the formula reads, used for
// broad staleness invalidation (over-invalidation is safe).
func (f Formula) FormulaFields() []string {
    switch f.Kind {
    case FormulaField:
        return []string{f.Field}
    case FormulaCalc:
        if c, ok := LookupCalculation(f.Calc); ok {
            fields := append([]string(nil), c.Fields...)
            if c.PerCapita {
                fields = append(fields, c.PerCapitaOver)
            }
            return fields
        }
    }
    return nil
}

// PreviousYearLabel finds the label chronologically before the given one.
// Years must be the full known set; returns false at the earliest year.
func PreviousYearLabel(years []FinancialYear, label string) (string, bool) {
    cur := -1
    for _, y := range years {
        if y.Label == label {
            cur = y.SortOrder
            break
        }
    }
    if cur < 0 {
        return "", false
    }
    best := ""
    bestOrder := -1
    for _, y := range years {
        if y.SortOrder < cur && y.SortOrder > bestOrder {
            best, bestOrder = y.Label, y.SortOrder
        }
    }
    return best, bestOrder >= 0
}
