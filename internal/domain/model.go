package domain

import (
    "time"

    "github.com/shopspring/decimal"
)

// Core domain models. Councils, years, counter definitions and the
// site/group counter configuration are owned elsewhere and consumed
// read-only; CounterResult is the only entity this service persists.

type CouncilStatus string

const (
    CouncilActive CouncilStatus = "active"
    CouncilMerged CouncilStatus = "merged"
    CouncilClosed CouncilStatus = "closed"
)

type Council struct {
    Slug       string
    Name       string
    Type       string // e.g. municipality, regional-council
    Nation     string
    Status     CouncilStatus
    Population string // free text like figures; empty when unknown
}

// FinancialYear labels carry a strict chronological ordering so that
// "previous year" counters can resolve the preceding label.
type FinancialYear struct {
    Label     string
    SortOrder int
}

type SiteCounter struct {
    CounterSlug string
    YearLabel   *string // nil = all years
    Promote     bool
}

// GroupCounter narrows a counter to a subset of councils. Filters are
// AND-combined when more than one is present; all nil/empty = all councils.
type GroupCounter struct {
    CounterSlug  string
    YearLabel    *string
    CouncilSlugs []string
    ListSlug     *string
    CouncilType  *string
    Promote      bool
}

// CouncilFilter is the aggregation-side view of a GroupCounter's scope.
type CouncilFilter struct {
    Slugs    []string
    ListSlug string
    Type     string
}

func (f *CouncilFilter) Empty() bool {
    return f == nil || (len(f.Slugs) == 0 && f.ListSlug == "" && f.Type == "")
}

// Figure is a raw submitted value. Value is free text; only strictly
// numeric values participate in sums.
type Figure struct {
    CouncilSlug string
    FieldSlug   string
    YearLabel   string
    Value       string
}

// CounterResult is the durable cache row, one per (counter, council, year)
// with nil council meaning sitewide and nil year meaning all years.
type CounterResult struct {
    ID                 int64
    CounterSlug        string
    CouncilSlug        *string
    YearLabel          *string
    Value              decimal.Decimal
    DataHash           string
    IsStale            bool
    CalculatedAt       time.Time
    CalculationSeconds float64
    CacheHits          int64
    LastAccessed       time.Time
    StaleMarkedAt      *time.Time
    StaleWindowStart   time.Time
    StaleMarkCount     int
}
