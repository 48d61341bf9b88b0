package domain

import "github.com/shopspring/decimal"

// ValueKind tags the outcome of a counter lookup. Valid counter values
// are never negative, but callers should branch on the kind rather than
// the numeric sentinel.
type ValueKind string

const (
    // ValueReady carries a real computed or cached amount.
    ValueReady ValueKind = "ready"
    // ValueDeferred means the value needs an expensive computation that
    // was not permitted or is already running elsewhere.
    ValueDeferred ValueKind = "deferred"
    // ValueUnavailable means computation failed and no fallback existed;
    // the amount is zero.
    ValueUnavailable ValueKind = "unavailable"
)

// ServeTier records which cache tier satisfied a lookup, for observability.
type ServeTier string

const (
    TierVolatile ServeTier = "volatile"
    TierDurable  ServeTier = "durable"
    TierComputed ServeTier = "computed"
    TierStale    ServeTier = "stale-fallback"
    TierNone     ServeTier = "none"
)

// DeferredAmount is the wire-level sentinel kept for callers that only
// see a number: real counter values are never negative.
var DeferredAmount = decimal.NewFromInt(-1)

// CounterValue is the result of every lookup. Lookups never fail with an
// error; degraded outcomes are expressed through Kind.
type CounterValue struct {
    Amount decimal.Decimal
    Kind   ValueKind
    Tier   ServeTier
}

func Ready(amount decimal.Decimal, tier ServeTier) CounterValue {
    return CounterValue{Amount: amount, Kind: ValueReady, Tier: tier}
}

func Deferred() CounterValue {
    return CounterValue{Amount: DeferredAmount, Kind: ValueDeferred, Tier: TierNone}
}

func Unavailable() CounterValue {
    return CounterValue{Amount: decimal.Zero, Kind: ValueUnavailable, Tier: TierNone}
}
