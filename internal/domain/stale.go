package domain

import "time"

// ApplyStaleMark applies one stale mark to the row, honouring the
// per-window budget: once maxPerWindow marks have landed inside the
// trailing window the call is a no-op. Reports whether the row was
// marked. The postgres adapter implements the same rule in a single
// UPDATE; this is the canonical statement of it.
func (r *CounterResult) ApplyStaleMark(now time.Time, window time.Duration, maxPerWindow int) bool {
    if now.Sub(r.StaleWindowStart) > window {
        r.StaleWindowStart = now
        r.StaleMarkCount = 0
    }
    if r.StaleMarkCount >= maxPerWindow {
        return false
    }
    r.IsStale = true
    t := now
    r.StaleMarkedAt = &t
    r.StaleMarkCount++
    return true
}
