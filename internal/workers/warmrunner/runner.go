package warmrunner

import (
    "context"
    "errors"
    "log/slog"
    "time"

    "counterboard/internal/ports"
    "counterboard/internal/services/counters"
)

// Run warms promote-flagged counters on a fixed interval until the
// context is cancelled. A pass already running elsewhere (the warm lock
// is cross-process) is skipped quietly.
func Run(ctx context.Context, warmer ports.Warmer, interval time.Duration, log *slog.Logger) {
    if interval <= 0 {
        return
    }
    if log == nil {
        log = slog.Default()
    }
    ticker := time.NewTicker(interval)
    defer ticker.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case <-ticker.C:
            report, err := warmer.WarmCritical(ctx)
            if errors.Is(err, counters.ErrWarmRunning) {
                continue
            }
            if err != nil {
                log.Error("scheduled warming failed", "err", err)
                continue
            }
            if report.Computed > 0 || report.Failed > 0 {
                log.Info("scheduled warming pass",
                    "considered", report.Considered,
                    "computed", report.Computed,
                    "failed", report.Failed)
            }
        }
    }
}
