package main

import (
    "context"
    "fmt"
    "log"
    "log/slog"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/go-chi/chi/v5"

    httpadapter "counterboard/internal/adapters/http"
    "counterboard/internal/adapters/memcache"
    pg "counterboard/internal/adapters/postgres"
    rediscache "counterboard/internal/adapters/redis"
    "counterboard/internal/config"
    "counterboard/internal/ports"
    "counterboard/internal/services/aggregate"
    "counterboard/internal/services/counters"
    "counterboard/internal/workers/warmrunner"
)

func main() {
    cfg, err := config.Load()
    if err != nil {
        log.Printf("warning: %v", err)
    }
    if cfg.DatabaseURL == "" {
        log.Fatal("DATABASE_URL is required for Postgres adapters")
    }

    logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()

    db, err := pg.Connect(ctx, cfg.DatabaseURL)
    if err != nil {
        log.Fatalf("db connect error: %v", err)
    }
    defer db.Close()

    // Shared Redis when configured; a process-local cache otherwise,
    // which also downgrades the distributed locks to per-process.
    var cache ports.ValueCache
    if cfg.RedisURL != "" {
        rc, err := rediscache.Connect(ctx, cfg.RedisURL)
        if err != nil {
            log.Fatalf("redis connect error: %v", err)
        }
        defer rc.Close()
        cache = rc
    } else {
        logger.Warn("REDIS_URL not set, using in-process cache")
        cache = memcache.New(nil)
    }

    engine := aggregate.New(db, db, db, logger)
    svc := counters.New(cache, db, db, db, engine, counters.Options{
        Logger:            logger,
        ValueTTL:          cfg.ValueTTL,
        LockTTL:           cfg.LockTTL,
        StaleWindow:       cfg.StaleWindow,
        StaleMaxPerWindow: cfg.StaleMarkLimit,
    })

    srv := httpadapter.New(svc, svc, svc, logger)
    r := chi.NewRouter()
    r.Mount("/", srv.Routes())

    if cfg.WarmInterval > 0 {
        go warmrunner.Run(ctx, svc, cfg.WarmInterval, logger)
        logger.Info("warm worker started", "interval", cfg.WarmInterval)
    }

    errCh := make(chan error, 1)
    go func() { errCh <- http.ListenAndServe(cfg.ListenAddr, r) }()
    logger.Info("listening", "addr", cfg.ListenAddr)

    sigCh := make(chan os.Signal, 1)
    signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
    select {
    case sig := <-sigCh:
        logger.Info("shutting down", "signal", sig.String())
        cancel()
        time.Sleep(300 * time.Millisecond)
    case err := <-errCh:
        log.Fatal(fmt.Errorf("server error: %w", err))
    }
}
