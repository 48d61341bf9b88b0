package config

import (
    "fmt"
    "os"
    "time"
)

type Config struct {
    Env         string
    ListenAddr  string
    DatabaseURL string
    RedisURL    string

    ValueTTL       time.Duration
    LockTTL        time.Duration
    StaleWindow    time.Duration
    StaleMarkLimit int

    // WarmInterval > 0 starts the periodic warming worker.
    WarmInterval time.Duration
}

func getenv(key, def string) string {
    if v := os.Getenv(key); v != "" {
        return v
    }
    return def
}

func getenvInt(key string, def int) int {
    if v := os.Getenv(key); v != "" {
        var out int
        _, err := fmt.Sscanf(v, "%d", &out)
        if err == nil {
            return out
        }
    }
    return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
    if v := os.Getenv(key); v != "" {
        if d, err := time.ParseDuration(v); err == nil {
            return d
        }
    }
    return def
}

func Load() (Config, error) {
    cfg := Config{
        Env:            getenv("APP_ENV", "development"),
        ListenAddr:     getenv("LISTEN_ADDR", ":8080"),
        DatabaseURL:    os.Getenv("DATABASE_URL"),
        RedisURL:       os.Getenv("REDIS_URL"),
        ValueTTL:       getenvDuration("VALUE_TTL", 15*time.Minute),
        LockTTL:        getenvDuration("LOCK_TTL", 20*time.Minute),
        StaleWindow:    getenvDuration("STALE_WINDOW", time.Hour),
        StaleMarkLimit: getenvInt("STALE_MARK_LIMIT", 5),
        WarmInterval:   getenvDuration("WARM_INTERVAL", 0),
    }
    if cfg.DatabaseURL == "" {
        // Not fatal for early local runs; warn via error value so callers can decide.
        return cfg, fmt.Errorf("DATABASE_URL not set")
    }
    return cfg, nil
}
