package httpadapter

import (
    "encoding/json"
    "errors"
    "log/slog"
    "net/http"
    "strconv"
    "time"

    "github.com/go-chi/chi/v5"

    "counterboard/internal/ports"
    "counterboard/internal/services/counters"
)

// Server is the thin JSON surface over the coordinator: value lookup,
// stale marking, warming trigger and statistics. The real presentation
// layer lives elsewhere and consumes this over the wire.
type Server struct {
    values ports.CounterReader
    stale  ports.StaleMarker
    warmer ports.Warmer
    log    *slog.Logger
}

func New(values ports.CounterReader, stale ports.StaleMarker, warmer ports.Warmer, log *slog.Logger) *Server {
    if log == nil {
        log = slog.Default()
    }
    return &Server{values: values, stale: stale, warmer: warmer, log: log}
}

func (s *Server) Routes() chi.Router {
    r := chi.NewRouter()
    r.Get("/healthz", s.healthz)
    r.Get("/counters/{counter}/value", s.counterValue)
    r.Post("/counters/{counter}/stale", s.markStale)
    r.Post("/warm", s.warm)
    r.Get("/stats", s.stats)
    return r
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
    writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type valueResponse struct {
    Counter string `json:"counter"`
    Council string `json:"council,omitempty"`
    Year    string `json:"year,omitempty"`
    Value   string `json:"value"`
    Kind    string `json:"kind"`
    Tier    string `json:"tier,omitempty"`
}

func (s *Server) counterValue(w http.ResponseWriter, r *http.Request) {
    q := r.URL.Query()
    req := ports.ValueRequest{
        CounterSlug:        chi.URLParam(r, "counter"),
        CouncilSlug:        q.Get("council"),
        YearLabel:          q.Get("year"),
        AllowExpensive:     q.Get("expensive") == "true",
        AllowStaleFallback: q.Get("stale_fallback") != "false",
    }
    v := s.values.Value(r.Context(), req)
    writeJSON(w, http.StatusOK, valueResponse{
        Counter: req.CounterSlug,
        Council: req.CouncilSlug,
        Year:    req.YearLabel,
        Value:   v.Amount.String(),
        Kind:    string(v.Kind),
        Tier:    string(v.Tier),
    })
}

func (s *Server) markStale(w http.ResponseWriter, r *http.Request) {
    q := r.URL.Query()
    err := s.stale.MarkStale(r.Context(),
        chi.URLParam(r, "counter"),
        optional(q.Get("council")),
        optional(q.Get("year")))
    if err != nil {
        s.log.Error("mark stale failed", "err", err)
        writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "mark stale failed"})
        return
    }
    w.WriteHeader(http.StatusNoContent)
}

func (s *Server) warm(w http.ResponseWriter, r *http.Request) {
    report, err := s.warmer.WarmCritical(r.Context())
    if errors.Is(err, counters.ErrWarmRunning) {
        writeJSON(w, http.StatusConflict, map[string]string{"status": "already running"})
        return
    }
    if err != nil {
        s.log.Error("warming failed", "err", err)
        writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "warming failed"})
        return
    }
    writeJSON(w, http.StatusOK, map[string]any{
        "considered": report.Considered,
        "computed":   report.Computed,
        "failed":     report.Failed,
        "elapsed":    report.Elapsed.String(),
    })
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
    hours := 24
    if h, err := strconv.Atoi(r.URL.Query().Get("hours")); err == nil && h > 0 {
        hours = h
    }
    stats, err := s.values.Statistics(r.Context(), time.Duration(hours)*time.Hour)
    if err != nil {
        s.log.Error("statistics failed", "err", err)
        writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "statistics failed"})
        return
    }
    writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(code)
    _ = json.NewEncoder(w).Encode(v)
}

func optional(s string) *string {
    if s == "" {
        return nil
    }
    return &s
}
