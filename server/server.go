// Package server exposes the ops HTTP surface: liveness, bridge status, and
// Prometheus metrics. Requests get a correlation id for consistent logging.
package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sidekek/minecraft-discord-bridge/db"
	"github.com/sidekek/minecraft-discord-bridge/telemetry"
)

// Handlers carries the dependencies of the HTTP endpoints.
type Handlers struct {
	db           *sql.DB
	sessionState func() string
	started      time.Time
}

// NewHandlers wires the endpoint dependencies. sessionState reports the
// lifecycle manager's current state for /status.
func NewHandlers(dbx *sql.DB, sessionState func() string) *Handlers {
	return &Handlers{db: dbx, sessionState: sessionState, started: time.Now()}
}

// HandleHealthz responds to liveness probes by checking database connectivity.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		http.Error(w, "unhealthy", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleStatus reports the bridge state: session lifecycle state, number of
// subscribed channels, and uptime.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	subs, err := db.CountSubscriptions(r.Context(), h.db)
	if err != nil {
		telemetry.LoggerWithCorr(r.Context()).Warn("count subscriptions failed", slog.Any("err", err))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"session":        h.sessionState(),
		"subscriptions":  subs,
		"uptime_seconds": int(time.Since(h.started).Seconds()),
	})
}

// NewMux returns the HTTP handler with all routes.
func NewMux(dbx *sql.DB, sessionState func() string) http.Handler {
	h := NewHandlers(dbx, sessionState)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", h.HandleHealthz)
	mux.HandleFunc("/status", h.HandleStatus)
	return correlationMiddleware(mux)
}

// correlationMiddleware tags each request context with a correlation id.
func correlationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		corr := r.Header.Get("X-Correlation-Id")
		if corr == "" {
			corr = uuid.NewString()
		}
		w.Header().Set("X-Correlation-Id", corr)
		next.ServeHTTP(w, r.WithContext(telemetry.WithCorrelation(r.Context(), corr)))
	})
}

// Start runs the ops server until ctx is canceled, then shuts it down
// gracefully.
func Start(ctx context.Context, dbx *sql.DB, addr string, sessionState func() string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewMux(dbx, sessionState),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	slog.Info("ops server listening", slog.String("addr", addr))
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
