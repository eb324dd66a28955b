package healthhandler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/m-mizutani/ctxlog"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

type MetricsSource interface {
	Snapshot() map[string]any
}

type Handler struct {
	DB      Pinger
	Metrics MetricsSource
}

func NewHandler(db Pinger, metrics MetricsSource) *Handler {
	return &Handler{DB: db, Metrics: metrics}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Get("/readyz", h.handleReady)
	if h.Metrics != nil {
		r.Get("/metrics", h.handleMetrics)
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if h.DB == nil {
		http.Error(w, "db not configured", http.StatusServiceUnavailable)
		return
	}
	if err := h.DB.Ping(ctx); err != nil {
		ctxlog.From(r.Context()).Warn("readiness ping failed", "err", err)
		http.Error(w, "db not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (h *Handler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.Metrics.Snapshot()); err != nil {
		ctxlog.From(r.Context()).Warn("metrics encode failed", "err", err)
	}
}
