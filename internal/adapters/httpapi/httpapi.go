// Package httpapi declares the engine's ops HTTP surface: health,
// budget status, recent events, derived stats, and Prometheus metrics.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/swipedine/prefetch/internal/adapters/events"
	"github.com/swipedine/prefetch/internal/domain/model"
	"github.com/swipedine/prefetch/pkg/metrics"
)

// Default limit for GET /events.
const defaultEventLimit = 50

// Dependencies required by the HTTP handlers. An interface bundle keeps
// the handler layer loosely coupled to the engine.
type Dependencies interface {
	BudgetStatus(ctx context.Context) model.BudgetStatus
	RecentEvents(n int) []model.Event
	Stats() events.Stats
	InflightSize() int64
}

// Server wires HTTP routes for the ops surface.
type Server struct {
	deps Dependencies
}

// NewServer creates an ops API server.
func NewServer(deps Dependencies) *Server {
	return &Server{deps: deps}
}

// Register attaches all routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", metricsMiddleware(s.handleHealth, "healthz"))
	mux.HandleFunc("/budget", metricsMiddleware(s.handleBudget, "budget"))
	mux.HandleFunc("/events", metricsMiddleware(s.handleEvents, "events"))
	mux.HandleFunc("/stats", metricsMiddleware(s.handleStats, "stats"))
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
}

// handleHealth handles GET /healthz.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, map[string]any{
		"status":   "ok",
		"inflight": s.deps.InflightSize(),
	})
}

// handleBudget handles GET /budget, returning the live snapshot.
func (s *Server) handleBudget(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, newBudgetView(s.deps.BudgetStatus(r.Context())))
}

// handleEvents handles GET /events?limit=n, newest first.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	limit := defaultEventLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	evs := s.deps.RecentEvents(limit)
	out := make([]eventView, len(evs))
	for i, e := range evs {
		out[i] = newEventView(e)
	}
	writeJSON(w, out)
}

// handleStats handles GET /stats with sink-derived hit/waste counters.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, s.deps.Stats())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(v)
}
