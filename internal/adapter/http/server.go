package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/garage-occupancy-service/internal/domain"
	"github.com/couchcryptid/garage-occupancy-service/internal/observability"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SnapshotUnavailable is the error message for any failed cycle; transport
// and parse failures share it.
const SnapshotUnavailable = "unable to load garage occupancy"

// Ingester runs one ingestion cycle.
type Ingester interface {
	Ingest(ctx context.Context) (domain.Snapshot, error)
}

// ReadinessFunc adapts a function to sharedobs.ReadinessChecker.
type ReadinessFunc func(ctx context.Context) error

// CheckReadiness calls f(ctx).
func (f ReadinessFunc) CheckReadiness(ctx context.Context) error {
	return f(ctx)
}

// AlwaysReady reports ready unconditionally. Used when no poller runs and each
// request fetches on demand.
var AlwaysReady = ReadinessFunc(func(context.Context) error { return nil })

type errorResponse struct {
	Error string `json:"error"`
}

// Server exposes the snapshot endpoint plus health, readiness, and metrics.
type Server struct {
	httpServer   *http.Server
	ingester     Ingester
	cacheControl string
	logger       *slog.Logger
	metrics      *observability.Metrics
}

// NewServer creates an HTTP server with /api/garages, /healthz, /readyz, and /metrics routes.
func NewServer(addr string, ingester Ingester, ready sharedobs.ReadinessChecker, cacheMaxAge time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		ingester:     ingester,
		cacheControl: cacheControl(cacheMaxAge),
		logger:       logger,
		metrics:      metrics,
	}

	mux.HandleFunc("GET /api/garages", s.handleGarages)
	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// handleGarages runs a fresh cycle per request. Causes are logged by the
// ingester and never echoed to the client.
func (s *Server) handleGarages(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.ingester.Ingest(r.Context())
	if err != nil {
		w.Header().Set("Cache-Control", "no-store")
		s.respond(w, http.StatusInternalServerError, errorResponse{Error: SnapshotUnavailable})
		return
	}

	w.Header().Set("Cache-Control", s.cacheControl)
	s.respond(w, http.StatusOK, snapshot)
}

func (s *Server) respond(w http.ResponseWriter, status int, v any) {
	s.metrics.SnapshotRequests.WithLabelValues(strconv.Itoa(status)).Inc()
	sharedobs.WriteJSON(w, status, v)
}

func cacheControl(maxAge time.Duration) string {
	secs := int(maxAge / time.Second)
	if secs <= 0 {
		return "no-store"
	}
	return fmt.Sprintf("public, s-maxage=%d, stale-while-revalidate=%d", secs, secs)
}
