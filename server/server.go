// Package server implements the taskweave HTTP control surface: scheduler
// status, manual trigger, health, and metrics.
package server

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/taskweave/taskweave/config"
	"github.com/taskweave/taskweave/schedule"
)

// Scheduler is the control-surface view of the cycle runner.
type Scheduler interface {
	RunCycle(ctx context.Context) (schedule.CycleStats, error)
	Status() schedule.Status
	Healthy() bool
}

// Server is the taskweave control server.
type Server struct {
	cfg     config.ServerConfig
	mux     *http.ServeMux
	httpSrv *http.Server
	logger  *slog.Logger

	sched   Scheduler
	metrics http.Handler

	routesOnce sync.Once

	startTime time.Time
	version   string
}

// New creates a new Server with the given config and logger.
func New(cfg config.ServerConfig, ver string, logger *slog.Logger) *Server {
	return &Server{
		cfg:       cfg,
		mux:       http.NewServeMux(),
		logger:    logger,
		startTime: time.Now(),
		version:   ver,
	}
}

// SetScheduler attaches the cycle runner. Call before Start.
func (s *Server) SetScheduler(sched Scheduler) {
	s.sched = sched
}

// SetMetricsHandler attaches the /metrics handler. Call before Start.
func (s *Server) SetMetricsHandler(h http.Handler) {
	s.metrics = h
}

// Start registers routes and begins listening.
func (s *Server) Start() error {
	s.registerRoutes()

	addr := s.cfg.Addr
	if addr == "" {
		addr = ":8090"
	}
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 15 * time.Second,
	}
	s.logger.Info("server listening", slog.String("addr", addr))
	return s.httpSrv.ListenAndServe()
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Handler returns the route mux; for tests.
func (s *Server) Handler() http.Handler {
	s.registerRoutes()
	return s.mux
}

// registerRoutes sets up all HTTP routes. Health and metrics stay open;
// the operational endpoints require the bearer token when one is set.
func (s *Server) registerRoutes() {
	s.routesOnce.Do(s.addRoutes)
}

func (s *Server) addRoutes() {
	s.mux.HandleFunc("GET /api/v1/scheduler/status", s.requireAuth(s.handleStatus))
	s.mux.HandleFunc("POST /api/v1/scheduler/run", s.requireAuth(s.handleRun))
	s.mux.HandleFunc("GET /api/v1/scheduler/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/v1/version", s.handleVersion)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics)
	}
}

// requireAuth enforces the static bearer token. An empty configured token
// disables auth entirely (local development).
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.BearerToken != "" {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(s.cfg.BearerToken)) != 1 {
				writeError(w, http.StatusUnauthorized, "invalid or missing bearer token")
				return
			}
		}
		next(w, r)
	}
}
