// Package server exposes the scheduler over a REST API. Producers
// enqueue tasks, workers claim and report on them, operators inspect
// queue state. All JSON responses share a common envelope.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/me/slaq/internal/config"
	"github.com/me/slaq/internal/scheduler"
)

// Server is the slaq REST API server.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	config    config.ServerConfig
	startTime time.Time
	scheduler *scheduler.Service
}

// New creates a new Server with all routes registered.
func New(cfg config.ServerConfig, svc *scheduler.Service, logger *slog.Logger) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.With("component", "server"),
		config:    cfg,
		startTime: time.Now(),
		scheduler: svc,
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	// Prometheus scrape endpoint, outside the API envelope.
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Discovery
		r.Get("/", s.handleDiscovery)

		// Health
		r.Get("/health", s.handleHealth)

		// Stats
		r.Get("/stats", s.handleStats)

		// Tasks
		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", s.handleListTasks)
			r.Post("/", s.handleEnqueue)
			r.Post("/next", s.handleDequeueNext)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetTask)
				r.Post("/succeed", s.handleSucceed)
				r.Post("/fail", s.handleFail)
				r.Post("/block", s.handleBlock)
				r.Post("/unblock", s.handleUnblock)
			})
		})
	})
}
