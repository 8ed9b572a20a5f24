// Package server provides the HTTP command interface, health and metrics
// endpoints, and the live dashboard stream.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// RouteRegistrar is a module handler that mounts its own routes under /api
type RouteRegistrar interface {
	RegisterRoutes(r chi.Router)
}

// MetricsProvider exposes the Prometheus endpoint and request middleware
type MetricsProvider interface {
	Handler() http.Handler
	Middleware(next http.Handler) http.Handler
}

// Config holds server configuration
type Config struct {
	Log      zerolog.Logger
	Port     int
	DevMode  bool
	Commands *CommandHandler
	Health   *HealthHandler
	Hub      *DashboardHub
	Metrics  MetricsProvider
	Modules  []RouteRegistrar
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	cfg    Config
	log    zerolog.Logger
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		cfg:    cfg,
		log:    cfg.Log.With().Str("component", "server").Logger(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	return s
}

// Router exposes the route tree, mainly for tests
func (s *Server) Router() http.Handler {
	return s.router
}

// setupMiddleware installs the middleware shared by every route
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
}

// setupRoutes configures all routes. The dashboard socket stays outside the
// request timeout and compression group.
func (s *Server) setupRoutes() {
	if s.cfg.Hub != nil {
		s.router.Get("/ws/dashboard", s.cfg.Hub.ServeHTTP)
	}

	s.router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		if !s.cfg.DevMode {
			r.Use(middleware.Compress(5))
		}
		if s.cfg.Metrics != nil {
			r.Use(s.cfg.Metrics.Middleware)
			r.Handle("/metrics", s.cfg.Metrics.Handler())
		}

		r.Route("/api", func(r chi.Router) {
			if s.cfg.Health != nil {
				r.Get("/health", s.cfg.Health.ServeHTTP)
			}
			if s.cfg.Commands != nil {
				r.Post("/command", s.cfg.Commands.ServeHTTP)
			}
			for _, m := range s.cfg.Modules {
				m.RegisterRoutes(r)
			}
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	if s.cfg.Hub != nil {
		s.cfg.Hub.Close()
	}
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
