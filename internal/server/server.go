// Package server provides the HTTP composition root for the session
// runtime: chi routing, CORS/logging/recovery middleware, and the
// handlers backing the seven routes in the external interface.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/turnstream/turnstream/internal/agent"
	"github.com/turnstream/turnstream/internal/session"
	"github.com/turnstream/turnstream/internal/user"
)

// Config holds server-level settings distinct from process
// configuration (internal/config), kept separate so the HTTP layer
// can be constructed in tests without a full config.Load().
type Config struct {
	Port           int
	EnableCORS     bool
	ReadTimeout    time.Duration
	SSEIdleTimeout time.Duration
}

// DefaultConfig returns reasonable defaults for Config.
func DefaultConfig() Config {
	return Config{
		Port:           8080,
		EnableCORS:     true,
		ReadTimeout:    30 * time.Second,
		SSEIdleTimeout: 5 * time.Minute,
	}
}

// Server is the HTTP server.
type Server struct {
	config  Config
	router  *chi.Mux
	httpSrv *http.Server

	sessions *session.Service
	agents   *agent.Store
	users    *user.Store
}

// New wires a Server from its dependencies and mounts every route.
func New(cfg Config, sessions *session.Service, agents *agent.Store, users *user.Store) *Server {
	s := &Server{
		config:   cfg,
		router:   chi.NewRouter(),
		sessions: sessions,
		agents:   agents,
		users:    users,
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RealIP)

	if s.config.EnableCORS {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
}

// Router returns the underlying chi router, for tests.
func (s *Server) Router() *chi.Mux { return s.router }

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:        fmt.Sprintf(":%d", s.config.Port),
		Handler:     s.router,
		ReadTimeout: s.config.ReadTimeout,
		// No write timeout: SSE streams are long-lived.
	}
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}
