// Package web exposes the kiosk-facing HTTP surface: capture ingestion,
// customer registration and lookup, and the SSE event stream.
package web

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kozaktomas/face-kiosk/internal/cache"
	"github.com/kozaktomas/face-kiosk/internal/config"
	"github.com/kozaktomas/face-kiosk/internal/database"
	"github.com/kozaktomas/face-kiosk/internal/events"
	"github.com/kozaktomas/face-kiosk/internal/web/handlers"
	"github.com/kozaktomas/face-kiosk/internal/web/middleware"
)

// Server is the HTTP server hosting the kiosk API.
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
}

// Deps carries the wired application services the handlers need.
type Deps struct {
	Analyzer    handlers.Analyzer
	Customers   database.CustomerWriter
	Kiosks      database.KioskReader
	Broadcaster *events.Broadcaster
	Store       *cache.Store
	Config      *config.Config
}

// NewServer creates a server with the standard middleware stack.
func NewServer(host string, port int, deps Deps) *Server {
	r := chi.NewRouter()

	s := &Server{router: r}

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(2 * time.Minute))
	r.Use(middleware.CORS())

	s.setupRoutes(deps)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // long-lived SSE connections
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	log.Printf("starting kiosk API on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("shutting down kiosk API...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
