package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-kiosk/internal/web/handlers"
)

func (s *Server) setupRoutes(deps Deps) {
	capturesHandler := handlers.NewCapturesHandler(deps.Analyzer, deps.Broadcaster)
	customersHandler := handlers.NewCustomersHandler(
		deps.Customers, deps.Kiosks, deps.Store, deps.Config.Cache.EmbeddingTTL, deps.Broadcaster)
	eventsHandler := handlers.NewEventsHandler(deps.Broadcaster)

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/captures", capturesHandler.Submit)
		r.Get("/events", eventsHandler.Stream)
		r.Post("/customers", customersHandler.Register)
		r.Get("/customers/lookup", customersHandler.Lookup)
	})
}
