package routes

import (
	"github.com/go-chi/chi/v5"
	"github.com/tmcfarland/authgate/internal/handlers"
	"github.com/tmcfarland/authgate/internal/middleware"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	gateHandler *handlers.GateHandler,
	rateLimitConfig middleware.RateLimitConfig,
) {
	router.Route("/v1", func(r chi.Router) {
		// Per-IP throttling on everything public. Identity resolution makes
		// outbound lookups, so it gets the same protection as the gate.
		r.Use(middleware.RateLimitByIP(rateLimitConfig))

		r.Post("/gate/check", gateHandler.Check)
		r.Post("/gate/attempts", gateHandler.Record)
		r.Get("/identity", gateHandler.Identity)
	})
}
