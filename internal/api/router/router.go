// Package router assembles the chi router for the SAV API.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mobilierdefrance/sav-ai-platform/internal/http/handlers"
	httpmiddleware "github.com/mobilierdefrance/sav-ai-platform/internal/http/middleware"
	"github.com/mobilierdefrance/sav-ai-platform/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger         *logging.Logger
	Tickets        *handlers.TicketsHandler
	MetricsHandler http.Handler
}

// New creates a chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", cfg.Tickets.HealthCheck)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Post("/claims", cfg.Tickets.SubmitClaim)

	r.Route("/tickets/{id}", func(r chi.Router) {
		r.Get("/", cfg.Tickets.GetTicket)
		r.Get("/summary", cfg.Tickets.GetTicketSummary)
		r.Post("/validate", cfg.Tickets.ValidateTicket)
		r.Post("/cancel", cfg.Tickets.CancelTicket)
		r.Post("/evidence", cfg.Tickets.AddEvidence)
	})

	r.Route("/circuits", func(r chi.Router) {
		r.Get("/", cfg.Tickets.ListCircuits)
		r.Post("/reset", cfg.Tickets.ResetCircuits)
	})

	return r
}
