/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the product frontend

SECURITY NOTE:
  This service trusts the X-Actor-ID header. It must only be reachable
  from the application gateway that authenticates sessions; do not expose
  it directly to end users.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Actor-ID"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/contracts", func(r chi.Router) {
			r.Post("/", h.CreateContract)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetContract)
				r.Get("/balance", h.GetBalance)
				r.Get("/events", h.GetEvents)

				r.Route("/conditions", func(r chi.Router) {
					r.Post("/", h.AddCondition)
					r.Route("/{conditionId}", func(r chi.Router) {
						r.Get("/", h.GetCondition)
						r.Post("/evidence", h.SubmitEvidence)
						r.Post("/approve", h.ApproveCondition)
						r.Post("/reject", h.RejectCondition)
					})
				})
			})
		})
	})

	return r
}
