/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the admin frontend

ROUTE GROUPS:
  /api/schedule/*   Schedule reads, generation, conflict repair
  /api/webhooks/*   Signed appointment events from the booking provider
  /api/offices      Office configuration
  /api/clinicians   Clinician roster
  /api/rules        Assignment rule table
  /api/admin/*      Workbook import, audit trail

SECURITY NOTE:
  Webhooks authenticate by HMAC signature; everything else is open.
  Put the admin routes behind an authenticating proxy in production.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", SignatureHeader},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/schedule", func(r chi.Router) {
			r.Get("/", h.GetSchedule)
			r.Post("/generate", h.GenerateSchedule)
			r.Post("/conflicts/resolve", h.ResolveConflicts)
		})

		r.Post("/webhooks/appointments", h.ReceiveWebhook)

		r.Get("/offices", h.ListOffices)
		r.Get("/clinicians", h.ListClinicians)
		r.Get("/rules", h.ListRules)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/import", h.ImportWorkbook)
			r.Get("/audit", h.GetAuditTrail)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return r
}
