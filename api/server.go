/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend
  5. RequireAuth on everything under /api except /api/auth/{register,login}

ROUTE GROUPS:
  /api/auth/*      Registration, login, profile
  /api/blood/*     Blood ledger
  /api/organs/*    Organ ledger
  /api/users       User roster (admin)
  /uploads/*       Uploaded supporting documents
  /healthz         Liveness probe
  /metrics         Prometheus scrape endpoint

SEE ALSO:
  - handlers.go: Handler implementations
  - middleware.go: Auth middleware
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/redcell/inventory-engine/identity"
)

// RouterConfig carries the router's non-handler dependencies.
type RouterConfig struct {
	Tokens         *identity.TokenService
	AllowedOrigins []string

	// UploadDir is served at /uploads. Empty disables the file server.
	UploadDir string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	auth := RequireAuth(cfg.Tokens)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Auth routes
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.With(auth).Get("/me", h.Me)
		})

		// Blood ledger routes
		r.Route("/blood", func(r chi.Router) {
			r.Use(auth)
			r.With(RequireRole(identity.RoleOrganisation)).Post("/", h.CreateBloodTransaction)
			r.Get("/", h.ListBloodTransactions)
			r.Get("/recent", h.RecentBloodTransactions)
			r.With(RequireRole(identity.RoleOrganisation)).Get("/report", h.BloodReport)
			r.With(RequireRole(identity.RoleOrganisation)).Get("/donors", h.Donors)
			r.With(RequireRole(identity.RoleOrganisation)).Get("/hospitals", h.Hospitals)
			r.Get("/organisations", h.Organisations)
		})

		// Organ ledger routes
		r.Route("/organs", func(r chi.Router) {
			r.Use(auth)
			r.Get("/", h.ListOrgans)
			r.With(RequireRole(identity.RoleOrganisation)).Post("/", h.CreateOrgan)
			r.With(RequireRole(identity.RoleOrganisation)).Get("/analytics", h.OrganAnalytics)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetOrgan)
				r.With(RequireRole(identity.RoleOrganisation)).Put("/", h.UpdateOrgan)
				r.With(RequireRole(identity.RoleOrganisation)).Delete("/", h.DeleteOrgan)
			})
		})

		// Admin routes
		r.With(auth, RequireRole()).Get("/users", h.ListUsers)
	})

	// Uploaded documents
	if cfg.UploadDir != "" {
		fileServer := http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadDir)))
		r.Get("/uploads/*", fileServer.ServeHTTP)
	}

	// Operational endpoints
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}
