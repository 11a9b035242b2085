/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. requestLogger: Structured request logging via logrus
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/auth/token       Token issuance (public)
  /api/executives/*     Executive data (self-or-admin)
  /api/contracts/*      Contract management
  /api/invoices/*       Invoice recording
  /api/commissions/*    Approval queue (mutations admin-only)
  /api/plans/*          Rate plans (mutations admin-only)
  /api/admin/*          Assignments, seed, reset (admin-only)

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: Token middleware
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(h.log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// Public: token issuance and health
		r.Post("/auth/token", h.IssueToken)
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		// Everything else requires a valid token
		r.Group(func(r chi.Router) {
			r.Use(h.Auth.RequireAuth)

			// Executive routes (self-or-admin for {id} paths)
			r.Route("/executives", func(r chi.Router) {
				r.With(RequireAdmin).Get("/", h.ListExecutives)
				r.With(RequireAdmin).Post("/", h.CreateExecutive)

				r.Route("/{id}", func(r chi.Router) {
					r.Use(RequireSelfOrAdmin)
					r.Get("/", h.GetExecutive)
					r.Get("/dashboard", h.GetDashboard)
					r.Get("/commissions", h.ListExecutiveCommissions)
					r.Get("/statement", h.GetStatement)
					r.Get("/statement/export", h.ExportStatement)
					r.Get("/plan", h.GetActivePlan)
					r.Get("/assignments", h.ListAssignments)
					r.With(RequireAdmin).Post("/assignments", h.CreateAssignment)
				})
			})

			// Contract routes
			r.Route("/contracts", func(r chi.Router) {
				r.Get("/", h.ListContracts)
				r.With(RequireAdmin).Post("/", h.CreateContract)
				r.Get("/{id}", h.GetContract)
				r.Get("/{id}/invoices", h.ListContractInvoices)
			})

			// Invoice routes
			r.Route("/invoices", func(r chi.Router) {
				r.With(RequireAdmin).Post("/", h.RecordInvoice)
				r.Get("/{id}", h.GetInvoice)
			})

			// Commission approval routes
			r.Route("/commissions", func(r chi.Router) {
				r.Get("/", h.ListCommissions)
				r.Get("/{id}", h.GetCommission)
				r.With(RequireAdmin).Post("/{id}/approve", h.ApproveCommission)
				r.With(RequireAdmin).Post("/{id}/reject", h.RejectCommission)
				r.With(RequireAdmin).Post("/{id}/pay", h.PayCommission)
			})

			// Plan routes
			r.Route("/plans", func(r chi.Router) {
				r.Get("/", h.ListPlans)
				r.With(RequireAdmin).Post("/", h.SavePlan)
				r.Get("/{id}", h.GetPlan)
			})

			// Admin routes
			r.Route("/admin", func(r chi.Router) {
				r.Use(RequireAdmin)
				r.Post("/assignments", h.CreateAssignment)
				r.Post("/seed", h.SeedDemoData)
				r.Post("/reset", h.ResetDatabase)
			})
		})
	})

	return r
}

// requestLogger logs one structured line per request.
func requestLogger(log *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			log.WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"bytes":      ww.BytesWritten(),
				"duration":   time.Since(start).String(),
				"request_id": middleware.GetReqID(r.Context()),
			}).Info("request")
		})
	}
}
