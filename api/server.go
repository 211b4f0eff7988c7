/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. Metrics:    Prometheus request counters (when configured)
  5. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/clients/*        Client management and balances
  /api/debts/*          Debts, status queries and overrides
  /api/payments/*       Payment recording and history
  /api/notifications/*  Reminders and manual notifications
  /api/reports/*        Aggregate reports, XLSX export, archive
  /api/audit            Audit trail
  /api/scenarios/*      Demo scenarios
  /healthz              Liveness and database check
  /metrics              Prometheus scrape endpoint

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

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

// NewRouter creates a new router with all routes configured. metrics may be nil.
func NewRouter(h *Handler, metrics *Metrics) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if metrics != nil {
		r.Use(metrics.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Health)
	if metrics != nil {
		r.Method("GET", "/metrics", metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/clients", func(r chi.Router) {
			r.Get("/", h.ListClients)
			r.Post("/", h.CreateClient)
			r.Get("/{id}", h.GetClient)
			r.Delete("/{id}", h.DeleteClient)
			r.Get("/{id}/balance", h.GetClientBalance)
		})

		r.Route("/debts", func(r chi.Router) {
			r.Get("/", h.ListDebts)
			r.Post("/", h.CreateDebt)
			// Static paths are matched before /{id}
			r.Get("/overdue", h.ListOverdueDebts)
			r.Get("/pending", h.ListPendingDebts)
			r.Get("/upcoming", h.ListUpcomingDebts)
			r.Post("/refresh", h.RefreshDebts)
			r.Get("/{id}", h.GetDebt)
			r.Patch("/{id}", h.UpdateDebt)
			r.Post("/{id}/mark_paid", h.MarkDebtPaid)
			r.Post("/{id}/recompute", h.RecomputeDebt)
		})

		r.Route("/payments", func(r chi.Router) {
			r.Get("/", h.ListPayments)
			r.Post("/", h.RecordPayment)
			r.Get("/recent", h.ListRecentPayments)
			r.Get("/summary", h.GetPaymentSummary)
			r.Get("/{id}", h.GetPayment)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", h.ListNotifications)
			r.Post("/", h.CreateNotification)
			r.Get("/pending", h.ListPendingNotifications)
			r.Post("/send_pending", h.SendPendingNotifications)
			r.Post("/create_reminders", h.CreateReminders)
			r.Get("/{id}", h.GetNotification)
			r.Post("/{id}/send", h.SendNotification)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/outstanding", h.GetOutstandingReport)
			r.Get("/overdue", h.GetOverdueReport)
			r.Get("/dashboard", h.GetDashboard)
			r.Get("/export.xlsx", h.ExportReports)
			r.Post("/archive", h.ArchiveReports)
		})

		r.Get("/audit", h.ListAudit)

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r
}
