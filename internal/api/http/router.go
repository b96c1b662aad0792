package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/incident-coordinator/internal/api/http/handlers"
	"github.com/spec-kit/incident-coordinator/internal/session"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health   *handlers.HealthHandler
	Sessions *handlers.SessionHandler
	Tickets  *handlers.TicketsHandler
	Roles    *handlers.RolesHandler
	Tokens   *session.TokenManager
	Manager  *session.Manager
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/session/connect", cfg.Sessions.Connect)
	app.Get("/session", cfg.Sessions.Current)

	app.Post("/roles", cfg.Roles.Assign)
	app.Get("/roles/:address", cfg.Roles.Get)

	app.Get("/tickets", cfg.Tickets.ListTickets)
	app.Get("/tickets/:id", cfg.Tickets.GetTicket)
	app.Get("/tickets/:id/pool", cfg.Tickets.PoolStats)

	// Mutating operations require the bearer token of the active session.
	protected := app.Group("", RequireWalletSession(cfg.Tokens, cfg.Manager))
	protected.Delete("/session", cfg.Sessions.Disconnect)
	protected.Post("/session/account-changed", cfg.Sessions.AccountChanged)
	protected.Post("/tickets", cfg.Tickets.CreateTicket)
	protected.Post("/tickets/:id/stake", cfg.Tickets.Stake)
	protected.Post("/tickets/:id/assign-analyst", cfg.Tickets.AssignAnalyst)
	protected.Post("/tickets/:id/report", cfg.Tickets.SubmitReport)
	protected.Post("/tickets/:id/assign-certifier", cfg.Tickets.AssignCertifier)
	protected.Post("/tickets/:id/approve", cfg.Tickets.Approve)
	protected.Post("/tickets/:id/reject", cfg.Tickets.Reject)
	protected.Post("/tickets/:id/reconcile", cfg.Tickets.Reconcile)
}
