package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/modmail-router/internal/api/http/handlers"
	"github.com/spec-kit/modmail-router/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Ingest         *handlers.IngestHandler
	Admin          *handlers.AdminHandler
	AuthMiddleware *auth.Middleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/token", cfg.Auth.Token)

	ingest := app.Group("/ingest", cfg.AuthMiddleware.Handle)
	ingest.Post("/user-message", cfg.Ingest.UserMessage)
	ingest.Post("/channel-message", cfg.Ingest.ChannelMessage)

	admin := app.Group("/admin", cfg.AuthMiddleware.Handle)
	admin.Post("/tickets/close", cfg.Admin.CloseTicket)
	admin.Get("/tickets", cfg.Admin.ListTickets)
	admin.Get("/tickets/info", cfg.Admin.TicketInfo)
	admin.Post("/tickets/participants", cfg.Admin.AddParticipant)
	admin.Delete("/tickets/participants", cfg.Admin.RemoveParticipant)
}
