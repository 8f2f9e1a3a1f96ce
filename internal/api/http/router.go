package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/telecomx/user-service/internal/api/http/handlers"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health *handlers.HealthHandler
	Users  *handlers.UsersHandler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/", cfg.Health.Root)
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	users := app.Group("/users")
	users.Post("/", cfg.Users.Create)
	users.Get("/", cfg.Users.List)
	users.Get("/:id", cfg.Users.GetByEmail)
	users.Put("/:id", cfg.Users.Update)
	users.Post("/:id/suspend", cfg.Users.Suspend)
	users.Post("/:id/reactivate", cfg.Users.Reactivate)
	users.Delete("/:id", cfg.Users.Delete)
}
