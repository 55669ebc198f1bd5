package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes mounts the public health endpoints and the bearer-protected API.
func SetupRoutes(app *fiber.App, h *Handlers, auth fiber.Handler) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	v1 := app.Group("/api/v1", auth)

	v1.Get("/me/involvement", h.Involvement.Get)

	notifications := v1.Group("/notifications")
	notifications.Get("/", h.Notification.List)
	notifications.Post("/", h.Notification.Create)
	notifications.Get("/badge", h.Notification.Badge)
	notifications.Get("/stream", h.Notification.Stream)
	notifications.Post("/mark-all-read", h.Notification.MarkAllAsRead)
	notifications.Post("/clear_safe", h.Notification.ClearSafe)
	notifications.Patch("/:key/read", h.Notification.MarkAsRead)
	notifications.Post("/:key/decision", h.Notification.Decide)
	notifications.Delete("/:key", h.Notification.Delete)

	events := v1.Group("/events")
	events.Post("/:id/cancel", h.Event.Cancel)
	events.Delete("/:id", h.Event.Delete)
}
