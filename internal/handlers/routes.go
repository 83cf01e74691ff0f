package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// Routes bundles the handlers mounted by RegisterRoutes
type Routes struct {
	Chat   *ChatHandler
	Info   *InfoHandler
	Health *HealthHandler

	// ChatLimiter guards POST /api/chat. Optional.
	ChatLimiter fiber.Handler
}

// RegisterRoutes mounts the public API on app
func RegisterRoutes(app *fiber.App, r Routes) {
	app.Get("/health", r.Health.Handle)

	api := app.Group("/api")

	chat := []fiber.Handler{r.Chat.Ask}
	if r.ChatLimiter != nil {
		chat = append([]fiber.Handler{r.ChatLimiter}, chat...)
	}
	api.Post("/chat", chat...)
	api.Post("/chat/feedback", r.Chat.Feedback)

	api.Get("/sessions/:id/history", r.Chat.History)
	api.Delete("/sessions/:id/history", r.Chat.ClearHistory)

	api.Get("/stats", r.Info.Stats)
	api.Get("/agent/info", r.Info.AgentInfo)
	api.Get("/examples", r.Info.Examples)
}
