package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check requests
type HealthHandler struct {
	store Pinger
}

// NewHealthHandler creates a new health handler. store may be nil.
func NewHealthHandler(store Pinger) *HealthHandler {
	return &HealthHandler{store: store}
}

// Handle responds with server health status
func (h *HealthHandler) Handle(c *fiber.Ctx) error {
	status := "healthy"
	mongo := "unknown"
	if h.store != nil {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			status = "degraded"
			mongo = "unreachable"
		} else {
			mongo = "connected"
		}
	}

	return c.JSON(fiber.Map{
		"status":    status,
		"mongodb":   mongo,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
