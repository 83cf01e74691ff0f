package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"procurement/internal/query"
	"procurement/internal/services"
)

// InfoHandler serves read-only information about the data and the assistant
type InfoHandler struct {
	stats     *services.StatsService
	assistant *services.AssistantService
	examples  []query.Example
}

func NewInfoHandler(stats *services.StatsService, assistant *services.AssistantService, examples []query.Example) *InfoHandler {
	return &InfoHandler{stats: stats, assistant: assistant, examples: examples}
}

// Stats returns the cached collection statistics
// GET /api/stats
func (h *InfoHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.stats.Stats(c.UserContext())
	if err != nil {
		log.Printf("❌ [STATS] Failed to compute statistics: %v", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Statistics are unavailable",
		})
	}
	return c.JSON(stats)
}

// AgentInfo describes the model and tools behind the assistant
// GET /api/agent/info
func (h *InfoHandler) AgentInfo(c *fiber.Ctx) error {
	return c.JSON(h.assistant.Info(c.UserContext()))
}

// Examples lists sample questions
// GET /api/examples
func (h *InfoHandler) Examples(c *fiber.Ctx) error {
	questions := query.Questions(h.examples)
	return c.JSON(fiber.Map{
		"examples": questions,
		"count":    len(questions),
	})
}
