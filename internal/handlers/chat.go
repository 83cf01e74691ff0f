package handlers

import (
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"procurement/internal/middleware"
	"procurement/internal/services"
)

// ChatHandler serves questions, feedback and session history
type ChatHandler struct {
	assistant *services.AssistantService
	metrics   *services.Metrics
}

// NewChatHandler creates a new chat handler. metrics may be nil.
func NewChatHandler(assistant *services.AssistantService, metrics *services.Metrics) *ChatHandler {
	return &ChatHandler{assistant: assistant, metrics: metrics}
}

// ChatRequest is the body of POST /api/chat
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
}

// FeedbackRequest is the body of POST /api/chat/feedback
type FeedbackRequest struct {
	SessionID     string `json:"session_id"`
	InteractionID string `json:"interaction_id"`
	Feedback      string `json:"feedback"`
}

// Ask answers one question
// POST /api/chat
func (h *ChatHandler) Ask(c *fiber.Ctx) error {
	var req ChatRequest
	if err := c.BodyParser(&req); err != nil {
		h.metrics.RecordChatError("invalid_body")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.SessionID == "" {
		req.SessionID = middleware.SessionID(c)
	}
	if strings.TrimSpace(req.Question) == "" {
		h.metrics.RecordChatError("empty_question")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "question is required",
		})
	}

	resp, err := h.assistant.Ask(c.UserContext(), req.SessionID, req.Question)
	if err != nil {
		log.Printf("❌ [CHAT] Failed to answer question: %v", err)
		h.metrics.RecordChatError("ask_failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to answer question",
		})
	}

	c.Set(middleware.SessionHeader, resp.SessionID)
	return c.JSON(resp)
}

// Feedback records a vote on an earlier answer
// POST /api/chat/feedback
func (h *ChatHandler) Feedback(c *fiber.Ctx) error {
	var req FeedbackRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.SessionID == "" {
		req.SessionID = middleware.SessionID(c)
	}
	if req.SessionID == "" || req.InteractionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "session_id and interaction_id are required",
		})
	}

	err := h.assistant.Feedback(c.UserContext(), req.SessionID, req.InteractionID, req.Feedback)
	switch {
	case errors.Is(err, services.ErrInvalidFeedback):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrInteractionNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case err != nil:
		log.Printf("❌ [CHAT] Failed to record feedback: %v", err)
		h.metrics.RecordChatError("feedback_failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to record feedback",
		})
	}

	return c.JSON(fiber.Map{"success": true})
}

// History returns the session's recent interactions
// GET /api/sessions/:id/history
func (h *ChatHandler) History(c *fiber.Ctx) error {
	sessionID := c.Params("id")
	history, err := h.assistant.History(c.UserContext(), sessionID)
	if err != nil {
		log.Printf("❌ [CHAT] Failed to load history for %s: %v", sessionID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load history",
		})
	}
	return c.JSON(fiber.Map{
		"session_id": sessionID,
		"history":    history,
		"count":      len(history),
	})
}

// ClearHistory forgets the session's interactions
// DELETE /api/sessions/:id/history
func (h *ChatHandler) ClearHistory(c *fiber.Ctx) error {
	sessionID := c.Params("id")
	if err := h.assistant.ClearHistory(c.UserContext(), sessionID); err != nil {
		log.Printf("❌ [CHAT] Failed to clear history for %s: %v", sessionID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to clear history",
		})
	}
	return c.SendStatus(fiber.StatusNoContent)
}
