package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procurement/internal/config"
)

func TestLoadRateLimitConfig(t *testing.T) {
	rl := LoadRateLimitConfig(&config.Config{Environment: "production", ChatRateLimit: 5, ChatRateLimitWindow: 30 * time.Second})
	assert.Equal(t, 5, rl.ChatMax)
	assert.Equal(t, 30*time.Second, rl.ChatExpiration)
	assert.Equal(t, 200, rl.GlobalAPIMax)

	dev := LoadRateLimitConfig(&config.Config{Environment: "development"})
	assert.Equal(t, 20, dev.ChatMax)
	assert.Equal(t, 1000, dev.GlobalAPIMax)
}

func TestChatRateLimiterKeysBySession(t *testing.T) {
	app := fiber.New()
	app.Post("/chat", ChatRateLimiter(&RateLimitConfig{ChatMax: 1, ChatExpiration: time.Minute}), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	send := func(session string) int {
		req := httptest.NewRequest("POST", "/chat", nil)
		if session != "" {
			req.Header.Set(SessionHeader, session)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, fiber.StatusOK, send("a"))
	assert.Equal(t, fiber.StatusTooManyRequests, send("a"))
	assert.Equal(t, fiber.StatusOK, send("b"))
}
