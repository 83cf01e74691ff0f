package middleware

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"procurement/internal/config"
)

// RateLimitConfig holds rate limiting settings
type RateLimitConfig struct {
	// Global limits (per IP)
	GlobalAPIMax        int
	GlobalAPIExpiration time.Duration

	// Chat limits (per session, falling back to IP). Every chat request
	// costs several model calls.
	ChatMax        int
	ChatExpiration time.Duration
}

// DefaultRateLimitConfig returns production-safe defaults
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		GlobalAPIMax:        200,
		GlobalAPIExpiration: 1 * time.Minute,

		ChatMax:        20,
		ChatExpiration: 1 * time.Minute,
	}
}

// LoadRateLimitConfig applies the configured chat limits over the defaults
func LoadRateLimitConfig(cfg *config.Config) *RateLimitConfig {
	rl := DefaultRateLimitConfig()

	if cfg.ChatRateLimit > 0 {
		rl.ChatMax = cfg.ChatRateLimit
	}
	if cfg.ChatRateLimitWindow > 0 {
		rl.ChatExpiration = cfg.ChatRateLimitWindow
	}

	// Development mode: more lenient limits
	if !cfg.IsProduction() {
		rl.GlobalAPIMax = 1000
		log.Println("⚠️  [RATE-LIMIT] Development mode: using relaxed global rate limit")
	}

	return rl
}

// GlobalAPIRateLimiter creates a rate limiter for all API requests
func GlobalAPIRateLimiter(rl *RateLimitConfig) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        rl.GlobalAPIMax,
		Expiration: rl.GlobalAPIExpiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "global:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			log.Printf("🚫 [RATE-LIMIT] Global limit reached for IP: %s", c.IP())
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "Too many requests. Please slow down.",
				"retry_after": int(rl.GlobalAPIExpiration.Seconds()),
			})
		},
	})
}

// ChatRateLimiter limits questions per session. Requests without a
// session header are keyed by IP.
func ChatRateLimiter(rl *RateLimitConfig) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        rl.ChatMax,
		Expiration: rl.ChatExpiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			if sessionID := c.Get(SessionHeader); sessionID != "" {
				return "chat:" + sessionID
			}
			return "chat-ip:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			log.Printf("⚠️  [RATE-LIMIT] Chat limit reached for %s on %s", c.IP(), c.Path())
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "Too many questions. Please wait before asking again.",
				"retry_after": int(rl.ChatExpiration.Seconds()),
			})
		},
	})
}
