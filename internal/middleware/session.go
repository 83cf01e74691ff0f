package middleware

import "github.com/gofiber/fiber/v2"

// SessionHeader carries the caller's session id
const SessionHeader = "X-Session-ID"

// SessionID returns the session named by the request header, or "" when the
// caller has not started one yet.
func SessionID(c *fiber.Ctx) string {
	return c.Get(SessionHeader)
}
