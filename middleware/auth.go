// internal/middleware/user_context.go
package middleware

import (
	"log"

	"github.com/gofiber/fiber/v2"
)

// UserContextMiddleware extracts the user identity set by the Gateway and
// requires it — every route behind this middleware acts on behalf of a user.
func UserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get("X-User-ID")
		if userID == "" {
			log.Printf("❌ [USER_CTX] X-User-ID required but missing on secured route: %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-ID — request must come through gateway with auth context",
			})
		}

		// Attach to ctx for handlers
		c.Locals("user_id", userID)

		return c.Next()
	}
}
