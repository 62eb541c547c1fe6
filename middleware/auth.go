// middleware/auth.go
package middleware

import (
	"github.com/gofiber/fiber/v2"
)

// MemberContextMiddleware extracts the opaque member id set by the Gateway.
// Credentials are issued and validated upstream; this service just requires
// that secured calls carry an id.
func MemberContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get("X-User-ID")
		if userID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-ID — request must come through gateway with auth context",
			})
		}
		c.Locals("user_id", userID)
		return c.Next()
	}
}
