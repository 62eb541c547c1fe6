package handlers

import (
	"squad-clash-system/middleware"
	"squad-clash-system/services"

	"github.com/gofiber/fiber/v2"
)

// SetupPowerRoutes wires the underdog power award and use surfaces.
func SetupPowerRoutes(app *fiber.App, powers *services.PowerService) {
	secured := app.Group("/s", middleware.MemberContextMiddleware())

	// At-least-once callers (finalize retries) land here too; the award is
	// keyed by event, so re-posts return the same power.
	secured.Post("/events/:id/underdog", func(c *fiber.Ctx) error {
		power, err := powers.AwardUnderdogPower(c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		if power == nil {
			return c.JSON(fiber.Map{"power": nil, "reason": "no ranked finisher"})
		}
		return c.JSON(fiber.Map{"power": power})
	})

	secured.Post("/powers/:id/use", func(c *fiber.Ctx) error {
		var req struct {
			Metadata map[string]string `json:"metadata"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
		}
		power, err := powers.UsePower(c.Params("id"), memberID(c), req.Metadata)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(power)
	})
}
