package handlers

import (
	"squad-clash-system/middleware"
	"squad-clash-system/services"

	"github.com/gofiber/fiber/v2"
)

// SetupCrownRoutes wires the crown award and the holder's declarations.
func SetupCrownRoutes(app *fiber.App, crowns *services.CrownService) {
	secured := app.Group("/s", middleware.MemberContextMiddleware())

	secured.Post("/events/:id/crown", func(c *fiber.Ctx) error {
		crown, err := crowns.AwardCrown(c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		if crown == nil {
			return c.JSON(fiber.Map{"crown": nil, "reason": "no rank-1 finisher"})
		}
		return c.JSON(fiber.Map{"crown": crown})
	})

	secured.Post("/crowns/:id/headline", func(c *fiber.Ctx) error {
		var req struct {
			Content string `json:"content"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
		}
		headline, err := crowns.CreateHeadline(c.Params("id"), memberID(c), req.Content)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(headline)
	})

	secured.Post("/crowns/:id/rivalry", func(c *fiber.Ctx) error {
		var req struct {
			Rival1ID string `json:"rival1_id"`
			Rival2ID string `json:"rival2_id"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
		}
		rivalry, err := crowns.DeclareRivalry(c.Params("id"), memberID(c), req.Rival1ID, req.Rival2ID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(rivalry)
	})
}
