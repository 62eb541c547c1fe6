package handlers

import (
	"squad-clash-system/middleware"
	"squad-clash-system/services"

	"github.com/gofiber/fiber/v2"
)

// SetupSquadRoutes wires squad membership and read surfaces.
func SetupSquadRoutes(app *fiber.App, squads *services.SquadService, stats *services.StatsService,
	crowns *services.CrownService, powers *services.PowerService) {
	secured := app.Group("/s", middleware.MemberContextMiddleware())

	secured.Post("/squads", func(c *fiber.Ctx) error {
		var req struct {
			Name     string `json:"name"`
			Timezone string `json:"timezone"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
		}
		squad, err := squads.CreateSquad(req.Name, req.Timezone, memberID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(squad)
	})

	secured.Post("/squads/join", func(c *fiber.Ctx) error {
		var req struct {
			InviteCode string `json:"invite_code"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
		}
		squad, err := squads.JoinSquad(req.InviteCode, memberID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(squad)
	})

	secured.Get("/squads/:id/members", func(c *fiber.Ctx) error {
		members, err := squads.ListMembers(c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(members)
	})

	secured.Get("/squads/:id/leaderboard", func(c *fiber.Ctx) error {
		rows, err := stats.SquadLeaderboard(c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(rows)
	})

	// The squad's current crown with its declarations, plus live target locks.
	secured.Get("/squads/:id/crown", func(c *fiber.Ctx) error {
		crown, err := crowns.GetActiveCrown(c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		if crown == nil {
			return c.JSON(fiber.Map{"crown": nil})
		}
		return c.JSON(fiber.Map{"crown": crown})
	})

	secured.Get("/squads/:id/targets", func(c *fiber.Ctx) error {
		targets, err := powers.ActiveTargets(c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(targets)
	})

	secured.Get("/squads/:id/powers", func(c *fiber.Ctx) error {
		list, err := powers.ActivePowers(c.Params("id"), memberID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(list)
	})
}
