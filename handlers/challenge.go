package handlers

import (
	"squad-clash-system/middleware"
	"squad-clash-system/services"

	"github.com/gofiber/fiber/v2"
)

// SetupChallengeRoutes wires judge selection and the overturn vote.
func SetupChallengeRoutes(app *fiber.App, judges *services.JudgeService, stats *services.StatsService) {
	secured := app.Group("/s", middleware.MemberContextMiddleware())

	secured.Post("/squads/:id/judge", func(c *fiber.Ctx) error {
		judge, err := judges.SelectJudge(c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"judge_id": judge})
	})

	secured.Post("/challenges", func(c *fiber.Ctx) error {
		var req struct {
			SquadID     string `json:"squad_id"`
			SubjectType string `json:"subject_type"`
			SubjectID   string `json:"subject_id"`
			TargetID    string `json:"target_id"`
			Reason      string `json:"reason"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
		}
		challenge, err := judges.OpenChallenge(req.SquadID, memberID(c), req.SubjectType, req.SubjectID, req.TargetID, req.Reason)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(challenge)
	})

	secured.Get("/challenges/:id", func(c *fiber.Ctx) error {
		challenge, err := judges.GetChallenge(c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(challenge)
	})

	secured.Post("/challenges/:id/votes", func(c *fiber.Ctx) error {
		var req struct {
			Choice string `json:"choice"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
		}
		challenge, err := judges.CastVote(c.Params("id"), memberID(c), req.Choice)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(challenge)
	})

	// Sweep endpoints — the periodic caller's door when the in-process
	// scheduler is disabled.
	secured.Post("/admin/sweeps/expire-challenges", func(c *fiber.Ctx) error {
		n, err := judges.ExpireChallenges()
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"resolved": n})
	})

	secured.Post("/admin/sweeps/weekly-reset", func(c *fiber.Ctx) error {
		n, err := stats.ResetWeekly()
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"members_reset": n})
	})

	secured.Post("/admin/sweeps/strike-decay", func(c *fiber.Ctx) error {
		n, err := stats.DecayStrikes()
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"members_decayed": n})
	})

	// Keyed by event so the external caller can retry freely.
	secured.Post("/admin/events/:id/missed-penalty", func(c *fiber.Ctx) error {
		var req struct {
			UserID string `json:"user_id"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
		}
		row, err := stats.ApplyMissedEventPenalty(c.Params("id"), req.UserID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(row)
	})
}
