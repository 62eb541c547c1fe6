package handlers

import (
	"path/filepath"
	"strconv"

	"squad-clash-system/middleware"
	"squad-clash-system/models"
	"squad-clash-system/services"
	"squad-clash-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// SetupEventRoutes wires the event lifecycle and submission surfaces. The
// lifecycle transitions are also driven by the scheduler; these endpoints let
// the external daily scheduler and squad admins drive them directly.
func SetupEventRoutes(app *fiber.App, events *services.EventService,
	submissions *services.SubmissionService, squads *services.SquadService) {
	secured := app.Group("/s", middleware.MemberContextMiddleware())

	secured.Post("/admin/events", func(c *fiber.Ctx) error {
		var input services.CreateEventInput
		if err := c.BodyParser(&input); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
		}
		admin, err := squads.IsAdmin(input.SquadID, memberID(c))
		if err != nil {
			return respondError(c, err)
		}
		if !admin {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "squad admin required"})
		}
		event, err := events.CreateEvent(input)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(event)
	})

	secured.Get("/events/:id", func(c *fiber.Ctx) error {
		event, err := events.GetEvent(c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(event)
	})

	secured.Get("/events/:id/leaderboard", func(c *fiber.Ctx) error {
		subs, err := submissions.EventLeaderboard(c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(subs)
	})

	secured.Post("/events/:id/open", func(c *fiber.Ctx) error {
		event, err := events.OpenEvent(c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(event)
	})

	secured.Post("/events/:id/close", func(c *fiber.Ctx) error {
		event, err := events.CloseEvent(c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(event)
	})

	secured.Post("/events/:id/finalize", func(c *fiber.Ctx) error {
		event, err := events.FinalizeEvent(c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(event)
	})

	// Submissions arrive as multipart so media entries can attach a file;
	// the object store hands back the opaque key we persist.
	secured.Post("/events/:id/submissions", func(c *fiber.Ctx) error {
		input := services.SubmitInput{Payload: c.FormValue("payload")}

		if scoreStr := c.FormValue("score"); scoreStr != "" {
			score, err := strconv.ParseFloat(scoreStr, 64)
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "score must be a number"})
			}
			input.Score = &score
		}

		if media, err := c.FormFile("media"); err == nil && media.Size > 0 {
			ext := filepath.Ext(media.Filename)
			key := "submissions/" + uuid.NewString() + ext
			ref, err := utils.UploadMedia(media, key)
			if err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to store media"})
			}
			input.MediaRef = ref
		}

		sub, err := submissions.Submit(c.Params("id"), memberID(c), input)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(sub)
	})

	// Vote events expose their tally once the ranking pass ran.
	secured.Get("/events/:id/tally", func(c *fiber.Ctx) error {
		event, err := events.GetEvent(c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		if event.Type != models.EventVote {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "tallies exist for vote events only"})
		}
		return c.Type("json").SendString(orEmptyTally(event.VoteTally))
	})
}

func orEmptyTally(tally string) string {
	if tally == "" {
		return "[]"
	}
	return tally
}
