package handlers

import (
	"errors"
	"log"

	"squad-clash-system/services"

	"github.com/gofiber/fiber/v2"
)

// businessStatus maps the service error kinds onto HTTP statuses. Anything
// unmapped is an infrastructure failure and surfaces as a 500.
var businessStatus = []struct {
	err    error
	status int
}{
	{services.ErrValidationFailed, fiber.StatusBadRequest},
	{services.ErrInvalidTarget, fiber.StatusBadRequest},
	{services.ErrForbidden, fiber.StatusForbidden},
	{services.ErrNotFound, fiber.StatusNotFound},
	{services.ErrInvalidTransition, fiber.StatusConflict},
	{services.ErrEventNotOpen, fiber.StatusConflict},
	{services.ErrDuplicateSubmission, fiber.StatusConflict},
	{services.ErrAlreadyUsed, fiber.StatusConflict},
	{services.ErrExpired, fiber.StatusGone},
}

func respondError(c *fiber.Ctx, err error) error {
	for _, m := range businessStatus {
		if errors.Is(err, m.err) {
			return c.Status(m.status).JSON(fiber.Map{"error": err.Error()})
		}
	}
	log.Printf("[HTTP] internal error on %s: %v", c.Path(), err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
}

func memberID(c *fiber.Ctx) string {
	if v, ok := c.Locals("user_id").(string); ok {
		return v
	}
	return ""
}
