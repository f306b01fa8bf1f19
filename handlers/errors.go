package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"meetup-engagement-system/services"
)

// statusFor maps service errors onto HTTP statuses.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return fiber.StatusNotFound, "not found"
	case errors.Is(err, services.ErrSelfReference):
		return fiber.StatusBadRequest, "cannot target yourself"
	case errors.Is(err, services.ErrInvalidInput):
		return fiber.StatusBadRequest, "invalid input"
	case errors.Is(err, services.ErrDuplicateRelationship), errors.Is(err, services.ErrDuplicateRegistration):
		return fiber.StatusConflict, "already exists"
	case errors.Is(err, services.ErrCapacityExceeded):
		return fiber.StatusConflict, "event full"
	case errors.Is(err, services.ErrInvalidState):
		return fiber.StatusConflict, "invalid state"
	case errors.Is(err, services.ErrAuthorization):
		return fiber.StatusForbidden, "forbidden"
	case errors.Is(err, services.ErrTransientStore):
		return fiber.StatusServiceUnavailable, "temporarily unavailable, retry"
	}
	return fiber.StatusInternalServerError, "internal error"
}

// respondError writes {"error": ...}. Client errors carry the service message, server
// errors a generic one.
func respondError(c *fiber.Ctx, err error) error {
	status, msg := statusFor(err)
	if status < fiber.StatusInternalServerError {
		msg = err.Error()
	}
	if status == fiber.StatusServiceUnavailable {
		c.Set(fiber.HeaderRetryAfter, "1")
	}
	return c.Status(status).JSON(fiber.Map{"error": msg})
}
