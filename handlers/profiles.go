package handlers

import (
	"github.com/gofiber/fiber/v2"

	"meetup-engagement-system/middleware"
	"meetup-engagement-system/services"
)

func SetupProfileRoutes(r fiber.Router, d Deps) {
	r.Get("/me", func(c *fiber.Ctx) error {
		userID := middleware.UserID(c)
		prof, err := d.Profiles.GetProfile(c.UserContext(), userID, userID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(prof)
	})

	r.Patch("/me", func(c *fiber.Ctx) error {
		var upd services.ProfileUpdate
		if err := c.BodyParser(&upd); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
			})
		}
		prof, err := d.Profiles.UpdateProfile(c.UserContext(), middleware.UserID(c), upd)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(prof)
	})

	r.Get("/users/search", func(c *fiber.Ctx) error {
		users, err := d.Profiles.SearchUsers(c.UserContext(), c.Query("q"), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"users": users})
	})

	r.Get("/users/:id", func(c *fiber.Ctx) error {
		prof, err := d.Profiles.GetProfile(c.UserContext(), middleware.UserID(c), c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(prof)
	})
}
