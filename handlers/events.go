package handlers

import (
	"github.com/gofiber/fiber/v2"

	"meetup-engagement-system/middleware"
	"meetup-engagement-system/models"
	"meetup-engagement-system/services"
)

func SetupEventRoutes(app *fiber.App, d Deps) {
	app.Get("/events", func(c *fiber.Ctx) error {
		today := models.CivilDate(d.now(), d.Location)
		events, err := d.Events.ListUpcoming(c.UserContext(), today, c.QueryInt("limit", 0))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"events": events})
	})

	app.Get("/events/:id", func(c *fiber.Ctx) error {
		e, err := d.Events.GetEvent(c.UserContext(), c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(e)
	})
}

func SetupRegistrationRoutes(r fiber.Router, d Deps) {
	r.Post("/events/:id/registrations", func(c *fiber.Ctx) error {
		var req struct {
			LunchOption bool `json:"lunch_option"`
		}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "invalid JSON",
				})
			}
		}
		reg, err := d.Registrations.Register(c.UserContext(), middleware.UserID(c), c.Params("id"), req.LunchOption)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(reg)
	})

	r.Delete("/registrations/:id", func(c *fiber.Ctx) error {
		reg, err := d.Registrations.Cancel(c.UserContext(), c.Params("id"), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(reg)
	})

	r.Get("/registrations", func(c *fiber.Ctx) error {
		regs, err := d.Registrations.ListUserRegistrations(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"registrations": regs})
	})

	r.Get("/events/:id/attendees", func(c *fiber.Ctx) error {
		attendees, err := d.Registrations.ListAttendees(c.UserContext(), c.Params("id"), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"attendees": attendees})
	})
}

func SetupAdminRoutes(r fiber.Router, d Deps) {
	r.Post("/events", func(c *fiber.Ctx) error {
		var in services.EventInput
		if err := c.BodyParser(&in); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
			})
		}
		e, err := d.Events.CreateEvent(c.UserContext(), in)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(e)
	})

	r.Post("/badges/reconcile", func(c *fiber.Ctx) error {
		n, err := d.Badges.ReconcileBadges(c.UserContext())
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"awarded": n})
	})

	r.Post("/attendance/credit", func(c *fiber.Ctx) error {
		n, err := d.Gamification.CreditDueAttendance(c.UserContext(), models.CivilDate(d.now(), d.Location))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"credited": n})
	})
}
