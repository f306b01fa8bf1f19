package handlers

import (
	"github.com/gofiber/fiber/v2"

	"meetup-engagement-system/middleware"
)

func SetupFriendRoutes(r fiber.Router, d Deps) {
	r.Get("/friends", func(c *fiber.Ctx) error {
		friends, err := d.Friendships.ListFriends(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"friends": friends})
	})

	r.Post("/friends/requests", func(c *fiber.Ctx) error {
		var req struct {
			RecipientID string `json:"recipient_id"`
		}
		if err := c.BodyParser(&req); err != nil || req.RecipientID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "recipient_id is required",
			})
		}
		id, err := d.Friendships.SendRequest(c.UserContext(), middleware.UserID(c), req.RecipientID)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"id":     id,
			"status": "pending",
		})
	})

	r.Get("/friends/requests/incoming", func(c *fiber.Ctx) error {
		reqs, err := d.Friendships.ListIncomingRequests(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"requests": reqs})
	})

	r.Get("/friends/requests/outgoing", func(c *fiber.Ctx) error {
		reqs, err := d.Friendships.ListOutgoingRequests(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"requests": reqs})
	})

	r.Post("/friends/requests/:id/accept", func(c *fiber.Ctx) error {
		f, err := d.Friendships.AcceptRequest(c.UserContext(), c.Params("id"), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(f)
	})

	// Rejecting, cancelling and unfriending are all a delete.
	r.Delete("/friends/:id", func(c *fiber.Ctx) error {
		if err := d.Friendships.RemoveFriendship(c.UserContext(), c.Params("id"), middleware.UserID(c)); err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}
