// handlers/gamification.go
package handlers

import (
	"github.com/gofiber/fiber/v2"

	"meetup-engagement-system/middleware"
	"meetup-engagement-system/services"
)

func SetupLeaderboardRoutes(app *fiber.App, d Deps) {
	app.Get("/leaderboard", func(c *fiber.Ctx) error {
		scope, err := services.ParseScope(c.Query("scope"))
		if err != nil {
			return respondError(c, err)
		}
		entries, err := d.Leaderboard.Rank(c.UserContext(), scope, d.now())
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{
			"scope":   scope,
			"entries": entries,
		})
	})
}

func SetupBadgeRoutes(r fiber.Router, d Deps) {
	r.Get("/badges", func(c *fiber.Ctx) error {
		badges, err := d.Badges.ListBadges(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"badges": badges})
	})

	r.Get("/me/stats", func(c *fiber.Ctx) error {
		stats, err := d.Gamification.GetStats(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(stats)
	})
}
