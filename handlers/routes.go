package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"meetup-engagement-system/middleware"
	"meetup-engagement-system/services"
)

// Deps bundles everything the HTTP layer calls into.
type Deps struct {
	Profiles      *services.ProfileService
	Friendships   *services.FriendshipService
	Events        *services.EventService
	Registrations *services.RegistrationService
	Gamification  *services.GamificationService
	Badges        *services.BadgeService
	Leaderboard   *services.LeaderboardService
	Notifier      services.Broker
	Verifier      middleware.TokenValidator
	AdminToken    string
	Location      *time.Location
	SSEKeepalive  time.Duration
	Now           func() time.Time
	Log           *zap.Logger
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// SetupRoutes mounts the public, member (/s) and administrative (/admin) surfaces.
func SetupRoutes(app *fiber.App, d Deps) {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}

	// 🔓 Public
	SetupEventRoutes(app, d)
	SetupLeaderboardRoutes(app, d)

	// 🔐 Notifications authenticate from the query string, so they are mounted before /s
	app.Get("/s/notifications/stream",
		middleware.SSEAuthMiddleware(d.Verifier, d.Log),
		ensureProfile(d.Profiles),
		StreamNotifications(d))

	// 🔐 Members
	secured := app.Group("/s", middleware.UserContextMiddleware(d.Verifier, d.Log), ensureProfile(d.Profiles))
	SetupProfileRoutes(secured, d)
	SetupFriendRoutes(secured, d)
	SetupRegistrationRoutes(secured, d)
	SetupBadgeRoutes(secured, d)

	// 🛠️ Service-to-service
	admin := app.Group("/admin", middleware.ServiceTokenMiddleware(d.AdminToken, d.Log))
	SetupAdminRoutes(admin, d)
}

// ensureProfile creates the caller's profile row on first contact.
func ensureProfile(profiles *services.ProfileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := profiles.EnsureProfile(c.UserContext(), middleware.UserID(c), middleware.Email(c)); err != nil {
			return respondError(c, err)
		}
		return c.Next()
	}
}
