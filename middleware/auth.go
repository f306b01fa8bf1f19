// middleware/auth.go
package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"meetup-engagement-system/services"
)

const (
	LocalUserID = "user_id"
	LocalEmail  = "email"
)

// TokenValidator is satisfied by services.IdentityVerifier.
type TokenValidator interface {
	ValidateToken(raw string) (*services.Identity, error)
}

// UserContextMiddleware verifies the identity gateway's bearer token and attaches the
// principal to the request. Applied to everything under /s/.
func UserContextMiddleware(v TokenValidator, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing bearer token",
			})
		}
		return authenticate(c, v, token, log)
	}
}

func authenticate(c *fiber.Ctx, v TokenValidator, token string, log *zap.Logger) error {
	id, err := v.ValidateToken(token)
	if err != nil {
		log.Debug("🚫 token rejected", zap.String("path", c.Path()), zap.Error(err))
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}
	c.Locals(LocalUserID, id.UserID)
	c.Locals(LocalEmail, id.Email)
	return c.Next()
}

// UserID returns the authenticated user id, or "" on public routes.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalUserID).(string)
	return id
}

// Email returns the authenticated user's email, if the token carried one.
func Email(c *fiber.Ctx) string {
	email, _ := c.Locals(LocalEmail).(string)
	return email
}
