// middleware/gateway.go
package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ServiceTokenMiddleware guards administrative routes with the shared X-Service-Token.
// An empty expected token disables those routes entirely.
func ServiceTokenMiddleware(expectedToken string, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if expectedToken == "" {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "administrative routes are disabled",
			})
		}
		token := c.Get("X-Service-Token")
		if token == "" {
			log.Warn("🚫 [SERVICE_AUTH] missing X-Service-Token", zap.String("path", c.Path()))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "service token missing",
			})
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
			log.Warn("❌ [SERVICE_AUTH] invalid X-Service-Token", zap.String("path", c.Path()))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid service token",
			})
		}
		return c.Next()
	}
}
