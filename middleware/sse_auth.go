// middleware/sse_auth.go
package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// SSEAuthMiddleware authenticates EventSource requests, which cannot set headers, from the
// `token` query parameter. A bearer header is accepted too.
//
// Usage:
//
//	app.Get("/s/notifications/stream", middleware.SSEAuthMiddleware(verifier, log), streamHandler)
func SSEAuthMiddleware(v TokenValidator, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := strings.TrimSpace(c.Query("token"))
		if token == "" {
			token, _ = strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
		}
		if strings.TrimSpace(token) == "" {
			log.Debug("[SSEAuth] ❌ missing token", zap.String("ip", c.IP()))
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Missing token in query",
			})
		}
		return authenticate(c, v, token, log)
	}
}
