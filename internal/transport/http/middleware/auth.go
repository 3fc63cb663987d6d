package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/cruxpanel/backend/internal/config"
	"github.com/cruxpanel/backend/internal/core/ports"
)

func AdminAuth(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		apiKey := cfg.Auth.AdminAPIKey
		if apiKey == "" {
			return c.Next()
		}

		headerToken := c.Get("X-Admin-Token")
		if headerToken == "" {
			auth := c.Get("Authorization")
			const prefix = "Bearer "
			if len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
				headerToken = auth[len(prefix):]
			}
		}

		if headerToken != apiKey {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "unauthorized",
			})
		}

		return c.Next()
	}
}

// StreamAuth guards the websocket endpoints. Browsers cannot set headers
// on a websocket handshake, so the capability token travels as a query
// parameter.
func StreamAuth(validator ports.TokenValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Query("token")
		if err := validator.Validate(token, time.Now()); err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "unauthorized",
			})
		}
		return c.Next()
	}
}
