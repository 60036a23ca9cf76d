package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"product-importer/internal/httpapi"
)

// Middleware returns a Fiber middleware that validates JWT tokens and sets
// the UserContext on the request.
func Middleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		if header == "" {
			return httpapi.UnauthorizedError("Missing auth token")
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return httpapi.UnauthorizedError("Invalid auth header format")
		}

		claims, err := ParseAccessToken(parts[1], secret)
		if err != nil {
			return httpapi.UnauthorizedError("Invalid or expired token")
		}

		httpapi.SetUser(c, &httpapi.UserContext{ID: claims.Subject, Email: claims.Email})

		return c.Next()
	}
}
