package httpapi

import "github.com/gofiber/fiber/v2"

// UserContext identifies the authenticated caller on a request. The auth
// middleware sets it; handlers read it through GetUser.
type UserContext struct {
	ID    string
	Email string
}

// SetUser attaches the authenticated user to the request.
func SetUser(c *fiber.Ctx, u *UserContext) {
	c.Locals("user", u)
}

// GetUser extracts the UserContext from a Fiber context, nil when the
// request is unauthenticated.
func GetUser(c *fiber.Ctx) *UserContext {
	user, _ := c.Locals("user").(*UserContext)
	return user
}
