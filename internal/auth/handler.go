package auth

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"product-importer/internal/httpapi"
	"product-importer/internal/store"
)

// Handler serves authentication endpoints.
type Handler struct {
	store     *store.Store
	jwtSecret string
}

func NewHandler(s *store.Store, jwtSecret string) *Handler {
	return &Handler{store: s, jwtSecret: jwtSecret}
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(c *fiber.Ctx) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&body); err != nil {
		return httpapi.NewAppError("INVALID_PAYLOAD", 400, "Invalid request body")
	}
	if body.Email == "" || body.Password == "" {
		return httpapi.UnauthorizedError("Email and password are required")
	}

	user, err := h.findUserByEmail(c.Context(), body.Email)
	if err != nil {
		return httpapi.UnauthorizedError("Invalid email or password")
	}

	active := false
	switch v := user["active"].(type) {
	case bool:
		active = v
	case int64:
		active = v != 0
	}
	if !active {
		return httpapi.UnauthorizedError("Account is disabled")
	}

	passwordHash, _ := user["password_hash"].(string)
	if !CheckPassword(body.Password, passwordHash) {
		return httpapi.UnauthorizedError("Invalid email or password")
	}

	userID, _ := user["id"].(string)
	token, err := GenerateAccessToken(userID, body.Email, h.jwtSecret)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"data": fiber.Map{"access_token": token}})
}

func (h *Handler) findUserByEmail(ctx context.Context, email string) (map[string]any, error) {
	pb := h.store.Dialect.NewParamBuilder()
	return store.QueryRow(ctx, h.store.DB,
		fmt.Sprintf(`SELECT id, email, password_hash, active FROM _users WHERE lower(email) = lower(%s)`,
			pb.Add(email)),
		pb.Params()...)
}
