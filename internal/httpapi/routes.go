package httpapi

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
)

// Register mounts the API routes on the given router. The router is expected
// to already carry the auth middleware.
func (h *Handler) Register(api fiber.Router) {
	api.Post("/imports", h.StartImport)
	api.Get("/imports/:id", h.GetImport)
	api.Post("/imports/:id/cancel", h.CancelImport)

	api.Get("/products", h.ListProducts)
	api.Delete("/products", h.DeleteProducts)
	api.Get("/products/:sku", h.GetProduct)

	api.Post("/webhooks", h.CreateWebhook)
	api.Get("/webhooks", h.ListWebhooks)
	api.Get("/webhooks/:id", h.GetWebhook)
	api.Put("/webhooks/:id", h.UpdateWebhook)
	api.Delete("/webhooks/:id", h.DeleteWebhook)
}

// ErrorHandler converts errors into the JSON error envelope. AppErrors keep
// their status and code; everything else becomes a 500.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return c.Status(appErr.Status).JSON(ErrorResponse{Error: appErr})
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(ErrorResponse{
			Error: &AppError{Code: "HTTP_ERROR", Status: fiberErr.Code, Message: fiberErr.Message},
		})
	}

	log.Printf("ERROR: %s %s: %v", c.Method(), c.Path(), err)
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
		Error: &AppError{Code: "INTERNAL", Status: 500, Message: "Internal server error"},
	})
}
