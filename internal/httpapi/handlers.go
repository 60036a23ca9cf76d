package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"product-importer/internal/catalog"
	"product-importer/internal/importer"
	"product-importer/internal/storage"
	"product-importer/internal/store"
	"product-importer/internal/webhook"
)

// Handler serves the import, product, and webhook endpoints.
type Handler struct {
	controller *importer.Controller
	products   *catalog.Store
	registry   *webhook.Registry
	files      storage.FileStorage
}

func NewHandler(controller *importer.Controller, products *catalog.Store, registry *webhook.Registry, files storage.FileStorage) *Handler {
	return &Handler{
		controller: controller,
		products:   products,
		registry:   registry,
		files:      files,
	}
}

// StartImport handles POST /api/imports. The CSV arrives as multipart field
// "file"; the response is 202 with the job id, and processing continues in
// the background.
func (h *Handler) StartImport(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return NewAppError("MISSING_FILE", 400, "Multipart field 'file' is required")
	}
	if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".csv") {
		return ValidationError("Only .csv files are accepted")
	}

	src, err := fileHeader.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	fileID := store.GenerateUUID()
	storagePath, err := h.files.Save(c.Context(), fileID, fileHeader.Filename, src)
	if err != nil {
		return fmt.Errorf("store upload: %w", err)
	}

	// The job outlives this request, so it reads from the stored copy
	// under its own context. The copy is removed once the job closes it.
	stored, err := h.files.Open(context.Background(), storagePath)
	if err != nil {
		return fmt.Errorf("reopen upload: %w", err)
	}

	job := h.controller.Start(context.Background(), &storedUpload{
		ReadCloser: stored,
		files:      h.files,
		path:       storagePath,
	})
	if user := GetUser(c); user != nil {
		log.Printf("INFO: import %s (%s) requested by %s", job.ID(), fileHeader.Filename, user.Email)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"data": job.Snapshot()})
}

// storedUpload removes the staged file once the import job is done with it.
type storedUpload struct {
	io.ReadCloser
	files storage.FileStorage
	path  string
}

func (u *storedUpload) Close() error {
	err := u.ReadCloser.Close()
	if derr := u.files.Delete(context.Background(), u.path); derr != nil {
		log.Printf("ERROR: remove processed upload %s: %v", u.path, derr)
	}
	return err
}

// GetImport handles GET /api/imports/:id.
func (h *Handler) GetImport(c *fiber.Ctx) error {
	id := c.Params("id")
	snap, ok := h.controller.Get(id)
	if !ok {
		return NotFoundError("import job", id)
	}
	return c.JSON(fiber.Map{"data": snap})
}

// CancelImport handles POST /api/imports/:id/cancel. Cancellation takes
// effect at the next batch boundary; already committed batches stay.
func (h *Handler) CancelImport(c *fiber.Ctx) error {
	id := c.Params("id")
	accepted, found := h.controller.Cancel(id)
	if !found {
		return NotFoundError("import job", id)
	}
	if !accepted {
		return ConflictError("Job already finished")
	}
	snap, _ := h.controller.Get(id)
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"data": snap})
}

// ListProducts handles GET /api/products.
func (h *Handler) ListProducts(c *fiber.Ctx) error {
	filter := catalog.ListFilter{
		SKU:     c.Query("sku"),
		Name:    c.Query("name"),
		Status:  c.Query("status"),
		Page:    c.QueryInt("page", 1),
		PerPage: c.QueryInt("per_page", 20),
	}
	if filter.Status != "" && !catalog.ValidStatus(filter.Status) {
		return ValidationError("status must be active or inactive")
	}

	records, total, err := h.products.List(c.Context(), filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": records,
		"meta": fiber.Map{"total": total, "page": filter.Page, "per_page": filter.PerPage},
	})
}

// GetProduct handles GET /api/products/:sku.
func (h *Handler) GetProduct(c *fiber.Ctx) error {
	sku := c.Params("sku")
	rec, err := h.products.Get(c.Context(), sku)
	if errors.Is(err, store.ErrNotFound) {
		return NotFoundError("product", sku)
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": rec})
}

// DeleteProducts handles DELETE /api/products. It empties the catalog.
func (h *Handler) DeleteProducts(c *fiber.Ctx) error {
	n, err := h.products.DeleteAll(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"deleted": n}})
}

// CreateWebhook handles POST /api/webhooks.
func (h *Handler) CreateWebhook(c *fiber.Ctx) error {
	var in webhook.EndpointInput
	if err := c.BodyParser(&in); err != nil {
		return NewAppError("INVALID_PAYLOAD", 400, "Invalid request body")
	}
	ep, err := h.registry.Create(c.Context(), in)
	if err != nil {
		if errors.Is(err, store.ErrUniqueViolation) {
			return ConflictError("Webhook already exists")
		}
		return ValidationError(err.Error())
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": ep})
}

// ListWebhooks handles GET /api/webhooks.
func (h *Handler) ListWebhooks(c *fiber.Ctx) error {
	endpoints, err := h.registry.List(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": endpoints})
}

// GetWebhook handles GET /api/webhooks/:id.
func (h *Handler) GetWebhook(c *fiber.Ctx) error {
	id := c.Params("id")
	ep, err := h.registry.Get(c.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return NotFoundError("webhook", id)
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ep})
}

// UpdateWebhook handles PUT /api/webhooks/:id.
func (h *Handler) UpdateWebhook(c *fiber.Ctx) error {
	id := c.Params("id")
	var in webhook.EndpointInput
	if err := c.BodyParser(&in); err != nil {
		return NewAppError("INVALID_PAYLOAD", 400, "Invalid request body")
	}
	ep, err := h.registry.Update(c.Context(), id, in)
	if errors.Is(err, store.ErrNotFound) {
		return NotFoundError("webhook", id)
	}
	if err != nil {
		return ValidationError(err.Error())
	}
	return c.JSON(fiber.Map{"data": ep})
}

// DeleteWebhook handles DELETE /api/webhooks/:id.
func (h *Handler) DeleteWebhook(c *fiber.Ctx) error {
	id := c.Params("id")
	err := h.registry.Delete(c.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return NotFoundError("webhook", id)
	}
	if err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
