package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"product-importer/internal/auth"
	"product-importer/internal/catalog"
	"product-importer/internal/config"
	"product-importer/internal/httpapi"
	"product-importer/internal/importer"
	"product-importer/internal/storage"
	"product-importer/internal/store"
	"product-importer/internal/webhook"
)

func main() {
	ctx := context.Background()

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Printf("Config loaded (port: %d, db: %s:%d/%s)", cfg.Server.Port, cfg.Database.Host, cfg.Database.Port, cfg.Database.Name)

	// 2. Connect to database
	db, err := store.New(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	// 3. Bootstrap tables and admin user
	if err := db.Bootstrap(ctx, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
		log.Fatalf("Failed to bootstrap tables: %v", err)
	}
	log.Println("Tables ready")

	// 4. Upload storage
	files := storage.NewLocalStorage(cfg.Storage.LocalPath)

	// 5. Webhook registry, delivery log, dispatcher
	registry := webhook.NewRegistry(db)
	deliveryLog := webhook.NewStoreLogger(db, cfg.Webhook.LogRetentionDays)
	deliveryLog.StartCleanup()
	defer deliveryLog.Stop()

	dispatcher := webhook.NewDispatcher(cfg.Webhook, registry, deliveryLog)
	dispatcher.Start()
	defer dispatcher.Stop()

	// 6. Catalog and import pipeline
	products := catalog.NewStore(db)
	jobs := importer.NewJobStore(cfg.Import.JobRetention)
	jobs.StartEviction()
	defer jobs.Stop()
	controller := importer.NewController(jobs, products, dispatcher, cfg.Import)

	// 7. Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: httpapi.ErrorHandler,
		BodyLimit:    int(cfg.Storage.MaxFileSize),
	})
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))
	app.Use(logger.New(logger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
	}))

	// 8. Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// 9. Auth routes (before middleware, no auth required)
	authHandler := auth.NewHandler(db, cfg.Auth.JWTSecret)
	app.Post("/api/auth/login", authHandler.Login)

	// 10. Protected API routes
	api := app.Group("/api", auth.Middleware(cfg.Auth.JWTSecret))
	handler := httpapi.NewHandler(controller, products, registry, files)
	handler.Register(api)

	// 11. Start server, shut down on SIGINT/SIGTERM
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Println("Shutting down")
		if err := app.Shutdown(); err != nil {
			log.Printf("ERROR: shutdown: %v", err)
		}
	}()

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Starting server on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatal(err)
	}
}
