package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"leadnest/config"
	"leadnest/pipeline"
	"leadnest/routes"
	"leadnest/services"
	"leadnest/utils"
	"leadnest/worker"
)

func main() {
	// Initialize logger
	logger := log.New(os.Stdout, "LEADNEST: ", log.Ldate|log.Ltime|log.Lshortfile)

	// Load configuration
	if err := config.LoadConfig(); err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize Sentry error capture
	if err := utils.InitSentry(); err != nil {
		logger.Printf("⚠️ Sentry initialization failed: %v", err)
	}

	// Initialize database connection (migrates and seeds lookups)
	if err := config.ConnectDB(); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Create Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit: 32 * 1024 * 1024, // CSV uploads
	})

	// Add CORS middleware
	app.Use(cors.New())

	// Wire the ingestion pipeline
	registry := pipeline.NewRegistry()
	persister := pipeline.NewPersister(config.DB, log.New(os.Stdout, "PERSIST: ", log.LstdFlags))
	scorer := pipeline.NewScorer(config.DB, config.AppConfig.Scoring, log.New(os.Stdout, "SCORER: ", log.LstdFlags))
	orchestrator := pipeline.NewOrchestrator(
		config.DB,
		registry,
		persister,
		scorer,
		config.AppConfig.Ingest,
		log.New(os.Stdout, "INGEST: ", log.LstdFlags),
	)

	// Tracker state machine with deal notifications
	tracker := services.NewTrackerService(
		config.DB,
		utils.NewNotifier(),
		log.New(os.Stdout, "TRACKER: ", log.LstdFlags),
	)

	// Start the session reaper
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reaper := worker.NewSessionReaper(
		registry,
		time.Duration(config.AppConfig.Ingest.SessionTTLMin)*time.Minute,
		log.New(os.Stdout, "REAPER: ", log.LstdFlags),
	)
	go reaper.Start(ctx)

	// Setup routes
	routes.SetupAuthRoutes(app, config.DB)
	routes.SetupAPIRoutes(app, config.DB, registry, orchestrator, tracker)

	// Health check endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "running",
			"version": "1.0.0",
		})
	})

	// Start server
	logger.Printf("🚀 Server starting on port %s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
