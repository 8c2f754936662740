package routes

import (
	"log"
	"os"

	controller "leadnest/controllers"
	"leadnest/middleware"
	"leadnest/pipeline"
	"leadnest/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"gorm.io/gorm"
)

func SetupAuthRoutes(app *fiber.App, db *gorm.DB) {
	authLogger := log.New(os.Stdout, "AUTH: ", log.Ldate|log.Ltime|log.Lshortfile)

	// Auth routes group with logging middleware
	auth := app.Group("/auth", logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Public auth endpoints (no authentication required)
	auth.Post("/register", controller.Register)
	auth.Post("/login", controller.Login)

	// Protected auth endpoints (require valid JWT)
	protectedAuth := auth.Group("", middleware.Protected())
	protectedAuth.Get("/me", controller.GetCurrentUser)

	authLogger.Println("Authentication routes initialized successfully")
}

func SetupAPIRoutes(app *fiber.App, db *gorm.DB, registry *pipeline.Registry, orchestrator *pipeline.Orchestrator, tracker *services.TrackerService) {
	// Initialize controllers with their respective loggers
	uploadController := controller.NewUploadController(registry, orchestrator, log.New(os.Stdout, "UPLOAD: ", log.LstdFlags))
	leadController := controller.NewLeadController(db, log.New(os.Stdout, "LEAD: ", log.LstdFlags))
	campaignController := controller.NewCampaignController(db, log.New(os.Stdout, "CAMPAIGN: ", log.LstdFlags))
	trackerController := controller.NewTrackerController(db, tracker, log.New(os.Stdout, "TRACKER: ", log.LstdFlags))
	dashboardController := controller.NewDashboardController(db, log.New(os.Stdout, "DASHBOARD: ", log.LstdFlags))

	protected := app.Group("", middleware.Protected(), logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Lead ingestion
	leads := protected.Group("/leads")
	leads.Post("/upload-csv", middleware.UploadRateLimiter(), uploadController.UploadCSV)
	leads.Get("/upload-status/:sessionId", uploadController.StreamUploadStatus)
	leads.Get("/upload-sessions/:sessionId", uploadController.GetUploadStatus)

	// WebSocket progress mirror
	leads.Use("/upload-progress", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	leads.Get("/upload-progress", websocket.New(uploadController.HandleUploadProgressWS))

	// Lead CRUD
	leads.Post("/", leadController.CreateLead)
	leads.Get("/", leadController.GetLeads)
	leads.Get("/export", leadController.ExportLeads)
	leads.Get("/:id", leadController.GetLead)
	leads.Put("/:id", leadController.UpdateLead)
	leads.Delete("/:id", leadController.DeleteLead)

	// Campaigns
	campaigns := protected.Group("/campaigns")
	campaigns.Post("/", campaignController.CreateCampaign)
	campaigns.Get("/", campaignController.GetCampaigns)
	campaigns.Get("/:id", campaignController.GetCampaign)
	campaigns.Put("/:id", campaignController.UpdateCampaign)
	campaigns.Delete("/:id", campaignController.DeleteCampaign)
	campaigns.Post("/:id/sales", campaignController.AssignSales)
	campaigns.Post("/:id/leads", campaignController.AddLeadToCampaign)
	campaigns.Get("/:id/leads", campaignController.GetCampaignLeads)

	// Tracker state machine
	trackerGroup := protected.Group("/leads-tracker")
	trackerGroup.Patch("/:leadCampaignId/status", trackerController.ChangeStatus)
	trackerGroup.Get("/:leadCampaignId/history", trackerController.GetHistory)
	trackerGroup.Get("/:leadCampaignId/activities", trackerController.GetActivities)

	protected.Post("/outbound-activities", trackerController.LogActivity)
	protected.Delete("/history/:historyId", trackerController.RevertHistory)

	// Dashboard
	protected.Get("/dashboard/stats", dashboardController.GetStats)
}
