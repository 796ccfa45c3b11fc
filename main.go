package main

import (
	"context"
	"time"

	"leadpilot/config"
	"leadpilot/middleware"
	"leadpilot/routes"
	"leadpilot/utils"
	"leadpilot/worker"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// Load configuration
	if err := config.LoadConfig(); err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize database connection
	if err := config.ConnectDB(); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Create Fiber app
	app := fiber.New()

	// Add CORS middleware
	app.Use(middleware.CORS())

	clock := utils.NewClock()
	sender := utils.NewLogOutreachSender(logger)
	dispatcher := utils.NewSequenceDispatcher(config.DB, logger, clock, sender)

	// Start the automation worker and the midnight counter reset
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interval := time.Duration(config.AppConfig.DispatchIntervalMinutes) * time.Minute
	automationWorker := worker.NewAutomationWorker(config.DB, dispatcher, logger, interval)
	go automationWorker.Start(ctx)
	go dispatcher.ResetDailyCounters()

	// Setup routes
	routes.SetupRoutes(app, config.DB, logger, dispatcher)

	// Health check endpoints
	health := func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "running",
			"version": "1.0.0",
		})
	}
	app.Get("/", health)
	app.Get("/health", health)

	// Start server
	logger.Infof("🚀 Server starting on port %s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
