package routes

import (
	"leadpilot/config"
	controller "leadpilot/controllers"
	"leadpilot/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SetupRoutes wires the API surface under /api/v1
func SetupRoutes(app *fiber.App, db *gorm.DB, appLogger *logrus.Logger, dispatcher *utils.SequenceDispatcher) {
	clock := utils.NewClock()

	callQueue := utils.NewCallQueueBuilder(
		db,
		clock,
		config.AppConfig.CallQueueMinScore,
		config.AppConfig.CallQueuePageSize,
	)
	ledger := utils.NewContractLedger(db, clock)

	leadController := controller.NewLeadController(db, appLogger, clock, callQueue)
	automationController := controller.NewAutomationController(
		db, appLogger, clock, dispatcher, config.AppConfig.ResumeDelayHours,
	)
	contractController := controller.NewContractController(
		db, appLogger, ledger, config.AppConfig.DefaultCommissionRate,
	)

	api := app.Group("/api/v1", logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Lead routes
	leads := api.Group("/leads")
	leads.Post("/", leadController.CreateLead)
	leads.Get("/", leadController.GetLeads)
	leads.Get("/stats", leadController.GetLeadStats)
	leads.Get("/call-queue", leadController.GetCallQueue)
	leads.Get("/:id", leadController.GetLead)
	leads.Put("/:id/status", leadController.UpdateLeadStatus)
	leads.Post("/:id/interactions", leadController.CreateInteraction)
	leads.Get("/:id/interactions", leadController.GetInteractions)
	leads.Delete("/:id", leadController.DeleteLead)

	// Automation routes
	automation := api.Group("/automation")
	automation.Post("/sequences", automationController.CreateSequence)
	automation.Get("/sequences", automationController.GetSequences)
	automation.Get("/stats", automationController.GetAutomationStats)
	automation.Get("/performance", automationController.GetAutomationPerformance)
	automation.Get("/sequences/:id", automationController.GetSequence)
	automation.Put("/sequences/:id/status", automationController.UpdateSequenceStatus)
	automation.Post("/sequences/:id/pause", automationController.PauseSequence)
	automation.Post("/sequences/:id/resume", automationController.ResumeSequence)
	automation.Post("/sequences/:id/run", automationController.RunSequence)
	automation.Delete("/sequences/:id", automationController.DeleteSequence)

	// Contract routes
	contracts := api.Group("/contracts")
	contracts.Post("/", contractController.CreateContract)
	contracts.Get("/", contractController.GetContracts)
	contracts.Get("/stats", contractController.GetContractStats)
	contracts.Get("/:id", contractController.GetContract)
	contracts.Put("/:id/status", contractController.UpdateContractStatus)
	contracts.Put("/:id/commission/paid", contractController.MarkCommissionPaid)
	contracts.Put("/:id/metrics", contractController.UpdateContractMetrics)
	contracts.Delete("/:id", contractController.DeleteContract)

	appLogger.Info("API routes initialized successfully")
}
