package controller

import (
	"errors"
	"math"
	"strconv"

	"leadpilot/models"
	"leadpilot/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type LeadController struct {
	DB        *gorm.DB
	Logger    *logrus.Logger
	Clock     utils.Clock
	CallQueue *utils.CallQueueBuilder
}

func NewLeadController(db *gorm.DB, logger *logrus.Logger, clock utils.Clock, callQueue *utils.CallQueueBuilder) *LeadController {
	return &LeadController{
		DB:        db,
		Logger:    logger,
		Clock:     clock,
		CallQueue: callQueue,
	}
}

// CreateLead registers a new lead, typically from the scraper or a manual entry
func (lc *LeadController) CreateLead(c *fiber.Ctx) error {
	var input struct {
		OwnerName           string   `json:"owner_name" validate:"required"`
		OwnerNameEN         string   `json:"owner_name_en"`
		Phone               string   `json:"phone"`
		Email               string   `json:"email" validate:"omitempty,email"`
		MessengerLink       string   `json:"messenger_link"`
		PropertyType        string   `json:"property_type"`
		Location            string   `json:"location"`
		PropertyValue       float64  `json:"property_value" validate:"gte=0"`
		CommissionPotential float64  `json:"commission_potential" validate:"gte=0"`
		Status              string   `json:"status" validate:"omitempty,oneof=new contacted interested not_interested converted"`
		LeadScore           int      `json:"lead_score" validate:"gte=0,lte=100"`
		Urgency             string   `json:"urgency" validate:"omitempty,oneof=urgent high medium low"`
		Source              string   `json:"source"`
		AutomationStage     *string  `json:"automation_stage"`
		BestCallTime        string   `json:"best_call_time"`
		Tags                []string `json:"tags"`
		Notes               string   `json:"notes"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	now := lc.Clock.Now()
	lead := models.Lead{
		OwnerName:           input.OwnerName,
		OwnerNameEN:         input.OwnerNameEN,
		Phone:               input.Phone,
		Email:               input.Email,
		MessengerLink:       input.MessengerLink,
		PropertyType:        input.PropertyType,
		Location:            input.Location,
		PropertyValue:       input.PropertyValue,
		CommissionPotential: input.CommissionPotential,
		Status:              input.Status,
		LeadScore:           input.LeadScore,
		Urgency:             input.Urgency,
		Source:              input.Source,
		AutomationStage:     input.AutomationStage,
		BestCallTime:        input.BestCallTime,
		Tags:                input.Tags,
		Notes:               input.Notes,
		DateScraped:         &now,
	}
	if lead.Status == "" {
		lead.Status = "new"
	}
	if lead.Urgency == "" {
		lead.Urgency = "medium"
	}

	if err := lc.DB.Create(&lead).Error; err != nil {
		lc.Logger.WithError(err).Error("Failed to create lead")
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create lead", err)
	}

	lc.Logger.WithFields(logrus.Fields{
		"lead_id": lead.ID,
		"source":  lead.Source,
	}).Info("Lead created")
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(lead))
}

// GetLeads lists leads newest first, optionally filtered by status and source
func (lc *LeadController) GetLeads(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}

	query := lc.DB.Model(&models.Lead{})
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if source := c.Query("source"); source != "" {
		query = query.Where("source = ?", source)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count leads", err)
	}

	var leads []models.Lead
	if err := query.
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&leads).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch leads", err)
	}

	return c.JSON(utils.PaginatedResponse{
		Data:  leads,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// GetLeadStats returns dashboard counters for the lead pipeline
func (lc *LeadController) GetLeadStats(c *fiber.Ctx) error {
	type statusCount struct {
		Status string `json:"status"`
		Count  int64  `json:"count"`
	}

	var byStatus []statusCount
	if err := lc.DB.Model(&models.Lead{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&byStatus).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch lead stats", err)
	}

	var total int64
	statusMap := make(map[string]int64, len(byStatus))
	for _, sc := range byStatus {
		statusMap[sc.Status] = sc.Count
		total += sc.Count
	}

	var totalPipeline *float64
	if err := lc.DB.Model(&models.Lead{}).
		Select("SUM(commission_potential)").
		Scan(&totalPipeline).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch lead stats", err)
	}
	pipeline := 0.0
	if totalPipeline != nil {
		pipeline = *totalPipeline
	}

	var highScore int64
	if err := lc.DB.Model(&models.Lead{}).
		Where("lead_score >= ?", lc.CallQueue.MinScore).
		Count(&highScore).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch lead stats", err)
	}

	conversionRate := 0.0
	if total > 0 {
		conversionRate = math.Round(float64(statusMap["converted"])/float64(total)*1000) / 10
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"total_leads":          total,
		"by_status":            statusMap,
		"high_score_leads":     highScore,
		"commission_potential": pipeline,
		"conversion_rate":      conversionRate,
	}))
}

// GetCallQueue returns the ranked shortlist of leads worth calling now
func (lc *LeadController) GetCallQueue(c *fiber.Ctx) error {
	queue, err := lc.CallQueue.Build()
	if err != nil {
		lc.Logger.WithError(err).Error("Failed to build call queue")
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to build call queue", err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{
		"count": len(queue),
		"queue": queue,
	}))
}

// GetLead returns a single lead with its interaction history
func (lc *LeadController) GetLead(c *fiber.Ctx) error {
	leadID := c.Params("id")

	var lead models.Lead
	if err := lc.DB.Preload("Interactions", func(db *gorm.DB) *gorm.DB {
		return db.Order("timestamp DESC")
	}).First(&lead, "id = ?", leadID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch lead", err)
	}

	return c.JSON(utils.SuccessResponse(lead))
}

// UpdateLeadStatus changes a lead's status and records the change as an
// interaction in its history. Score and urgency can be adjusted in the same
// call.
func (lc *LeadController) UpdateLeadStatus(c *fiber.Ctx) error {
	leadID := c.Params("id")

	var input struct {
		Status    string `json:"status" validate:"required,oneof=new contacted interested not_interested converted"`
		LeadScore *int   `json:"lead_score" validate:"omitempty,gte=0,lte=100"`
		Urgency   string `json:"urgency" validate:"omitempty,oneof=urgent high medium low"`
		Notes     string `json:"notes"`
		Agent     string `json:"agent"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var lead models.Lead
	if err := lc.DB.First(&lead, "id = ?", leadID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch lead", err)
	}

	now := lc.Clock.Now()
	updates := map[string]interface{}{
		"status":       input.Status,
		"last_contact": now,
	}
	if input.LeadScore != nil {
		updates["lead_score"] = *input.LeadScore
	}
	if input.Urgency != "" {
		updates["urgency"] = input.Urgency
	}

	interaction := models.Interaction{
		LeadID:    lead.ID,
		Type:      "status_update",
		Direction: "outbound",
		Outcome:   input.Status,
		Notes:     input.Notes,
		Timestamp: now,
	}
	if input.Agent != "" {
		interaction.Agent = input.Agent
	}

	tx := lc.DB.Begin()
	if err := tx.Model(&lead).Updates(updates).Error; err != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update lead", err)
	}
	if err := tx.Create(&interaction).Error; err != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to record status change", err)
	}
	if err := tx.Commit().Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update lead", err)
	}

	lc.Logger.WithFields(logrus.Fields{
		"lead_id": lead.ID,
		"status":  input.Status,
	}).Info("Lead status updated")

	if err := lc.DB.First(&lead, "id = ?", leadID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch lead", err)
	}
	return c.JSON(utils.SuccessResponse(lead))
}

// CreateInteraction appends a manual interaction to a lead's history
func (lc *LeadController) CreateInteraction(c *fiber.Ctx) error {
	leadID := c.Params("id")

	var input struct {
		Type      string `json:"type" validate:"required,oneof=call email message meeting status_update"`
		Direction string `json:"direction" validate:"omitempty,oneof=inbound outbound"`
		Outcome   string `json:"outcome"`
		Notes     string `json:"notes"`
		Agent     string `json:"agent"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var lead models.Lead
	if err := lc.DB.First(&lead, "id = ?", leadID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch lead", err)
	}

	now := lc.Clock.Now()
	interaction := models.Interaction{
		LeadID:    lead.ID,
		Type:      input.Type,
		Direction: input.Direction,
		Outcome:   input.Outcome,
		Notes:     input.Notes,
		Timestamp: now,
	}
	if interaction.Direction == "" {
		interaction.Direction = "outbound"
	}
	if input.Agent != "" {
		interaction.Agent = input.Agent
	}

	if err := lc.DB.Create(&interaction).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to record interaction", err)
	}

	// A fresh touch point bumps the contact timestamp on the lead itself
	if err := lc.DB.Model(&lead).Updates(map[string]interface{}{
		"last_contact": now,
	}).Error; err != nil {
		lc.Logger.WithError(err).WithField("lead_id", lead.ID).
			Warn("Failed to update last contact timestamp")
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(interaction))
}

// GetInteractions lists a lead's interaction history, newest first
func (lc *LeadController) GetInteractions(c *fiber.Ctx) error {
	leadID := c.Params("id")

	var lead models.Lead
	if err := lc.DB.First(&lead, "id = ?", leadID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch lead", err)
	}

	var interactions []models.Interaction
	if err := lc.DB.
		Where("lead_id = ?", leadID).
		Order("timestamp DESC").
		Find(&interactions).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch interactions", err)
	}

	return c.JSON(utils.SuccessResponse(interactions))
}

// DeleteLead removes a lead together with its interaction history and any
// contracts that reference it
func (lc *LeadController) DeleteLead(c *fiber.Ctx) error {
	leadID := c.Params("id")

	var lead models.Lead
	if err := lc.DB.First(&lead, "id = ?", leadID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch lead", err)
	}

	tx := lc.DB.Begin()
	if err := tx.Where("lead_id = ?", leadID).Delete(&models.Interaction{}).Error; err != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete lead", err)
	}
	if err := tx.Where("lead_id = ?", leadID).Delete(&models.Contract{}).Error; err != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete lead", err)
	}
	if err := tx.Delete(&lead).Error; err != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete lead", err)
	}
	if err := tx.Commit().Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete lead", err)
	}

	lc.Logger.WithField("lead_id", leadID).Info("Lead deleted")
	return c.JSON(utils.SuccessResponse(fiber.Map{"deleted": leadID}))
}
