package controller

import (
	"errors"
	"math"
	"time"

	"leadpilot/models"
	"leadpilot/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type AutomationController struct {
	DB               *gorm.DB
	Logger           *logrus.Logger
	Clock            utils.Clock
	Dispatcher       *utils.SequenceDispatcher
	ResumeDelayHours int
}

func NewAutomationController(db *gorm.DB, logger *logrus.Logger, clock utils.Clock, dispatcher *utils.SequenceDispatcher, resumeDelayHours int) *AutomationController {
	return &AutomationController{
		DB:               db,
		Logger:           logger,
		Clock:            clock,
		Dispatcher:       dispatcher,
		ResumeDelayHours: resumeDelayHours,
	}
}

// CreateSequence registers a new outreach sequence with its ordered steps
func (ac *AutomationController) CreateSequence(c *fiber.Ctx) error {
	var input struct {
		Name       string `json:"name" validate:"required"`
		Type       string `json:"type" validate:"required,oneof=facebook_message line_message email email_with_attachment"`
		Template   string `json:"template"`
		DailyLimit int    `json:"daily_limit" validate:"omitempty,gte=1"`
		Steps      []struct {
			StepNumber int    `json:"step_number" validate:"gte=1"`
			StageName  string `json:"stage_name" validate:"required"`
			DelayHours int    `json:"delay_hours" validate:"omitempty,gte=0"`
		} `json:"steps" validate:"required,min=1,dive"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	sequence := models.AutomationSequence{
		Name:       input.Name,
		Type:       input.Type,
		Status:     "active",
		Template:   input.Template,
		DailyLimit: input.DailyLimit,
	}
	if sequence.DailyLimit == 0 {
		sequence.DailyLimit = 50
	}
	for _, step := range input.Steps {
		s := models.SequenceStep{
			StepNumber: step.StepNumber,
			StageName:  step.StageName,
			DelayHours: step.DelayHours,
		}
		if s.DelayHours == 0 {
			s.DelayHours = 72
		}
		sequence.Steps = append(sequence.Steps, s)
	}

	if err := ac.DB.Create(&sequence).Error; err != nil {
		ac.Logger.WithError(err).Error("Failed to create sequence")
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create sequence", err)
	}

	ac.Logger.WithFields(logrus.Fields{
		"sequence_id": sequence.ID,
		"name":        sequence.Name,
	}).Info("Sequence created")
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(sequence))
}

// GetSequences lists every sequence with its steps
func (ac *AutomationController) GetSequences(c *fiber.Ctx) error {
	var sequences []models.AutomationSequence
	if err := ac.DB.Preload("Steps", func(db *gorm.DB) *gorm.DB {
		return db.Order("step_number ASC")
	}).Order("created_at ASC").Find(&sequences).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch sequences", err)
	}
	return c.JSON(utils.SuccessResponse(sequences))
}

// GetSequence returns a single sequence with its steps
func (ac *AutomationController) GetSequence(c *fiber.Ctx) error {
	sequenceID := c.Params("id")

	var sequence models.AutomationSequence
	if err := ac.DB.Preload("Steps", func(db *gorm.DB) *gorm.DB {
		return db.Order("step_number ASC")
	}).First(&sequence, "id = ?", sequenceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Sequence not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch sequence", err)
	}
	return c.JSON(utils.SuccessResponse(sequence))
}

// UpdateSequenceStatus sets a sequence to active, paused or stopped
func (ac *AutomationController) UpdateSequenceStatus(c *fiber.Ctx) error {
	sequenceID := c.Params("id")

	var input struct {
		Status string `json:"status" validate:"required,oneof=active paused stopped"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	return ac.setSequenceStatus(c, sequenceID, input.Status, nil)
}

// PauseSequence halts dispatching without losing the sequence's position
func (ac *AutomationController) PauseSequence(c *fiber.Ctx) error {
	return ac.setSequenceStatus(c, c.Params("id"), "paused", nil)
}

// ResumeSequence reactivates a paused sequence and schedules the next run a
// little into the future so a resume doesn't fire a burst immediately
func (ac *AutomationController) ResumeSequence(c *fiber.Ctx) error {
	next := ac.Clock.Now().Add(time.Duration(ac.ResumeDelayHours) * time.Hour)
	return ac.setSequenceStatus(c, c.Params("id"), "active", &next)
}

func (ac *AutomationController) setSequenceStatus(c *fiber.Ctx, sequenceID, status string, nextExecution *time.Time) error {
	var sequence models.AutomationSequence
	if err := ac.DB.First(&sequence, "id = ?", sequenceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Sequence not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch sequence", err)
	}

	updates := map[string]interface{}{"status": status}
	if nextExecution != nil {
		updates["next_execution"] = nextExecution
	}
	if err := ac.DB.Model(&sequence).Updates(updates).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update sequence", err)
	}

	ac.Logger.WithFields(logrus.Fields{
		"sequence_id": sequence.ID,
		"status":      status,
	}).Info("Sequence status updated")
	return c.JSON(utils.SuccessResponse(sequence))
}

// RunSequence triggers one dispatch batch for a sequence on demand
func (ac *AutomationController) RunSequence(c *fiber.Ctx) error {
	sequenceID := c.Params("id")

	sent, err := ac.Dispatcher.RunSequence(sequenceID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Sequence not found", nil)
		}
		ac.Logger.WithError(err).WithField("sequence_id", sequenceID).
			Error("Manual sequence run failed")
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to run sequence", err)
	}

	if err := ac.Dispatcher.RefreshSequenceStats(sequenceID); err != nil {
		ac.Logger.WithError(err).WithField("sequence_id", sequenceID).
			Warn("Failed to refresh sequence stats after run")
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"sequence_id": sequenceID,
		"sent":        sent,
	}))
}

// DeleteSequence removes a sequence and its steps
func (ac *AutomationController) DeleteSequence(c *fiber.Ctx) error {
	sequenceID := c.Params("id")

	var sequence models.AutomationSequence
	if err := ac.DB.First(&sequence, "id = ?", sequenceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Sequence not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch sequence", err)
	}

	tx := ac.DB.Begin()
	if err := tx.Where("sequence_id = ?", sequenceID).Delete(&models.SequenceStep{}).Error; err != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete sequence", err)
	}
	if err := tx.Delete(&sequence).Error; err != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete sequence", err)
	}
	if err := tx.Commit().Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete sequence", err)
	}

	ac.Logger.WithField("sequence_id", sequenceID).Info("Sequence deleted")
	return c.JSON(utils.SuccessResponse(fiber.Map{"deleted": sequenceID}))
}

// GetAutomationStats returns aggregate counters across all sequences. The
// average success rate is the plain mean over sequences, not weighted by
// volume, so a small sequence counts as much as a busy one.
func (ac *AutomationController) GetAutomationStats(c *fiber.Ctx) error {
	var sequences []models.AutomationSequence
	if err := ac.DB.Find(&sequences).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch sequences", err)
	}

	var active, paused int
	var sentToday, leadsInSequences int
	var rateSum float64
	for _, sequence := range sequences {
		switch sequence.Status {
		case "active":
			active++
		case "paused":
			paused++
		}
		sentToday += sequence.SentToday
		leadsInSequences += sequence.LeadsInSequence
		rateSum += sequence.SuccessRate
	}

	avgSuccessRate := 0.0
	if len(sequences) > 0 {
		avgSuccessRate = math.Round(rateSum/float64(len(sequences))*10) / 10
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"total_sequences":    len(sequences),
		"active_sequences":   active,
		"paused_sequences":   paused,
		"sent_today":         sentToday,
		"leads_in_sequences": leadsInSequences,
		"avg_success_rate":   avgSuccessRate,
	}))
}

// GetAutomationPerformance returns per-sequence delivery and response figures
func (ac *AutomationController) GetAutomationPerformance(c *fiber.Ctx) error {
	var sequences []models.AutomationSequence
	if err := ac.DB.Preload("Steps", func(db *gorm.DB) *gorm.DB {
		return db.Order("step_number ASC")
	}).Order("created_at ASC").Find(&sequences).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch sequences", err)
	}

	type performanceRow struct {
		SequenceID      string     `json:"sequence_id"`
		Name            string     `json:"name"`
		Type            string     `json:"type"`
		Status          string     `json:"status"`
		LeadsInSequence int        `json:"leads_in_sequence"`
		SentToday       int        `json:"sent_today"`
		DailyLimit      int        `json:"daily_limit"`
		SuccessRate     float64    `json:"success_rate"`
		LastSent        *time.Time `json:"last_sent"`
		NextExecution   *time.Time `json:"next_execution"`
		Steps           int        `json:"steps"`
	}

	rows := make([]performanceRow, len(sequences))
	for i, sequence := range sequences {
		rows[i] = performanceRow{
			SequenceID:      sequence.ID,
			Name:            sequence.Name,
			Type:            sequence.Type,
			Status:          sequence.Status,
			LeadsInSequence: sequence.LeadsInSequence,
			SentToday:       sequence.SentToday,
			DailyLimit:      sequence.DailyLimit,
			SuccessRate:     sequence.SuccessRate,
			LastSent:        sequence.LastSent,
			NextExecution:   sequence.NextExecution,
			Steps:           len(sequence.Steps),
		}
	}
	return c.JSON(utils.SuccessResponse(rows))
}
