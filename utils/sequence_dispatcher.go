package utils

import (
	"errors"
	"fmt"
	"math"
	"time"

	"leadpilot/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Lead statuses that are never dispatched to again
var terminalLeadStatuses = []string{"not_interested", "converted"}

// SequenceDispatcher runs the automated outreach sequences: it picks the
// leads sitting at a sequence's stages, sends the next message through the
// OutreachSender, advances each lead to its next stage and enforces the
// per-sequence daily send limit.
type SequenceDispatcher struct {
	DB     *gorm.DB
	Logger *logrus.Logger
	Clock  Clock
	Sender OutreachSender
}

func NewSequenceDispatcher(db *gorm.DB, logger *logrus.Logger, clock Clock, sender OutreachSender) *SequenceDispatcher {
	return &SequenceDispatcher{
		DB:     db,
		Logger: logger,
		Clock:  clock,
		Sender: sender,
	}
}

// RunSequence executes one dispatch batch for a sequence and returns the
// number of messages sent. Paused and stopped sequences are a no-op, not an
// error, so schedulers can sweep every sequence blindly.
func (sd *SequenceDispatcher) RunSequence(sequenceID string) (int, error) {
	var sequence models.AutomationSequence
	if err := sd.DB.Preload("Steps", func(db *gorm.DB) *gorm.DB {
		return db.Order("step_number ASC")
	}).First(&sequence, "id = ?", sequenceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("sequence %s: %w", sequenceID, ErrNotFound)
		}
		return 0, err
	}

	if sequence.Status != "active" {
		sd.Logger.WithFields(logrus.Fields{
			"sequence_id": sequence.ID,
			"status":      sequence.Status,
		}).Debug("Sequence not active, skipping dispatch")
		return 0, nil
	}

	now := sd.Clock.Now()
	sent := 0
	dispatched := make(map[string]bool)
	for _, step := range sequence.Steps {
		remaining := sequence.DailyLimit - sequence.SentToday
		if remaining <= 0 {
			break
		}

		// A lead advanced by an earlier step must not be picked up again
		// by the step it just moved into
		query := sd.DB.
			Where("automation_stage = ?", step.StageName).
			Where("status NOT IN ?", terminalLeadStatuses)
		if step.DelayHours > 0 {
			// The step's delay must have elapsed since the previous touch
			cutoff := now.Add(-time.Duration(step.DelayHours) * time.Hour)
			query = query.Where("last_contact IS NULL OR last_contact <= ?", cutoff)
		}
		if len(dispatched) > 0 {
			ids := make([]string, 0, len(dispatched))
			for id := range dispatched {
				ids = append(ids, id)
			}
			query = query.Where("id NOT IN ?", ids)
		}

		var leads []models.Lead
		if err := query.
			Order("created_at ASC").
			Limit(remaining).
			Find(&leads).Error; err != nil {
			return sent, err
		}

		for i := range leads {
			if err := sd.dispatchToLead(&sequence, step, &leads[i]); err != nil {
				sd.Logger.WithError(err).WithFields(logrus.Fields{
					"sequence_id": sequence.ID,
					"lead_id":     leads[i].ID,
				}).Error("Failed to dispatch to lead")
				continue
			}
			dispatched[leads[i].ID] = true
			sequence.SentToday++
			sent++
		}
	}

	if sent > 0 {
		sd.Logger.WithFields(logrus.Fields{
			"sequence_id": sequence.ID,
			"sent":        sent,
			"sent_today":  sequence.SentToday,
		}).Info("Sequence batch dispatched")
	}
	return sent, nil
}

// RunDueSequences dispatches every active sequence whose next_execution has
// passed (or was never scheduled). Returns the total number of sends.
func (sd *SequenceDispatcher) RunDueSequences() (int, error) {
	now := sd.Clock.Now()

	var sequences []models.AutomationSequence
	if err := sd.DB.
		Where("status = ?", "active").
		Where("next_execution IS NULL OR next_execution <= ?", now).
		Find(&sequences).Error; err != nil {
		return 0, err
	}

	total := 0
	for _, sequence := range sequences {
		sent, err := sd.RunSequence(sequence.ID)
		if err != nil {
			sd.Logger.WithError(err).WithField("sequence_id", sequence.ID).
				Error("Sequence run failed")
			continue
		}
		total += sent
	}
	return total, nil
}

// dispatchToLead performs the per-lead writes for one send. The interaction
// is appended before the lead and sequence updates so a crash mid-dispatch
// still leaves evidence of the attempted send.
func (sd *SequenceDispatcher) dispatchToLead(sequence *models.AutomationSequence, step models.SequenceStep, lead *models.Lead) error {
	now := sd.Clock.Now()

	interaction := models.Interaction{
		LeadID:    lead.ID,
		Type:      interactionTypeFor(sequence.Type),
		Direction: "outbound",
		Outcome:   "no_response",
		Notes:     fmt.Sprintf("Automated send for stage %s", step.StageName),
		Automated: true,
		Stage:     step.StageName,
		Timestamp: now,
	}
	if err := sd.DB.Create(&interaction).Error; err != nil {
		return err
	}

	if err := sd.Sender.Send(lead, sequence.Template, sequence.Type); err != nil {
		return err
	}

	updates := map[string]interface{}{
		"automation_stage": nextStageName(sequence.Steps, step.StepNumber),
		"last_contact":     now,
	}
	if err := sd.DB.Model(lead).Updates(updates).Error; err != nil {
		return err
	}

	return sd.DB.Model(sequence).Updates(map[string]interface{}{
		"sent_today": gorm.Expr("sent_today + ?", 1),
		"last_sent":  now,
	}).Error
}

// nextStageName returns the stage name of the step after stepNumber, or nil
// when the sequence has run out of steps and the lead needs manual takeover.
func nextStageName(steps []models.SequenceStep, stepNumber int) *string {
	for _, step := range steps {
		if step.StepNumber == stepNumber+1 {
			return Pointer(step.StageName)
		}
	}
	return nil
}

func interactionTypeFor(sequenceType string) string {
	switch sequenceType {
	case "email", "email_with_attachment":
		return "email"
	case "facebook_message", "line_message":
		return "message"
	default:
		return "message"
	}
}

// RefreshSequenceStats recomputes the cached leads_in_sequence counter and
// the success rate from interaction history. Success rate is the share of
// automated sends at this sequence's stages that came back interested,
// rounded to one decimal.
func (sd *SequenceDispatcher) RefreshSequenceStats(sequenceID string) error {
	var sequence models.AutomationSequence
	if err := sd.DB.Preload("Steps").First(&sequence, "id = ?", sequenceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("sequence %s: %w", sequenceID, ErrNotFound)
		}
		return err
	}

	stageNames := make([]string, 0, len(sequence.Steps))
	for _, step := range sequence.Steps {
		stageNames = append(stageNames, step.StageName)
	}
	if len(stageNames) == 0 {
		return nil
	}

	var leadsInSequence int64
	if err := sd.DB.Model(&models.Lead{}).
		Where("automation_stage IN ?", stageNames).
		Count(&leadsInSequence).Error; err != nil {
		return err
	}

	var totalSent int64
	if err := sd.DB.Model(&models.Interaction{}).
		Where("automated = ? AND stage IN ?", true, stageNames).
		Count(&totalSent).Error; err != nil {
		return err
	}

	var interested int64
	if err := sd.DB.Model(&models.Interaction{}).
		Where("automated = ? AND stage IN ? AND outcome = ?", true, stageNames, "interested").
		Count(&interested).Error; err != nil {
		return err
	}

	successRate := 0.0
	if totalSent > 0 {
		successRate = math.Round(float64(interested)/float64(totalSent)*1000) / 10
	}

	return sd.DB.Model(&sequence).Updates(map[string]interface{}{
		"leads_in_sequence": leadsInSequence,
		"success_rate":      successRate,
	}).Error
}

// ResetDailyCountersOnce zeroes every sequence's sent_today counter. The
// caller decides when a new day has started.
func (sd *SequenceDispatcher) ResetDailyCountersOnce() error {
	return sd.DB.Model(&models.AutomationSequence{}).
		Where("sent_today > 0").
		Update("sent_today", 0).
		Error
}

// ResetDailyCounters resets all sequence counters at midnight
func (sd *SequenceDispatcher) ResetDailyCounters() {
	for {
		now := sd.Clock.Now()
		nextMidnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
		time.Sleep(time.Until(nextMidnight))

		if err := sd.ResetDailyCountersOnce(); err != nil {
			sd.Logger.WithError(err).Error("Failed to reset sequence counters")
		} else {
			sd.Logger.Info("Successfully reset sequence daily counters")
		}
	}
}
