package utils

import (
	"errors"
	"fmt"

	"leadpilot/models"

	"gorm.io/gorm"
)

// Statuses still worth a human phone call
var callableStatuses = []string{"interested", "responded", "new"}

// CallQueueLead is the display row handed to the calling dashboard
type CallQueueLead struct {
	ID              string  `json:"id"`
	Score           int     `json:"score"`
	OwnerName       string  `json:"owner_name"`
	OwnerNameEN     string  `json:"owner_name_en"`
	Phone           string  `json:"phone"`
	PropertyType    string  `json:"property_type"`
	Location        string  `json:"location"`
	PropertyValue   float64 `json:"property_value"`
	Commission      float64 `json:"commission"`
	LastResponse    string  `json:"last_response"`
	ResponseTime    string  `json:"response_time"`
	BestCallTime    string  `json:"best_call_time"`
	AutomationStage string  `json:"automation_stage"`
	Urgency         string  `json:"urgency"`
}

// CallQueueBuilder derives the ranked shortlist of leads for human follow-up:
// high-scoring callable leads, best score first, most recently contacted
// winning ties.
type CallQueueBuilder struct {
	DB       *gorm.DB
	Clock    Clock
	MinScore int
	PageSize int
}

func NewCallQueueBuilder(db *gorm.DB, clock Clock, minScore, pageSize int) *CallQueueBuilder {
	return &CallQueueBuilder{
		DB:       db,
		Clock:    clock,
		MinScore: minScore,
		PageSize: pageSize,
	}
}

// Build returns the current call queue, capped at PageSize entries
func (cq *CallQueueBuilder) Build() ([]CallQueueLead, error) {
	var leads []models.Lead
	if err := cq.DB.
		Where("status IN ?", callableStatuses).
		Where("lead_score >= ?", cq.MinScore).
		Order("lead_score DESC").
		Order("COALESCE(last_contact, '1970-01-01') DESC").
		Limit(cq.PageSize).
		Find(&leads).Error; err != nil {
		return nil, err
	}

	queue := make([]CallQueueLead, 0, len(leads))
	for i := range leads {
		latest, err := cq.latestInteraction(leads[i].ID)
		if err != nil {
			return nil, err
		}
		queue = append(queue, cq.formatLead(&leads[i], latest))
	}
	return queue, nil
}

func (cq *CallQueueBuilder) latestInteraction(leadID string) (*models.Interaction, error) {
	var interaction models.Interaction
	err := cq.DB.
		Where("lead_id = ?", leadID).
		Order("timestamp DESC").
		First(&interaction).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &interaction, nil
}

// formatLead fills the placeholders the calling dashboard expects when a
// scraped lead is missing contact details
func (cq *CallQueueBuilder) formatLead(lead *models.Lead, latest *models.Interaction) CallQueueLead {
	row := CallQueueLead{
		ID:              lead.ID,
		Score:           lead.LeadScore,
		OwnerName:       lead.OwnerName,
		OwnerNameEN:     lead.OwnerNameEN,
		Phone:           lead.Phone,
		PropertyType:    lead.PropertyType,
		Location:        lead.Location,
		PropertyValue:   lead.PropertyValue,
		Commission:      lead.CommissionPotential,
		LastResponse:    "Initial contact needed",
		ResponseTime:    cq.responseTimeAgo(latest),
		BestCallTime:    lead.BestCallTime,
		AutomationStage: "initial_contact",
		Urgency:         lead.Urgency,
	}

	if row.OwnerNameEN == "" {
		row.OwnerNameEN = lead.OwnerName
	}
	if row.Phone == "" {
		row.Phone = "+66 XX XXX XXXX"
	}
	if row.PropertyType == "" {
		row.PropertyType = "Property"
	}
	if row.Location == "" {
		row.Location = "Location TBD"
	}
	if row.BestCallTime == "" {
		row.BestCallTime = "9 AM - 5 PM"
	}
	if lead.AutomationStage != nil {
		row.AutomationStage = *lead.AutomationStage
	}
	if latest != nil && latest.Notes != "" {
		row.LastResponse = latest.Notes
	} else if lead.Notes != "" {
		row.LastResponse = lead.Notes
	}
	return row
}

func (cq *CallQueueBuilder) responseTimeAgo(latest *models.Interaction) string {
	if latest == nil {
		return "No response yet"
	}
	hours := int(cq.Clock.Now().Sub(latest.Timestamp).Hours())
	if hours < 0 {
		hours = 0
	}
	return fmt.Sprintf("%d hours ago", hours)
}
