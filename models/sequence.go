package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AutomationSequence represents a named, throttled outreach campaign
type AutomationSequence struct {
	ID     string `gorm:"primaryKey" json:"id"`
	Name   string `gorm:"not null" json:"name"`
	Type   string `json:"type"`                            // facebook_message, email, email_with_attachment
	Status string `gorm:"default:'active'" json:"status"` // active, paused, stopped

	// Sequence configuration
	Template   string `gorm:"type:text" json:"template"`
	DailyLimit int    `gorm:"default:50" json:"daily_limit"`

	// Performance tracking (denormalized, refreshed by the dispatcher)
	LeadsInSequence int     `gorm:"default:0" json:"leads_in_sequence"`
	SuccessRate     float64 `gorm:"default:0" json:"success_rate"`
	SentToday       int     `gorm:"default:0" json:"sent_today"`

	// Execution tracking
	LastSent      *time.Time `json:"last_sent"`
	NextExecution *time.Time `json:"next_execution"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Steps []SequenceStep `gorm:"foreignKey:SequenceID" json:"steps,omitempty"`
}

func (s *AutomationSequence) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = "seq_" + uuid.NewString()[:8]
	}
	return nil
}

// SequenceStep is one stage in a sequence's ordered progression. A lead whose
// automation_stage matches StageName is a candidate for this step; after a
// send it advances to the next step number, or leaves automation entirely
// when no further step exists.
type SequenceStep struct {
	gorm.Model
	SequenceID string `gorm:"not null;index" json:"sequence_id"`

	StepNumber int    `gorm:"not null" json:"step_number"`
	StageName  string `gorm:"not null;index" json:"stage_name"` // facebook_initial, day_3_follow_up, etc.
	DelayHours int    `gorm:"default:72" json:"delay_hours"`    // Hours after previous step
}
