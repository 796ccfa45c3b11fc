package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Lead represents a prospective property owner being worked through outreach
type Lead struct {
	ID string `gorm:"primaryKey" json:"id"`

	OwnerName     string `gorm:"not null" json:"owner_name"`
	OwnerNameEN   string `json:"owner_name_en"`
	Phone         string `json:"phone"`
	Email         string `json:"email"`
	MessengerLink string `json:"messenger_link"`

	// Property information
	PropertyType        string  `json:"property_type"` // Villa, Condo, House, etc.
	Location            string  `json:"location"`
	PropertyValue       float64 `json:"property_value"`
	CommissionPotential float64 `json:"commission_potential"`

	// Lead management
	Status    string `gorm:"default:'new';index" json:"status"` // new, contacted, interested, not_interested, converted
	LeadScore int    `gorm:"default:0" json:"lead_score"`       // 0-100 scoring
	Urgency   string `gorm:"default:'medium'" json:"urgency"`   // urgent, high, medium, low
	Source    string `gorm:"index" json:"source"`               // facebook, google_maps, manual, etc.

	// Automation tracking
	AutomationStage *string    `gorm:"index" json:"automation_stage"`
	LastContact     *time.Time `json:"last_contact"`
	BestCallTime    string     `json:"best_call_time"`

	// Additional data
	Tags  []string `gorm:"type:jsonb;serializer:json" json:"tags"`
	Notes string   `gorm:"type:text" json:"notes"`

	DateScraped *time.Time `json:"date_scraped"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	// Relations
	Interactions []Interaction `gorm:"foreignKey:LeadID" json:"interactions,omitempty"`
	Contracts    []Contract    `gorm:"foreignKey:LeadID" json:"contracts,omitempty"`
}

func (l *Lead) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = "lead_" + uuid.NewString()[:8]
	}
	return nil
}

// Interaction is a single contact attempt or outcome in a lead's history.
// Rows are append-only; there is no update or delete path.
type Interaction struct {
	ID     string `gorm:"primaryKey" json:"id"`
	LeadID string `gorm:"not null;index" json:"lead_id"`

	Type      string `json:"type"`      // call, email, message, meeting, status_update
	Direction string `json:"direction"` // inbound, outbound
	Outcome   string `json:"outcome"`   // interested, not_interested, no_response, bounced
	Notes     string `gorm:"type:text" json:"notes"`

	Agent     string    `gorm:"default:'System'" json:"agent"`
	Automated bool      `gorm:"default:false" json:"automated"`
	Stage     string    `gorm:"index" json:"stage"` // sequence stage active at send time, empty for manual contact
	Timestamp time.Time `gorm:"not null;index" json:"timestamp"`

	// Relations
	Lead Lead `json:"-"`
}

func (i *Interaction) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = "int_" + uuid.NewString()[:8]
	}
	return nil
}
