package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Contract records the conversion of a lead into a signed listing
type Contract struct {
	ID     string `gorm:"primaryKey" json:"id"`
	LeadID string `gorm:"not null;index" json:"lead_id"`

	// Carried over from the lead at signing time
	OwnerName    string `gorm:"not null" json:"owner_name"`
	OwnerNameEN  string `json:"owner_name_en"`
	PropertyType string `json:"property_type"`
	Location     string `json:"location"`

	// Financial details
	PropertyValue    float64 `json:"property_value"`
	ListingPrice     float64 `json:"listing_price"`
	SalePrice        float64 `json:"sale_price"`
	CommissionRate   float64 `gorm:"default:3.0" json:"commission_rate"` // Percentage
	CommissionAmount float64 `json:"commission_amount"`                  // listing_price * rate / 100
	CommissionEarned float64 `json:"commission_earned"`                  // sale_price * rate / 100, set on sale
	CommissionPaid   bool    `gorm:"default:false" json:"commission_paid"`

	Status string `gorm:"index" json:"status"` // listed, under_offer, sold, expired

	// Important dates
	DateSigned   *time.Time `json:"date_signed"`
	DateListed   *time.Time `json:"date_listed"`
	DateSold     *time.Time `json:"date_sold"`
	DaysOnMarket int        `gorm:"default:0" json:"days_on_market"`

	// Performance metrics
	Views     int `gorm:"default:0" json:"views"`
	Inquiries int `gorm:"default:0" json:"inquiries"`
	Viewings  int `gorm:"default:0" json:"viewings"`
	Offers    int `gorm:"default:0" json:"offers"`

	Notes string `gorm:"type:text" json:"notes"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Lead Lead `json:"-"`
}

func (c *Contract) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = "contract_" + uuid.NewString()[:8]
	}
	return nil
}
