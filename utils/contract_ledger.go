package utils

import (
	"errors"
	"fmt"
	"math"

	"leadpilot/models"

	"gorm.io/gorm"
)

var contractStatuses = []string{"listed", "under_offer", "sold", "expired"}

// ContractLedger records lead conversions and keeps the commission figures
// consistent with the listing and sale prices.
type ContractLedger struct {
	DB    *gorm.DB
	Clock Clock
}

func NewContractLedger(db *gorm.DB, clock Clock) *ContractLedger {
	return &ContractLedger{DB: db, Clock: clock}
}

// ContractStats aggregates the ledger for the dashboard
type ContractStats struct {
	TotalContracts         int64   `json:"total_contracts"`
	ActiveListings         int64   `json:"active_listings"`
	SoldProperties         int64   `json:"sold_properties"`
	TotalCommissionEarned  float64 `json:"total_commission_earned"`
	TotalCommissionPending float64 `json:"total_commission_pending"`
	AvgDaysOnMarket        float64 `json:"avg_days_on_market"`
	ConversionRate         float64 `json:"conversion_rate"`
}

// CreateContract converts a lead into a signed contract. The lead must
// exist; its identity and property fields are carried onto the contract when
// the caller leaves them blank, and the lead itself is marked converted in
// the same transaction.
func (cl *ContractLedger) CreateContract(contract *models.Contract) error {
	if contract.CommissionRate <= 0 {
		return fmt.Errorf("commission rate must be positive: %w", ErrInvalidArgument)
	}
	if contract.ListingPrice < 0 {
		return fmt.Errorf("listing price must not be negative: %w", ErrInvalidArgument)
	}
	if contract.Status == "" {
		contract.Status = "listed"
	}
	if !isValidContractStatus(contract.Status) {
		return fmt.Errorf("status %q: %w", contract.Status, ErrInvalidArgument)
	}

	var lead models.Lead
	if err := cl.DB.First(&lead, "id = ?", contract.LeadID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("lead %s: %w", contract.LeadID, ErrNotFound)
		}
		return err
	}

	if contract.OwnerName == "" {
		contract.OwnerName = lead.OwnerName
	}
	if contract.OwnerNameEN == "" {
		contract.OwnerNameEN = lead.OwnerNameEN
	}
	if contract.PropertyType == "" {
		contract.PropertyType = lead.PropertyType
	}
	if contract.Location == "" {
		contract.Location = lead.Location
	}
	if contract.PropertyValue == 0 {
		contract.PropertyValue = lead.PropertyValue
	}

	now := cl.Clock.Now()
	contract.CommissionAmount = contract.ListingPrice * contract.CommissionRate / 100
	contract.DateSigned = &now
	if contract.Status == "listed" {
		contract.DateListed = &now
	}

	tx := cl.DB.Begin()
	if err := tx.Create(contract).Error; err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Model(&lead).Update("status", "converted").Error; err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

// UpdateContractStatus moves a contract through its lifecycle. A transition
// to sold with a sale price recomputes the earned commission and the days on
// market from the listing date.
func (cl *ContractLedger) UpdateContractStatus(contractID, status string, salePrice *float64, notes string) (*models.Contract, error) {
	if !isValidContractStatus(status) {
		return nil, fmt.Errorf("status %q must be one of %v: %w", status, contractStatuses, ErrInvalidArgument)
	}

	var contract models.Contract
	if err := cl.DB.First(&contract, "id = ?", contractID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("contract %s: %w", contractID, ErrNotFound)
		}
		return nil, err
	}

	now := cl.Clock.Now()
	contract.Status = status

	if status == "sold" && salePrice != nil {
		contract.SalePrice = *salePrice
		contract.DateSold = &now
		// Commission is earned on what the property actually sold for
		contract.CommissionEarned = *salePrice * contract.CommissionRate / 100
		if contract.DateListed != nil {
			contract.DaysOnMarket = int(now.Sub(*contract.DateListed).Hours() / 24)
		}
	}

	if notes != "" {
		contract.Notes = notes
	}

	if err := cl.DB.Save(&contract).Error; err != nil {
		return nil, err
	}
	return &contract, nil
}

// MarkCommissionPaid flags the commission as paid out. Calling it twice is
// harmless.
func (cl *ContractLedger) MarkCommissionPaid(contractID string) error {
	result := cl.DB.Model(&models.Contract{}).
		Where("id = ?", contractID).
		Update("commission_paid", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// Distinguish a missing contract from an already-paid one
		var count int64
		if err := cl.DB.Model(&models.Contract{}).Where("id = ?", contractID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("contract %s: %w", contractID, ErrNotFound)
		}
	}
	return nil
}

// UpdateContractMetrics records engagement counters from the listing portals
func (cl *ContractLedger) UpdateContractMetrics(contractID string, views, inquiries, viewings, offers *int) (*models.Contract, error) {
	var contract models.Contract
	if err := cl.DB.First(&contract, "id = ?", contractID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("contract %s: %w", contractID, ErrNotFound)
		}
		return nil, err
	}

	if views != nil {
		contract.Views = *views
	}
	if inquiries != nil {
		contract.Inquiries = *inquiries
	}
	if viewings != nil {
		contract.Viewings = *viewings
	}
	if offers != nil {
		contract.Offers = *offers
	}

	if err := cl.DB.Save(&contract).Error; err != nil {
		return nil, err
	}
	return &contract, nil
}

// Stats aggregates the ledger: counts, paid and pending commission totals,
// average days on market for sold listings and the sold conversion rate.
func (cl *ContractLedger) Stats() (*ContractStats, error) {
	stats := &ContractStats{}

	if err := cl.DB.Model(&models.Contract{}).Count(&stats.TotalContracts).Error; err != nil {
		return nil, err
	}
	if err := cl.DB.Model(&models.Contract{}).
		Where("status IN ?", []string{"listed", "under_offer"}).
		Count(&stats.ActiveListings).Error; err != nil {
		return nil, err
	}
	if err := cl.DB.Model(&models.Contract{}).
		Where("status = ?", "sold").
		Count(&stats.SoldProperties).Error; err != nil {
		return nil, err
	}

	var earned *float64
	if err := cl.DB.Model(&models.Contract{}).
		Where("commission_paid = ?", true).
		Select("SUM(commission_earned)").
		Scan(&earned).Error; err != nil {
		return nil, err
	}
	if earned != nil {
		stats.TotalCommissionEarned = *earned
	}

	var pending *float64
	if err := cl.DB.Model(&models.Contract{}).
		Where("commission_paid = ? AND status = ?", false, "sold").
		Select("SUM(commission_amount)").
		Scan(&pending).Error; err != nil {
		return nil, err
	}
	if pending != nil {
		stats.TotalCommissionPending = *pending
	}

	var avgDays *float64
	if err := cl.DB.Model(&models.Contract{}).
		Where("status = ?", "sold").
		Select("AVG(days_on_market)").
		Scan(&avgDays).Error; err != nil {
		return nil, err
	}
	if avgDays != nil {
		stats.AvgDaysOnMarket = math.Round(*avgDays*10) / 10
	}

	if stats.TotalContracts > 0 {
		rate := float64(stats.SoldProperties) / float64(stats.TotalContracts) * 100
		stats.ConversionRate = math.Round(rate*10) / 10
	}
	return stats, nil
}

func isValidContractStatus(status string) bool {
	for _, s := range contractStatuses {
		if s == status {
			return true
		}
	}
	return false
}
