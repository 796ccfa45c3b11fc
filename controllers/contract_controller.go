package controller

import (
	"errors"
	"strconv"

	"leadpilot/models"
	"leadpilot/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type ContractController struct {
	DB                    *gorm.DB
	Logger                *logrus.Logger
	Ledger                *utils.ContractLedger
	DefaultCommissionRate float64
}

func NewContractController(db *gorm.DB, logger *logrus.Logger, ledger *utils.ContractLedger, defaultCommissionRate float64) *ContractController {
	return &ContractController{
		DB:                    db,
		Logger:                logger,
		Ledger:                ledger,
		DefaultCommissionRate: defaultCommissionRate,
	}
}

// statusFromLedgerError maps service errors onto HTTP responses
func statusFromLedgerError(err error) int {
	switch {
	case errors.Is(err, utils.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, utils.ErrInvalidArgument):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

// CreateContract converts a lead into a signed listing contract
func (cc *ContractController) CreateContract(c *fiber.Ctx) error {
	var input struct {
		LeadID         string  `json:"lead_id" validate:"required"`
		ListingPrice   float64 `json:"listing_price" validate:"gte=0"`
		CommissionRate float64 `json:"commission_rate" validate:"omitempty,gt=0,lte=100"`
		Status         string  `json:"status" validate:"omitempty,oneof=listed under_offer sold expired"`
		Notes          string  `json:"notes"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	contract := models.Contract{
		LeadID:         input.LeadID,
		ListingPrice:   input.ListingPrice,
		CommissionRate: input.CommissionRate,
		Status:         input.Status,
		Notes:          input.Notes,
	}
	if contract.CommissionRate == 0 {
		contract.CommissionRate = cc.DefaultCommissionRate
	}

	if err := cc.Ledger.CreateContract(&contract); err != nil {
		if status := statusFromLedgerError(err); status != fiber.StatusInternalServerError {
			return utils.ErrorResponse(c, status, err.Error(), nil)
		}
		cc.Logger.WithError(err).Error("Failed to create contract")
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create contract", err)
	}

	cc.Logger.WithFields(logrus.Fields{
		"contract_id": contract.ID,
		"lead_id":     contract.LeadID,
	}).Info("Contract created")
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(contract))
}

// GetContracts lists contracts newest first, optionally filtered by status
func (cc *ContractController) GetContracts(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}

	query := cc.DB.Model(&models.Contract{})
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count contracts", err)
	}

	var contracts []models.Contract
	if err := query.
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&contracts).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch contracts", err)
	}

	return c.JSON(utils.PaginatedResponse{
		Data:  contracts,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// GetContract returns a single contract
func (cc *ContractController) GetContract(c *fiber.Ctx) error {
	contractID := c.Params("id")

	var contract models.Contract
	if err := cc.DB.First(&contract, "id = ?", contractID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Contract not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch contract", err)
	}
	return c.JSON(utils.SuccessResponse(contract))
}

// UpdateContractStatus moves a contract through listed, under_offer, sold or
// expired. A sale price is accepted alongside the sold transition.
func (cc *ContractController) UpdateContractStatus(c *fiber.Ctx) error {
	contractID := c.Params("id")

	var input struct {
		Status    string   `json:"status" validate:"required"`
		SalePrice *float64 `json:"sale_price" validate:"omitempty,gte=0"`
		Notes     string   `json:"notes"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	contract, err := cc.Ledger.UpdateContractStatus(contractID, input.Status, input.SalePrice, input.Notes)
	if err != nil {
		if status := statusFromLedgerError(err); status != fiber.StatusInternalServerError {
			return utils.ErrorResponse(c, status, err.Error(), nil)
		}
		cc.Logger.WithError(err).Error("Failed to update contract status")
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update contract", err)
	}

	cc.Logger.WithFields(logrus.Fields{
		"contract_id": contract.ID,
		"status":      contract.Status,
	}).Info("Contract status updated")
	return c.JSON(utils.SuccessResponse(contract))
}

// MarkCommissionPaid flags the contract's commission as paid out
func (cc *ContractController) MarkCommissionPaid(c *fiber.Ctx) error {
	contractID := c.Params("id")

	if err := cc.Ledger.MarkCommissionPaid(contractID); err != nil {
		if status := statusFromLedgerError(err); status != fiber.StatusInternalServerError {
			return utils.ErrorResponse(c, status, err.Error(), nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to mark commission paid", err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"contract_id":     contractID,
		"commission_paid": true,
	}))
}

// UpdateContractMetrics records listing engagement counters
func (cc *ContractController) UpdateContractMetrics(c *fiber.Ctx) error {
	contractID := c.Params("id")

	var input struct {
		Views     *int `json:"views" validate:"omitempty,gte=0"`
		Inquiries *int `json:"inquiries" validate:"omitempty,gte=0"`
		Viewings  *int `json:"viewings" validate:"omitempty,gte=0"`
		Offers    *int `json:"offers" validate:"omitempty,gte=0"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	contract, err := cc.Ledger.UpdateContractMetrics(contractID, input.Views, input.Inquiries, input.Viewings, input.Offers)
	if err != nil {
		if status := statusFromLedgerError(err); status != fiber.StatusInternalServerError {
			return utils.ErrorResponse(c, status, err.Error(), nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update contract metrics", err)
	}
	return c.JSON(utils.SuccessResponse(contract))
}

// DeleteContract removes a contract from the ledger
func (cc *ContractController) DeleteContract(c *fiber.Ctx) error {
	contractID := c.Params("id")

	var contract models.Contract
	if err := cc.DB.First(&contract, "id = ?", contractID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Contract not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch contract", err)
	}

	if err := cc.DB.Delete(&contract).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete contract", err)
	}

	cc.Logger.WithField("contract_id", contractID).Info("Contract deleted")
	return c.JSON(utils.SuccessResponse(fiber.Map{"deleted": contractID}))
}

// GetContractStats returns ledger totals for the dashboard
func (cc *ContractController) GetContractStats(c *fiber.Ctx) error {
	stats, err := cc.Ledger.Stats()
	if err != nil {
		cc.Logger.WithError(err).Error("Failed to compute contract stats")
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to compute contract stats", err)
	}
	return c.JSON(utils.SuccessResponse(stats))
}
