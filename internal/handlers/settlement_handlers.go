package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"subsettle/internal/common"
	"subsettle/internal/models"
	"subsettle/internal/repositories"
	"subsettle/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// SettlementHandlers exposes the mutating payment surface: the two thin entry
// points that bind a tier and settle for the calling identity.
type SettlementHandlers struct {
	settlementSvc services.SettlementService
	receiptRepo   repositories.ReceiptRepository
	archiveSvc    services.ArchiveService
}

// NewSettlementHandlers creates a new settlement handlers instance
func NewSettlementHandlers(settlementSvc services.SettlementService, receiptRepo repositories.ReceiptRepository, archiveSvc services.ArchiveService) *SettlementHandlers {
	return &SettlementHandlers{
		settlementSvc: settlementSvc,
		receiptRepo:   receiptRepo,
		archiveSvc:    archiveSvc,
	}
}

type payRequest struct {
	PaymentToken string `json:"payment_token"`
}

// PayMonthly handles POST /pay/monthly
func (h *SettlementHandlers) PayMonthly(c echo.Context) error {
	return h.pay(c, models.TierMonthly)
}

// PayYearly handles POST /pay/yearly
func (h *SettlementHandlers) PayYearly(c echo.Context) error {
	return h.pay(c, models.TierYearly)
}

func (h *SettlementHandlers) pay(c echo.Context, tier models.Tier) error {
	ctx := c.Request().Context()

	address, ok := common.GetCallerAddressFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Caller not authenticated")
	}

	var req payRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	paymentToken, err := common.ValidateAddress(req.PaymentToken, "payment_token")
	if err != nil {
		return common.SendValidationError(c, "payment_token", err.Error())
	}

	receipt, err := h.settlementSvc.PayFor(ctx, address, tier, paymentToken)
	if err != nil {
		return settlementError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Payment settled successfully",
		"receipt": receipt,
	})
}

// ListReceipts handles GET /receipts for the calling identity
func (h *SettlementHandlers) ListReceipts(c echo.Context) error {
	ctx := c.Request().Context()

	address, ok := common.GetCallerAddressFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Caller not authenticated")
	}

	limit := 10
	offset := 0
	if limitParam := c.QueryParam("limit"); limitParam != "" {
		if l, err := strconv.Atoi(limitParam); err == nil && l > 0 {
			limit = l
		}
	}
	if offsetParam := c.QueryParam("offset"); offsetParam != "" {
		if o, err := strconv.Atoi(offsetParam); err == nil && o >= 0 {
			offset = o
		}
	}
	limit, offset, err := common.ValidatePaginationParams(limit, offset)
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	receipts, err := h.receiptRepo.ListByAddress(ctx, address, limit, offset)
	if err != nil {
		return common.SendServerError(c, "Failed to list receipts")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"receipts": receipts,
		"limit":    limit,
		"offset":   offset,
	})
}

// GetReceiptArchiveLink handles GET /receipts/:id/archive. Returns a
// short-lived presigned URL for the archived receipt object. Callers can only
// reach their own receipts.
func (h *SettlementHandlers) GetReceiptArchiveLink(c echo.Context) error {
	ctx := c.Request().Context()

	address, ok := common.GetCallerAddressFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Caller not authenticated")
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return common.SendValidationError(c, "id", "must be a valid receipt ID")
	}

	receipt, err := h.receiptRepo.GetByID(ctx, id)
	if err != nil {
		return common.SendServerError(c, "Failed to read receipt")
	}
	if receipt == nil || receipt.Address != address {
		return common.SendNotFoundError(c, "Receipt")
	}

	url, err := h.archiveSvc.ReceiptURL(ctx, receipt, 15*time.Minute)
	if err != nil {
		return common.SendServerError(c, "Failed to generate archive link")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"receipt_id": receipt.ID,
		"url":        url,
	})
}

// settlementError maps the settlement error taxonomy to HTTP status codes.
func settlementError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidTier):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrInsufficientAllowance):
		return echo.NewHTTPError(http.StatusPaymentRequired, err.Error())
	case errors.Is(err, services.ErrUnderfundedPayment):
		return echo.NewHTTPError(http.StatusPaymentRequired, err.Error())
	case errors.Is(err, services.ErrSwapFailed):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
