package handlers

import (
	"net/http"
	"strconv"

	"subsettle/internal/common"
	"subsettle/internal/repositories"
	"subsettle/internal/services"

	"github.com/labstack/echo/v4"
)

// LedgerHandlers exposes the ledger query surface: subscription records and
// current prices are public reads, the full ledger listing is operator-only.
type LedgerHandlers struct {
	ledgerSvc        services.LedgerService
	pricingSvc       services.PricingService
	subscriptionRepo repositories.SubscriptionRepository
}

// NewLedgerHandlers creates a new ledger handlers instance
func NewLedgerHandlers(ledgerSvc services.LedgerService, pricingSvc services.PricingService, subscriptionRepo repositories.SubscriptionRepository) *LedgerHandlers {
	return &LedgerHandlers{
		ledgerSvc:        ledgerSvc,
		pricingSvc:       pricingSvc,
		subscriptionRepo: subscriptionRepo,
	}
}

// GetUserInfo handles GET /users/:address. An address that never paid returns
// the default inactive record rather than 404.
func (h *LedgerHandlers) GetUserInfo(c echo.Context) error {
	ctx := c.Request().Context()

	address, err := common.ValidateAddress(c.Param("address"), "address")
	if err != nil {
		return common.SendValidationError(c, "address", err.Error())
	}

	record, err := h.ledgerSvc.GetRecord(ctx, address)
	if err != nil {
		return common.SendServerError(c, "Failed to read subscription")
	}

	status, err := h.ledgerSvc.GetStatus(ctx, address)
	if err != nil {
		return common.SendServerError(c, "Failed to read subscription")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"subscription": record,
		"active":       status.Active,
	})
}

// ListSubscriptions handles GET /subscriptions, operator-only. Most recently
// updated records first.
func (h *LedgerHandlers) ListSubscriptions(c echo.Context) error {
	ctx := c.Request().Context()

	limit := 50
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

	subscriptions, err := h.subscriptionRepo.List(ctx, limit, offset)
	if err != nil {
		return common.SendServerError(c, "Failed to list subscriptions")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"subscriptions": subscriptions,
		"limit":         limit,
		"offset":        offset,
	})
}

// GetMonthlyPrice handles GET /prices/monthly
func (h *LedgerHandlers) GetMonthlyPrice(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"tier":  "monthly",
		"price": h.pricingSvc.MonthlyPrice(),
	})
}

// GetYearlyPrice handles GET /prices/yearly
func (h *LedgerHandlers) GetYearlyPrice(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"tier":  "yearly",
		"price": h.pricingSvc.YearlyPrice(),
	})
}
