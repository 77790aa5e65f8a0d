package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"subsettle/internal/common"
	"subsettle/internal/repositories"
	"subsettle/internal/services"

	"github.com/labstack/echo/v4"
)

// PricingHandlers exposes the operator-only schedule mutation surface and the
// price-change audit trail. Routes are gated by middleware.RequireOperator.
type PricingHandlers struct {
	pricingSvc services.PricingService
	auditRepo  repositories.PriceAuditRepository
}

// NewPricingHandlers creates a new pricing handlers instance
func NewPricingHandlers(pricingSvc services.PricingService, auditRepo repositories.PriceAuditRepository) *PricingHandlers {
	return &PricingHandlers{
		pricingSvc: pricingSvc,
		auditRepo:  auditRepo,
	}
}

type updatePricesRequest struct {
	MonthlyPrice int64 `json:"monthly_price"`
	YearlyPrice  int64 `json:"yearly_price"`
}

// UpdatePrices handles PUT /prices
func (h *PricingHandlers) UpdatePrices(c echo.Context) error {
	ctx := c.Request().Context()

	actor, ok := common.GetCallerAddressFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Caller not authenticated")
	}

	var req updatePricesRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := h.pricingSvc.UpdateSchedule(ctx, actor, req.MonthlyPrice, req.YearlyPrice); err != nil {
		if errors.Is(err, services.ErrPriceScheduleMisconfigured) {
			return common.SendClientError(c, err.Error())
		}
		return common.SendServerError(c, "Failed to update price schedule")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":       "Price schedule updated",
		"monthly_price": h.pricingSvc.MonthlyPrice(),
		"yearly_price":  h.pricingSvc.YearlyPrice(),
	})
}

// ListPriceAuditEvents handles GET /prices/audit
func (h *PricingHandlers) ListPriceAuditEvents(c echo.Context) error {
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

	events, err := h.auditRepo.List(ctx, limit, offset)
	if err != nil {
		return common.SendServerError(c, "Failed to list price audit events")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"events": events,
		"limit":  limit,
		"offset": offset,
	})
}
