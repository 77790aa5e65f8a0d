package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"subsettle/internal/models"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockLedgerService struct {
	mock.Mock
}

func (m *MockLedgerService) GetRecord(ctx context.Context, address string) (*models.Subscription, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockLedgerService) GetStatus(ctx context.Context, address string) (*models.SubscriptionStatus, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SubscriptionStatus), args.Error(1)
}

func (m *MockLedgerService) Extend(existing *models.Subscription, address string, tier models.Tier, creditedAmount int64, now time.Time) (*models.Subscription, error) {
	args := m.Called(existing, address, tier, creditedAmount, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

type MockSubscriptionRepository struct {
	mock.Mock
}

func (m *MockSubscriptionRepository) Get(ctx context.Context, address string) (*models.Subscription, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepository) List(ctx context.Context, limit, offset int) ([]*models.Subscription, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Subscription), args.Error(1)
}

type MockPricingService struct {
	mock.Mock
}

func (m *MockPricingService) Quote(tier models.Tier) (int64, error) {
	args := m.Called(tier)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPricingService) MonthlyPrice() int64 {
	args := m.Called()
	return args.Get(0).(int64)
}

func (m *MockPricingService) YearlyPrice() int64 {
	args := m.Called()
	return args.Get(0).(int64)
}

func (m *MockPricingService) UpdateSchedule(ctx context.Context, actor string, monthly, yearly int64) error {
	args := m.Called(ctx, actor, monthly, yearly)
	return args.Error(0)
}

func userInfoContext(address string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/users/"+address, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/v1/users/:address")
	c.SetParamNames("address")
	c.SetParamValues(address)
	return c, rec
}

func TestGetUserInfoActiveSubscriber(t *testing.T) {
	ledgerSvc := new(MockLedgerService)
	pricingSvc := new(MockPricingService)
	h := NewLedgerHandlers(ledgerSvc, pricingSvc, new(MockSubscriptionRepository))

	expiry := time.Now().Add(15 * 24 * time.Hour)
	ledgerSvc.On("GetRecord", mock.Anything, callerAddress).Return(&models.Subscription{
		Address:      callerAddress,
		Tier:         models.TierMonthly,
		ExpiresAt:    expiry,
		PaymentCount: 3,
	}, nil)
	ledgerSvc.On("GetStatus", mock.Anything, callerAddress).Return(&models.SubscriptionStatus{
		Address:   callerAddress,
		Active:    true,
		ExpiresAt: expiry,
	}, nil)

	c, rec := userInfoContext(callerAddress)
	err := h.GetUserInfo(c)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["active"])
	ledgerSvc.AssertExpectations(t)
}

func TestGetUserInfoCanonicalizesAddress(t *testing.T) {
	ledgerSvc := new(MockLedgerService)
	h := NewLedgerHandlers(ledgerSvc, new(MockPricingService), new(MockSubscriptionRepository))

	mixedCase := "0x00000000000000000000000000000000000000A1"
	ledgerSvc.On("GetRecord", mock.Anything, callerAddress).Return(&models.Subscription{Address: callerAddress}, nil)
	ledgerSvc.On("GetStatus", mock.Anything, callerAddress).Return(&models.SubscriptionStatus{Address: callerAddress}, nil)

	c, rec := userInfoContext(mixedCase)
	err := h.GetUserInfo(c)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	ledgerSvc.AssertExpectations(t)
}

func TestGetUserInfoInvalidAddress(t *testing.T) {
	h := NewLedgerHandlers(new(MockLedgerService), new(MockPricingService), new(MockSubscriptionRepository))

	c, rec := userInfoContext("0xabc")
	err := h.GetUserInfo(c)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListSubscriptions(t *testing.T) {
	subscriptionRepo := new(MockSubscriptionRepository)
	h := NewLedgerHandlers(new(MockLedgerService), new(MockPricingService), subscriptionRepo)

	subscriptions := []*models.Subscription{
		{Address: callerAddress, Tier: models.TierYearly, PaymentCount: 2},
		{Address: "0x00000000000000000000000000000000000000a2", Tier: models.TierMonthly, PaymentCount: 1},
	}
	subscriptionRepo.On("List", mock.Anything, 50, 0).Return(subscriptions, nil)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/subscriptions", nil)
	rec := httptest.NewRecorder()

	err := h.ListSubscriptions(e.NewContext(req, rec))
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp["subscriptions"], 2)
	subscriptionRepo.AssertExpectations(t)
}

func TestGetPrices(t *testing.T) {
	pricingSvc := new(MockPricingService)
	h := NewLedgerHandlers(new(MockLedgerService), pricingSvc, new(MockSubscriptionRepository))

	pricingSvc.On("MonthlyPrice").Return(int64(10))
	pricingSvc.On("YearlyPrice").Return(int64(95))

	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/v1/prices/monthly", nil)
	rec := httptest.NewRecorder()
	assert.NoError(t, h.GetMonthlyPrice(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, float64(10), resp["price"])

	req = httptest.NewRequest(http.MethodGet, "/v1/prices/yearly", nil)
	rec = httptest.NewRecorder()
	assert.NoError(t, h.GetYearlyPrice(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, float64(95), resp["price"])
}
