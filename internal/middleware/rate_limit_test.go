package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"subsettle/internal/common"
	"subsettle/internal/models"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockCacheService struct {
	mock.Mock
}

func (m *MockCacheService) GetSubscription(ctx context.Context, address string) (*models.Subscription, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockCacheService) SetSubscription(ctx context.Context, subscription *models.Subscription, ttl time.Duration) error {
	args := m.Called(ctx, subscription, ttl)
	return args.Error(0)
}

func (m *MockCacheService) DeleteSubscription(ctx context.Context, address string) error {
	args := m.Called(ctx, address)
	return args.Error(0)
}

func (m *MockCacheService) GetPrices(ctx context.Context) (int64, int64, bool, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Get(1).(int64), args.Bool(2), args.Error(3)
}

func (m *MockCacheService) SetPrices(ctx context.Context, monthly, yearly int64, ttl time.Duration) error {
	args := m.Called(ctx, monthly, yearly, ttl)
	return args.Error(0)
}

func (m *MockCacheService) IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

func (m *MockCacheService) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func rateLimitContext() echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/pay/monthly", nil)
	ctx := context.WithValue(req.Context(), common.CallerAddressKey, claimAddress)
	req = req.WithContext(ctx)
	return e.NewContext(req, httptest.NewRecorder())
}

func TestRateLimitAllowsUnderLimit(t *testing.T) {
	cacheSvc := new(MockCacheService)
	cacheSvc.On("IsRateLimited", mock.Anything, "pay:"+claimAddress, 10, time.Minute).Return(false, nil)

	handler := RateLimit(cacheSvc, 10, time.Minute)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	err := handler(rateLimitContext())
	assert.NoError(t, err)
	cacheSvc.AssertExpectations(t)
}

func TestRateLimitRejectsOverLimit(t *testing.T) {
	cacheSvc := new(MockCacheService)
	cacheSvc.On("IsRateLimited", mock.Anything, "pay:"+claimAddress, 10, time.Minute).Return(true, nil)

	handler := RateLimit(cacheSvc, 10, time.Minute)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	err := handler(rateLimitContext())
	var httpErr *echo.HTTPError
	assert.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusTooManyRequests, httpErr.Code)
}

func TestRateLimitFailsOpenOnCacheError(t *testing.T) {
	cacheSvc := new(MockCacheService)
	cacheSvc.On("IsRateLimited", mock.Anything, "pay:"+claimAddress, 10, time.Minute).Return(false, errors.New("connection refused"))

	called := false
	handler := RateLimit(cacheSvc, 10, time.Minute)(func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	})

	err := handler(rateLimitContext())
	assert.NoError(t, err)
	assert.True(t, called)
}
