package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/username/finboard/backend/src/models"
)

type mockDashboardService struct {
	mock.Mock
}

func (m *mockDashboardService) CashflowDaily(houseID string, days int) (*models.DailyCashflowPayload, error) {
	args := m.Called(houseID, days)
	return args.Get(0).(*models.DailyCashflowPayload), args.Error(1)
}

func (m *mockDashboardService) CashflowRolling(houseID string) ([]models.RollingCashflowPoint, error) {
	args := m.Called(houseID)
	return args.Get(0).([]models.RollingCashflowPoint), args.Error(1)
}

func (m *mockDashboardService) Anomalies(houseID string) ([]models.AnomalyPoint, error) {
	args := m.Called(houseID)
	return args.Get(0).([]models.AnomalyPoint), args.Error(1)
}

func (m *mockDashboardService) BudgetVariance(houseID, period string) ([]models.BudgetVarianceLine, error) {
	args := m.Called(houseID, period)
	return args.Get(0).([]models.BudgetVarianceLine), args.Error(1)
}

func (m *mockDashboardService) Liquidity(houseID string) (*models.LiquiditySnapshot, error) {
	args := m.Called(houseID)
	return args.Get(0).(*models.LiquiditySnapshot), args.Error(1)
}

func (m *mockDashboardService) Exposure(houseID string) ([]models.ExposureLine, error) {
	args := m.Called(houseID)
	return args.Get(0).([]models.ExposureLine), args.Error(1)
}

func (m *mockDashboardService) RevenueMonthly(houseID string) ([]models.RevenuePoint, error) {
	args := m.Called(houseID)
	return args.Get(0).([]models.RevenuePoint), args.Error(1)
}

func (m *mockDashboardService) Forecast(houseID string, days int) ([]models.ForecastPoint, error) {
	args := m.Called(houseID, days)
	return args.Get(0).([]models.ForecastPoint), args.Error(1)
}

func (m *mockDashboardService) InvalidateHouseCache(houseID string) {
	m.Called(houseID)
}

func authedRequest(method, target string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	ctx := context.WithValue(req.Context(), userEmailContextKey, "alice@example.com")
	return req.WithContext(ctx)
}

func TestHandleGetDailyCashflow(t *testing.T) {
	payload := &models.DailyCashflowPayload{
		Points: []models.CashflowPoint{{Date: "2025-06-15", Inflow: 100, Outflow: 40, Net: 60}},
	}

	newHandler := func() (*DashboardHandler, *mockDashboardService) {
		dashSvc := new(mockDashboardService)
		houseSvc := new(mockHouseService)
		return NewDashboardHandler(dashSvc, houseSvc), dashSvc
	}

	t.Run("unauthenticated", func(t *testing.T) {
		h, _ := newHandler()
		rec := httptest.NewRecorder()
		h.HandleGetDailyCashflow(rec, httptest.NewRequest(http.MethodGet, "/api/dashboard/cashflow/daily", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("serves payload with etag", func(t *testing.T) {
		h, dashSvc := newHandler()
		dashSvc.On("CashflowDaily", "h1", 0).Return(payload, nil)

		rec := httptest.NewRecorder()
		h.HandleGetDailyCashflow(rec, authedRequest(http.MethodGet, "/api/dashboard/cashflow/daily?house=h1"))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("ETag"))

		var got models.DailyCashflowPayload
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, payload.Points, got.Points)
		assert.False(t, got.Synthetic)
	})

	t.Run("if-none-match short-circuits", func(t *testing.T) {
		h, dashSvc := newHandler()
		dashSvc.On("CashflowDaily", "h1", 0).Return(payload, nil)

		first := httptest.NewRecorder()
		h.HandleGetDailyCashflow(first, authedRequest(http.MethodGet, "/api/dashboard/cashflow/daily?house=h1"))
		etag := first.Header().Get("ETag")
		require.NotEmpty(t, etag)

		req := authedRequest(http.MethodGet, "/api/dashboard/cashflow/daily?house=h1")
		req.Header.Set("If-None-Match", etag)
		second := httptest.NewRecorder()
		h.HandleGetDailyCashflow(second, req)

		assert.Equal(t, http.StatusNotModified, second.Code)
		assert.Empty(t, second.Body.Bytes())
	})

	t.Run("days parameter forwarded", func(t *testing.T) {
		h, dashSvc := newHandler()
		dashSvc.On("CashflowDaily", "h1", 7).Return(payload, nil)

		rec := httptest.NewRecorder()
		h.HandleGetDailyCashflow(rec, authedRequest(http.MethodGet, "/api/dashboard/cashflow/daily?house=h1&days=7"))
		assert.Equal(t, http.StatusOK, rec.Code)
		dashSvc.AssertExpectations(t)
	})
}

func TestHandleGetLiquidity(t *testing.T) {
	dashSvc := new(mockDashboardService)
	houseSvc := new(mockHouseService)
	h := NewDashboardHandler(dashSvc, houseSvc)

	runway := int64(45)
	dashSvc.On("Liquidity", "h1").Return(&models.LiquiditySnapshot{
		CashBalance:        3000,
		AvailableLiquidity: 3500,
		MonthlyBurnRate:    2000,
		RunwayDays:         &runway,
	}, nil)

	rec := httptest.NewRecorder()
	h.HandleGetLiquidity(rec, authedRequest(http.MethodGet, "/api/dashboard/liquidity?house=h1"))

	require.Equal(t, http.StatusOK, rec.Code)
	var got models.LiquiditySnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 3000.0, got.CashBalance)
	require.NotNil(t, got.RunwayDays)
	assert.Equal(t, int64(45), *got.RunwayDays)
}

func TestDashboardRequiresHouse(t *testing.T) {
	dashSvc := new(mockDashboardService)
	houseSvc := new(mockHouseService)
	houseSvc.On("GetActiveHouse", "alice@example.com").Return("", nil)
	h := NewDashboardHandler(dashSvc, houseSvc)

	rec := httptest.NewRecorder()
	h.HandleGetLiquidity(rec, authedRequest(http.MethodGet, "/api/dashboard/liquidity"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	dashSvc.AssertNotCalled(t, "Liquidity")
}
