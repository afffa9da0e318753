package services

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/finboard/backend/src/config"
	"github.com/username/finboard/backend/src/logger"
	"github.com/username/finboard/backend/src/models"
	"github.com/username/finboard/backend/src/series"
)

const (
	ckDailyCashflow   = "res_daily_cashflow_house_%s_days_%d"
	ckRollingCashflow = "res_rolling_cashflow_house_%s"
	ckAnomalies       = "res_anomalies_house_%s"
	ckBudgetVariance  = "res_budget_variance_house_%s_period_%s"
	ckLiquidity       = "agg_liquidity_house_%s"
	ckExposure        = "res_exposure_house_%s"
	ckRevenueMonthly  = "res_revenue_monthly_house_%s"
	ckForecast        = "res_forecast_house_%s_days_%d"
)

type dashboardServiceImpl struct {
	db          *sql.DB
	reportCache *cache.Cache
	now         func() time.Time
}

// defaultWindowDays is the window applied when a request names no ?days=.
func defaultWindowDays() int {
	if config.Cfg != nil && config.Cfg.FallbackSeriesDays > 0 {
		return config.Cfg.FallbackSeriesDays
	}
	return 30
}

// NewDashboardService wraps the warehouse handle. The service only reads
// precomputed views; all the statistics live in SQL.
func NewDashboardService(db *sql.DB, reportCache *cache.Cache) DashboardService {
	return &dashboardServiceImpl{
		db:          db,
		reportCache: reportCache,
		now:         time.Now,
	}
}

// CashflowDaily reads the per-day view for the trailing window. When the
// view has no rows for the house, a synthetic series is generated from
// the 30-day aggregate totals so the chart is never empty; the payload
// marks it as illustrative.
func (s *dashboardServiceImpl) CashflowDaily(houseID string, days int) (*models.DailyCashflowPayload, error) {
	if days <= 0 {
		days = defaultWindowDays()
	}
	cacheKey := fmt.Sprintf(ckDailyCashflow, houseID, days)
	if cached, found := s.reportCache.Get(cacheKey); found {
		logger.L.Debug("Cache hit for daily cashflow", "houseID", houseID)
		return cached.(*models.DailyCashflowPayload), nil
	}

	rows, err := s.db.Query(
		`SELECT entry_date, inflow, outflow, net FROM v_daily_cashflow
		 WHERE house_id = ? AND entry_date >= date('now', ?)
		 ORDER BY entry_date ASC`,
		houseID, fmt.Sprintf("-%d days", days))
	if err != nil {
		return nil, fmt.Errorf("error querying daily cashflow for house %s: %w", houseID, err)
	}
	defer rows.Close()

	points := []models.CashflowPoint{}
	for rows.Next() {
		var p models.CashflowPoint
		if err := rows.Scan(&p.Date, &p.Inflow, &p.Outflow, &p.Net); err != nil {
			return nil, fmt.Errorf("error scanning daily cashflow row: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily cashflow rows: %w", err)
	}

	payload := &models.DailyCashflowPayload{Points: points}
	if len(points) == 0 {
		inflow30d, outflow30d, err := s.aggregateTotals(houseID)
		if err != nil {
			return nil, err
		}
		payload.Points = series.BuildFallbackSeries(inflow30d, outflow30d, days, s.now())
		payload.Synthetic = true
		logger.L.Info("Daily cashflow view empty, serving synthetic series",
			"houseID", houseID, "days", days, "inflow30d", inflow30d, "outflow30d", outflow30d)
	}

	s.reportCache.Set(cacheKey, payload, cache.DefaultExpiration)
	return payload, nil
}

func (s *dashboardServiceImpl) aggregateTotals(houseID string) (float64, float64, error) {
	var inflow30d, outflow30d float64
	err := s.db.QueryRow(
		`SELECT inflow_30d, outflow_30d FROM v_cashflow_30d_totals WHERE house_id = ?`,
		houseID).Scan(&inflow30d, &outflow30d)
	if err == sql.ErrNoRows {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("error querying 30d totals for house %s: %w", houseID, err)
	}
	return inflow30d, outflow30d, nil
}

func (s *dashboardServiceImpl) CashflowRolling(houseID string) ([]models.RollingCashflowPoint, error) {
	cacheKey := fmt.Sprintf(ckRollingCashflow, houseID)
	if cached, found := s.reportCache.Get(cacheKey); found {
		return cached.([]models.RollingCashflowPoint), nil
	}

	rows, err := s.db.Query(
		`SELECT entry_date, avg_inflow_14d, avg_outflow_14d, avg_net_14d
		 FROM v_cashflow_rolling WHERE house_id = ? ORDER BY entry_date ASC`, houseID)
	if err != nil {
		return nil, fmt.Errorf("error querying rolling cashflow for house %s: %w", houseID, err)
	}
	defer rows.Close()

	points := []models.RollingCashflowPoint{}
	for rows.Next() {
		var p models.RollingCashflowPoint
		if err := rows.Scan(&p.Date, &p.AvgInflow14d, &p.AvgOutflow14d, &p.AvgNet14d); err != nil {
			return nil, fmt.Errorf("error scanning rolling cashflow row: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rolling cashflow rows: %w", err)
	}

	s.reportCache.Set(cacheKey, points, cache.DefaultExpiration)
	return points, nil
}

func (s *dashboardServiceImpl) Anomalies(houseID string) ([]models.AnomalyPoint, error) {
	cacheKey := fmt.Sprintf(ckAnomalies, houseID)
	if cached, found := s.reportCache.Get(cacheKey); found {
		return cached.([]models.AnomalyPoint), nil
	}

	rows, err := s.db.Query(
		`SELECT entry_date, net, z_score FROM v_cashflow_anomalies
		 WHERE house_id = ? ORDER BY entry_date ASC`, houseID)
	if err != nil {
		return nil, fmt.Errorf("error querying anomalies for house %s: %w", houseID, err)
	}
	defer rows.Close()

	points := []models.AnomalyPoint{}
	for rows.Next() {
		var p models.AnomalyPoint
		if err := rows.Scan(&p.Date, &p.Net, &p.ZScore); err != nil {
			return nil, fmt.Errorf("error scanning anomaly row: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating anomaly rows: %w", err)
	}

	s.reportCache.Set(cacheKey, points, cache.DefaultExpiration)
	return points, nil
}

// BudgetVariance returns the view rows for one period, or all periods
// when period is blank.
func (s *dashboardServiceImpl) BudgetVariance(houseID, period string) ([]models.BudgetVarianceLine, error) {
	period = strings.TrimSpace(period)
	cacheKey := fmt.Sprintf(ckBudgetVariance, houseID, period)
	if cached, found := s.reportCache.Get(cacheKey); found {
		return cached.([]models.BudgetVarianceLine), nil
	}

	rows, err := s.db.Query(
		`SELECT period, category, budgeted, actual, variance_pct FROM v_budget_variance
		 WHERE house_id = ? AND (? = '' OR period = ?)
		 ORDER BY period ASC, category ASC`, houseID, period, period)
	if err != nil {
		return nil, fmt.Errorf("error querying budget variance for house %s: %w", houseID, err)
	}
	defer rows.Close()

	lines := []models.BudgetVarianceLine{}
	for rows.Next() {
		var line models.BudgetVarianceLine
		var variance sql.NullFloat64
		if err := rows.Scan(&line.Period, &line.Category, &line.Budgeted, &line.Actual, &variance); err != nil {
			return nil, fmt.Errorf("error scanning budget variance row: %w", err)
		}
		if variance.Valid {
			v := variance.Float64
			line.VariancePct = &v
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating budget variance rows: %w", err)
	}

	s.reportCache.Set(cacheKey, lines, cache.DefaultExpiration)
	return lines, nil
}

func (s *dashboardServiceImpl) Liquidity(houseID string) (*models.LiquiditySnapshot, error) {
	cacheKey := fmt.Sprintf(ckLiquidity, houseID)
	if cached, found := s.reportCache.Get(cacheKey); found {
		return cached.(*models.LiquiditySnapshot), nil
	}

	snapshot := &models.LiquiditySnapshot{}
	var runway sql.NullInt64
	err := s.db.QueryRow(
		`SELECT cash_balance, available_liquidity, monthly_burn, runway_days
		 FROM v_liquidity_runway WHERE house_id = ?`, houseID).
		Scan(&snapshot.CashBalance, &snapshot.AvailableLiquidity, &snapshot.MonthlyBurnRate, &runway)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("error querying liquidity for house %s: %w", houseID, err)
	}
	if runway.Valid {
		v := runway.Int64
		snapshot.RunwayDays = &v
	}

	s.reportCache.Set(cacheKey, snapshot, cache.DefaultExpiration)
	return snapshot, nil
}

func (s *dashboardServiceImpl) Exposure(houseID string) ([]models.ExposureLine, error) {
	cacheKey := fmt.Sprintf(ckExposure, houseID)
	if cached, found := s.reportCache.Get(cacheKey); found {
		return cached.([]models.ExposureLine), nil
	}

	rows, err := s.db.Query(
		`SELECT counterparty, COALESCE(category, ''), amount FROM v_exposure_summary
		 WHERE house_id = ? ORDER BY amount DESC, counterparty ASC`, houseID)
	if err != nil {
		return nil, fmt.Errorf("error querying exposure for house %s: %w", houseID, err)
	}
	defer rows.Close()

	lines := []models.ExposureLine{}
	for rows.Next() {
		var line models.ExposureLine
		if err := rows.Scan(&line.Counterparty, &line.Category, &line.Amount); err != nil {
			return nil, fmt.Errorf("error scanning exposure row: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating exposure rows: %w", err)
	}

	s.reportCache.Set(cacheKey, lines, cache.DefaultExpiration)
	return lines, nil
}

func (s *dashboardServiceImpl) RevenueMonthly(houseID string) ([]models.RevenuePoint, error) {
	cacheKey := fmt.Sprintf(ckRevenueMonthly, houseID)
	if cached, found := s.reportCache.Get(cacheKey); found {
		return cached.([]models.RevenuePoint), nil
	}

	rows, err := s.db.Query(
		`SELECT month, revenue FROM v_revenue_monthly
		 WHERE house_id = ? ORDER BY month ASC`, houseID)
	if err != nil {
		return nil, fmt.Errorf("error querying monthly revenue for house %s: %w", houseID, err)
	}
	defer rows.Close()

	points := []models.RevenuePoint{}
	for rows.Next() {
		var p models.RevenuePoint
		if err := rows.Scan(&p.Month, &p.Revenue); err != nil {
			return nil, fmt.Errorf("error scanning revenue row: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating revenue rows: %w", err)
	}

	s.reportCache.Set(cacheKey, points, cache.DefaultExpiration)
	return points, nil
}

// Forecast expands the view's trailing daily-net average into a flat
// projection starting after the last observed day.
func (s *dashboardServiceImpl) Forecast(houseID string, days int) ([]models.ForecastPoint, error) {
	if days <= 0 {
		days = defaultWindowDays()
	}
	cacheKey := fmt.Sprintf(ckForecast, houseID, days)
	if cached, found := s.reportCache.Get(cacheKey); found {
		return cached.([]models.ForecastPoint), nil
	}

	var lastDate string
	var dailyNet float64
	err := s.db.QueryRow(
		`SELECT last_date, daily_net FROM v_cashflow_forecast WHERE house_id = ?`, houseID).
		Scan(&lastDate, &dailyNet)
	if err == sql.ErrNoRows {
		return []models.ForecastPoint{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error querying forecast for house %s: %w", houseID, err)
	}

	start, err := time.Parse("2006-01-02", lastDate)
	if err != nil {
		return nil, fmt.Errorf("invalid last_date %q in forecast view: %w", lastDate, err)
	}

	points := make([]models.ForecastPoint, 0, days)
	for i := 1; i <= days; i++ {
		points = append(points, models.ForecastPoint{
			Date:         start.AddDate(0, 0, i).Format("2006-01-02"),
			ProjectedNet: dailyNet,
		})
	}

	s.reportCache.Set(cacheKey, points, cache.DefaultExpiration)
	return points, nil
}

// InvalidateHouseCache clears every cached dashboard payload for a house,
// forcing recomputation from the views on the next request.
func (s *dashboardServiceImpl) InvalidateHouseCache(houseID string) {
	marker := fmt.Sprintf("_house_%s", houseID)
	for key := range s.reportCache.Items() {
		if strings.Contains(key, marker) {
			s.reportCache.Delete(key)
		}
	}
	logger.L.Info("Invalidated dashboard caches for house", "houseID", houseID)
}
