package services

import (
	"io"

	"github.com/username/finboard/backend/src/models"
)

// DatasetService owns the ad-hoc dataset import pipeline: raw upload in,
// normalized records plus a data-quality report out, persisted under
// keys scoped to (user, house).
type DatasetService interface {
	ImportDataset(fileReader io.Reader, email, houseID, name string) (*models.Dataset, error)
	ListDatasets(email, houseID string) ([]models.Dataset, error)
	GetDataset(email, houseID, datasetID string) (*models.Dataset, error)
	DeleteDataset(email, houseID, datasetID string) error
	SetActiveDataset(email, houseID, datasetID string) error
	GetActiveDataset(email, houseID string) (*models.Dataset, error)
}

// HouseService manages the workspaces ("houses") that partition a user's
// datasets and settings.
type HouseService interface {
	ListHouses(email string) ([]models.House, error)
	CreateHouse(email, name string) (*models.House, error)
	RenameHouse(email, houseID, name string) (*models.House, error)
	DeleteHouse(email, houseID string) error
	SetActiveHouse(email, houseID string) error
	GetActiveHouse(email string) (string, error)
}

// DashboardService reads the precomputed warehouse views and shapes them
// into JSON payloads. It performs no statistics of its own.
type DashboardService interface {
	CashflowDaily(houseID string, days int) (*models.DailyCashflowPayload, error)
	CashflowRolling(houseID string) ([]models.RollingCashflowPoint, error)
	Anomalies(houseID string) ([]models.AnomalyPoint, error)
	BudgetVariance(houseID, period string) ([]models.BudgetVarianceLine, error)
	Liquidity(houseID string) (*models.LiquiditySnapshot, error)
	Exposure(houseID string) ([]models.ExposureLine, error)
	RevenueMonthly(houseID string) ([]models.RevenuePoint, error)
	Forecast(houseID string, days int) ([]models.ForecastPoint, error)
	InvalidateHouseCache(houseID string)
}
