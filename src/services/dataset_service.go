package services

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/username/finboard/backend/src/logger"
	"github.com/username/finboard/backend/src/models"
	"github.com/username/finboard/backend/src/normalize"
	"github.com/username/finboard/backend/src/scope"
	"github.com/username/finboard/backend/src/security/validation"
	"github.com/username/finboard/backend/src/store"
)

const (
	ckDatasetList = "res_dataset_list_user_%s_house_%s"

	defaultDatasetName = "Imported dataset"
)

// DefaultFieldSpecs is the alias table applied to imported financial
// rows. Callers with a known schema can substitute their own.
func DefaultFieldSpecs() []models.FieldSpec {
	return []models.FieldSpec{
		{Name: "date", Kind: models.FieldString, Aliases: []string{"date", "txn_date", "posted", "transaction_date"}, Required: true},
		{Name: "amount", Kind: models.FieldNumber, Aliases: []string{"amount", "txn_amount", "value"}, Required: true},
		{Name: "category", Kind: models.FieldString, Aliases: []string{"category", "cat", "bucket"}, Required: true},
		{Name: "memo", Kind: models.FieldString, Aliases: []string{"memo", "description", "note", "details"}},
		{Name: "recurring", Kind: models.FieldBool, Aliases: []string{"recurring", "is_recurring", "repeats"}},
	}
}

type datasetServiceImpl struct {
	blobStore   *store.Store
	reportCache *cache.Cache
	fieldSpecs  []models.FieldSpec
}

func NewDatasetService(blobStore *store.Store, reportCache *cache.Cache) DatasetService {
	return NewDatasetServiceWithFields(blobStore, reportCache, DefaultFieldSpecs())
}

// NewDatasetServiceWithFields substitutes a custom alias table for sources
// with a known schema.
func NewDatasetServiceWithFields(blobStore *store.Store, reportCache *cache.Cache, fields []models.FieldSpec) DatasetService {
	return &datasetServiceImpl{
		blobStore:   blobStore,
		reportCache: reportCache,
		fieldSpecs:  fields,
	}
}

func (s *datasetServiceImpl) ImportDataset(fileReader io.Reader, email, houseID, name string) (*models.Dataset, error) {
	startTime := time.Now()
	logger.L.Info("ImportDataset START", "email", scope.NormalizeEmail(email), "houseID", houseID)

	rows, err := parseCSVRows(fileReader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}

	name = validation.SanitizeName(name)
	if name == "" {
		name = defaultDatasetName
	}

	dataset := &models.Dataset{
		ID:        uuid.NewString(),
		HouseID:   strings.TrimSpace(houseID),
		Name:      name,
		CreatedAt: time.Now().UTC(),
		RowCount:  len(rows),
		Issues:    normalize.ComputeIssues(rows, s.fieldSpecs),
		Records:   normalize.NormalizeRows(rows, s.fieldSpecs),
	}

	key := scope.DeriveKey(scope.PurposeDatasets, email, houseID, dataset.ID)
	if err := s.blobStore.Put(key, dataset); err != nil {
		return nil, fmt.Errorf("error persisting dataset: %w", err)
	}

	s.invalidateListCache(email, houseID)
	logger.L.Info("ImportDataset END", "datasetID", dataset.ID, "rows", dataset.RowCount,
		"missingFields", dataset.Issues.Missing, "duration", time.Since(startTime))
	return dataset, nil
}

func (s *datasetServiceImpl) ListDatasets(email, houseID string) ([]models.Dataset, error) {
	cacheKey := fmt.Sprintf(ckDatasetList, scope.NormalizeEmail(email), houseID)
	if cached, found := s.reportCache.Get(cacheKey); found {
		logger.L.Debug("Cache hit for dataset list", "houseID", houseID)
		return cached.([]models.Dataset), nil
	}

	keys, err := s.blobStore.Keys(scope.KeyPrefix(scope.PurposeDatasets, email, houseID))
	if err != nil {
		return nil, fmt.Errorf("error listing dataset keys: %w", err)
	}

	datasets := make([]models.Dataset, 0, len(keys))
	for _, key := range keys {
		var ds models.Dataset
		if err := s.blobStore.Get(key, &ds); err != nil {
			return nil, fmt.Errorf("error loading dataset %s: %w", key, err)
		}
		datasets = append(datasets, ds)
	}

	s.reportCache.Set(cacheKey, datasets, cache.DefaultExpiration)
	return datasets, nil
}

func (s *datasetServiceImpl) GetDataset(email, houseID, datasetID string) (*models.Dataset, error) {
	var ds models.Dataset
	key := scope.DeriveKey(scope.PurposeDatasets, email, houseID, datasetID)
	if err := s.blobStore.Get(key, &ds); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrDatasetNotFound
		}
		return nil, err
	}
	return &ds, nil
}

func (s *datasetServiceImpl) DeleteDataset(email, houseID, datasetID string) error {
	key := scope.DeriveKey(scope.PurposeDatasets, email, houseID, datasetID)
	if err := s.blobStore.Delete(key); err != nil {
		return err
	}

	// Clear the active-dataset pointer when it referenced the deleted one.
	activeKey := scope.DeriveKey(scope.PurposeActiveClient, email, houseID)
	var activeID string
	if err := s.blobStore.Get(activeKey, &activeID); err == nil && activeID == datasetID {
		if err := s.blobStore.Delete(activeKey); err != nil {
			logger.L.Warn("Failed to clear active dataset pointer", "houseID", houseID, "error", err)
		}
	}

	s.invalidateListCache(email, houseID)
	return nil
}

func (s *datasetServiceImpl) SetActiveDataset(email, houseID, datasetID string) error {
	if _, err := s.GetDataset(email, houseID, datasetID); err != nil {
		return err
	}
	return s.blobStore.Put(scope.DeriveKey(scope.PurposeActiveClient, email, houseID), datasetID)
}

func (s *datasetServiceImpl) GetActiveDataset(email, houseID string) (*models.Dataset, error) {
	var activeID string
	err := s.blobStore.Get(scope.DeriveKey(scope.PurposeActiveClient, email, houseID), &activeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrDatasetNotFound
		}
		return nil, err
	}
	return s.GetDataset(email, houseID, activeID)
}

func (s *datasetServiceImpl) invalidateListCache(email, houseID string) {
	s.reportCache.Delete(fmt.Sprintf(ckDatasetList, scope.NormalizeEmail(email), houseID))
}

// parseCSVRows reads a headered CSV into raw rows. Structural failures
// (no header, unreadable input) abort the import; everything row-level is
// left to the normalizer's permissive handling.
func parseCSVRows(r io.Reader) ([]models.RawRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("error reading header row: %w", err)
	}

	var rows []models.RawRow
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading data row: %w", err)
		}
		row := make(models.RawRow, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
