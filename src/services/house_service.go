package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/username/finboard/backend/src/logger"
	"github.com/username/finboard/backend/src/models"
	"github.com/username/finboard/backend/src/scope"
	"github.com/username/finboard/backend/src/security/validation"
	"github.com/username/finboard/backend/src/store"
)

type houseServiceImpl struct {
	blobStore *store.Store
}

func NewHouseService(blobStore *store.Store) HouseService {
	return &houseServiceImpl{blobStore: blobStore}
}

func (s *houseServiceImpl) loadHouses(email string) ([]models.House, error) {
	var houses []models.House
	err := s.blobStore.Get(scope.DeriveKey(scope.PurposeHouses, email), &houses)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return []models.House{}, nil
		}
		return nil, err
	}
	return houses, nil
}

func (s *houseServiceImpl) saveHouses(email string, houses []models.House) error {
	return s.blobStore.Put(scope.DeriveKey(scope.PurposeHouses, email), houses)
}

func (s *houseServiceImpl) ListHouses(email string) ([]models.House, error) {
	return s.loadHouses(email)
}

func (s *houseServiceImpl) CreateHouse(email, name string) (*models.House, error) {
	name = validation.SanitizeName(name)
	if name == "" {
		return nil, fmt.Errorf("%w: house name must not be empty", ErrInvalidName)
	}

	houses, err := s.loadHouses(email)
	if err != nil {
		return nil, err
	}

	house := models.House{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	houses = append(houses, house)
	if err := s.saveHouses(email, houses); err != nil {
		return nil, err
	}

	logger.L.Info("House created", "houseID", house.ID)
	return &house, nil
}

func (s *houseServiceImpl) RenameHouse(email, houseID, name string) (*models.House, error) {
	name = validation.SanitizeName(name)
	if name == "" {
		return nil, fmt.Errorf("%w: house name must not be empty", ErrInvalidName)
	}

	houses, err := s.loadHouses(email)
	if err != nil {
		return nil, err
	}
	for i := range houses {
		if houses[i].ID == strings.TrimSpace(houseID) {
			houses[i].Name = name
			if err := s.saveHouses(email, houses); err != nil {
				return nil, err
			}
			return &houses[i], nil
		}
	}
	return nil, ErrHouseNotFound
}

// DeleteHouse removes the house and tears down every blob scoped under
// it: its datasets and its active-dataset pointer.
func (s *houseServiceImpl) DeleteHouse(email, houseID string) error {
	houses, err := s.loadHouses(email)
	if err != nil {
		return err
	}

	houseID = strings.TrimSpace(houseID)
	remaining := make([]models.House, 0, len(houses))
	found := false
	for _, h := range houses {
		if h.ID == houseID {
			found = true
			continue
		}
		remaining = append(remaining, h)
	}
	if !found {
		return ErrHouseNotFound
	}

	if err := s.saveHouses(email, remaining); err != nil {
		return err
	}
	if err := s.blobStore.DeleteByPrefix(scope.KeyPrefix(scope.PurposeDatasets, email, houseID)); err != nil {
		return err
	}
	if err := s.blobStore.Delete(scope.DeriveKey(scope.PurposeActiveClient, email, houseID)); err != nil {
		return err
	}

	// Clear the active-house pointer when it referenced the deleted house.
	activeKey := scope.DeriveKey(scope.PurposeActiveHouse, email)
	var activeID string
	if err := s.blobStore.Get(activeKey, &activeID); err == nil && activeID == houseID {
		if err := s.blobStore.Delete(activeKey); err != nil {
			logger.L.Warn("Failed to clear active house pointer", "houseID", houseID, "error", err)
		}
	}

	logger.L.Info("House deleted", "houseID", houseID)
	return nil
}

func (s *houseServiceImpl) SetActiveHouse(email, houseID string) error {
	houses, err := s.loadHouses(email)
	if err != nil {
		return err
	}
	houseID = strings.TrimSpace(houseID)
	for _, h := range houses {
		if h.ID == houseID {
			return s.blobStore.Put(scope.DeriveKey(scope.PurposeActiveHouse, email), houseID)
		}
	}
	return ErrHouseNotFound
}

// GetActiveHouse returns the stored active house ID, or "" when none has
// been selected yet.
func (s *houseServiceImpl) GetActiveHouse(email string) (string, error) {
	var activeID string
	err := s.blobStore.Get(scope.DeriveKey(scope.PurposeActiveHouse, email), &activeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return activeID, nil
}
