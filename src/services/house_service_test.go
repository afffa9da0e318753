package services

import (
	"strings"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/finboard/backend/src/store"
)

func newTestHouseService(t *testing.T) (HouseService, *store.Store) {
	t.Helper()
	blobStore := store.New(newTestDB(t))
	return NewHouseService(blobStore), blobStore
}

func TestCreateAndListHouses(t *testing.T) {
	svc, _ := newTestHouseService(t)

	houses, err := svc.ListHouses("alice@example.com")
	require.NoError(t, err)
	assert.Empty(t, houses)

	h1, err := svc.CreateHouse("alice@example.com", "Treasury")
	require.NoError(t, err)
	assert.NotEmpty(t, h1.ID)
	assert.Equal(t, "Treasury", h1.Name)

	h2, err := svc.CreateHouse("alice@example.com", "Ops")
	require.NoError(t, err)
	assert.NotEqual(t, h1.ID, h2.ID)

	houses, err = svc.ListHouses("alice@example.com")
	require.NoError(t, err)
	assert.Len(t, houses, 2)

	// Other users see nothing.
	houses, err = svc.ListHouses("bob@example.com")
	require.NoError(t, err)
	assert.Empty(t, houses)
}

func TestCreateHouseRejectsEmptyName(t *testing.T) {
	svc, _ := newTestHouseService(t)
	_, err := svc.CreateHouse("alice@example.com", "   ")
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestCreateHouseSanitizesName(t *testing.T) {
	svc, _ := newTestHouseService(t)
	h, err := svc.CreateHouse("alice@example.com", "<script>alert(1)</script>Treasury")
	require.NoError(t, err)
	assert.Equal(t, "Treasury", h.Name)
}

func TestRenameHouse(t *testing.T) {
	svc, _ := newTestHouseService(t)
	h, err := svc.CreateHouse("alice@example.com", "Treasury")
	require.NoError(t, err)

	renamed, err := svc.RenameHouse("alice@example.com", h.ID, "Group Treasury")
	require.NoError(t, err)
	assert.Equal(t, "Group Treasury", renamed.Name)
	assert.Equal(t, h.ID, renamed.ID)

	_, err = svc.RenameHouse("alice@example.com", "nope", "x")
	assert.ErrorIs(t, err, ErrHouseNotFound)

	_, err = svc.RenameHouse("alice@example.com", h.ID, "")
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestActiveHouseLifecycle(t *testing.T) {
	svc, _ := newTestHouseService(t)
	h, err := svc.CreateHouse("alice@example.com", "Treasury")
	require.NoError(t, err)

	active, err := svc.GetActiveHouse("alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "", active)

	assert.ErrorIs(t, svc.SetActiveHouse("alice@example.com", "nope"), ErrHouseNotFound)

	require.NoError(t, svc.SetActiveHouse("alice@example.com", h.ID))
	active, err = svc.GetActiveHouse("alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, h.ID, active)
}

func TestDeleteHouseCascades(t *testing.T) {
	blobStore := store.New(newTestDB(t))
	houseSvc := NewHouseService(blobStore)
	datasetSvc := NewDatasetService(blobStore, cache.New(time.Minute, time.Minute))

	h, err := houseSvc.CreateHouse("alice@example.com", "Treasury")
	require.NoError(t, err)
	keep, err := houseSvc.CreateHouse("alice@example.com", "Ops")
	require.NoError(t, err)

	ds, err := datasetSvc.ImportDataset(strings.NewReader(sampleCSV), "alice@example.com", h.ID, "a")
	require.NoError(t, err)
	require.NoError(t, datasetSvc.SetActiveDataset("alice@example.com", h.ID, ds.ID))
	require.NoError(t, houseSvc.SetActiveHouse("alice@example.com", h.ID))

	require.NoError(t, houseSvc.DeleteHouse("alice@example.com", h.ID))

	houses, err := houseSvc.ListHouses("alice@example.com")
	require.NoError(t, err)
	require.Len(t, houses, 1)
	assert.Equal(t, keep.ID, houses[0].ID)

	// Datasets and pointers scoped under the house are gone too.
	datasets, err := datasetSvc.ListDatasets("alice@example.com", h.ID)
	require.NoError(t, err)
	assert.Empty(t, datasets)

	_, err = datasetSvc.GetActiveDataset("alice@example.com", h.ID)
	assert.ErrorIs(t, err, ErrDatasetNotFound)

	active, err := houseSvc.GetActiveHouse("alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "", active)

	assert.ErrorIs(t, houseSvc.DeleteHouse("alice@example.com", h.ID), ErrHouseNotFound)
}
