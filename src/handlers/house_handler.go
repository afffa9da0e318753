package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/username/finboard/backend/src/services"
	"github.com/username/finboard/backend/src/utils"
)

type HouseHandler struct {
	houseService services.HouseService
}

func NewHouseHandler(houseService services.HouseService) *HouseHandler {
	return &HouseHandler{houseService: houseService}
}

func (h *HouseHandler) HandleListHouses(w http.ResponseWriter, r *http.Request) {
	email, ok := GetUserEmailFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or identity not found in context", http.StatusUnauthorized)
		return
	}

	houses, err := h.houseService.ListHouses(email)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error listing houses: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(houses)
}

func (h *HouseHandler) HandleCreateHouse(w http.ResponseWriter, r *http.Request) {
	email, ok := GetUserEmailFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or identity not found in context", http.StatusUnauthorized)
		return
	}

	var payload struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.SendJSONError(w, "Request body must be JSON with a 'name'", http.StatusBadRequest)
		return
	}

	house, err := h.houseService.CreateHouse(email, payload.Name)
	if err != nil {
		if errors.Is(err, services.ErrInvalidName) {
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		utils.SendJSONError(w, fmt.Sprintf("Error creating house: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(house)
}

func (h *HouseHandler) HandleRenameHouse(w http.ResponseWriter, r *http.Request) {
	email, ok := GetUserEmailFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or identity not found in context", http.StatusUnauthorized)
		return
	}

	var payload struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.SendJSONError(w, "Request body must be JSON with a 'name'", http.StatusBadRequest)
		return
	}

	house, err := h.houseService.RenameHouse(email, r.PathValue("id"), payload.Name)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrHouseNotFound):
			utils.SendJSONError(w, "House not found", http.StatusNotFound)
		case errors.Is(err, services.ErrInvalidName):
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		default:
			utils.SendJSONError(w, fmt.Sprintf("Error renaming house: %v", err), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(house)
}

func (h *HouseHandler) HandleDeleteHouse(w http.ResponseWriter, r *http.Request) {
	email, ok := GetUserEmailFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or identity not found in context", http.StatusUnauthorized)
		return
	}

	if err := h.houseService.DeleteHouse(email, r.PathValue("id")); err != nil {
		if errors.Is(err, services.ErrHouseNotFound) {
			utils.SendJSONError(w, "House not found", http.StatusNotFound)
			return
		}
		utils.SendJSONError(w, fmt.Sprintf("Error deleting house: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "house deleted"})
}

func (h *HouseHandler) HandleSetActiveHouse(w http.ResponseWriter, r *http.Request) {
	email, ok := GetUserEmailFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or identity not found in context", http.StatusUnauthorized)
		return
	}

	var payload struct {
		HouseID string `json:"house_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.HouseID == "" {
		utils.SendJSONError(w, "Request body must be JSON with a non-empty 'house_id'", http.StatusBadRequest)
		return
	}

	if err := h.houseService.SetActiveHouse(email, payload.HouseID); err != nil {
		if errors.Is(err, services.ErrHouseNotFound) {
			utils.SendJSONError(w, "House not found", http.StatusNotFound)
			return
		}
		utils.SendJSONError(w, fmt.Sprintf("Error setting active house: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"active_house": payload.HouseID})
}

func (h *HouseHandler) HandleGetActiveHouse(w http.ResponseWriter, r *http.Request) {
	email, ok := GetUserEmailFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or identity not found in context", http.StatusUnauthorized)
		return
	}

	activeID, err := h.houseService.GetActiveHouse(email)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error retrieving active house: %v", err), http.StatusInternalServerError)
		return
	}
	if activeID == "" {
		utils.SendJSONError(w, "No active house", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"active_house": activeID})
}
