package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/username/finboard/backend/src/config"
	"github.com/username/finboard/backend/src/logger"
	"github.com/username/finboard/backend/src/security/validation"
	"github.com/username/finboard/backend/src/services"
	"github.com/username/finboard/backend/src/utils"
)

type DatasetHandler struct {
	datasetService services.DatasetService
	houseService   services.HouseService
}

func NewDatasetHandler(datasetService services.DatasetService, houseService services.HouseService) *DatasetHandler {
	return &DatasetHandler{
		datasetService: datasetService,
		houseService:   houseService,
	}
}

func (h *DatasetHandler) HandleImportDataset(w http.ResponseWriter, r *http.Request) {
	email, ok := GetUserEmailFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or identity not found in context", http.StatusUnauthorized)
		return
	}

	houseID, err := resolveHouse(r, h.houseService, email)
	if err != nil {
		if errors.Is(err, errNoHouseSelected) {
			utils.SendJSONError(w, "No house selected. Pass ?house= or set an active house.", http.StatusBadRequest)
			return
		}
		utils.SendJSONError(w, "Error resolving house", http.StatusInternalServerError)
		return
	}

	if err := r.ParseMultipartForm(config.Cfg.MaxUploadSizeBytes); err != nil {
		logger.L.Warn("Failed to parse multipart form or request too large", "houseID", houseID, "error", err, "limit", config.Cfg.MaxUploadSizeBytes)
		utils.SendJSONError(w, fmt.Sprintf("Failed to parse form or request too large (max %d MB)", config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		logger.L.Warn("Failed to retrieve file from request", "houseID", houseID, "error", err)
		utils.SendJSONError(w, "Failed to retrieve file from request. Ensure 'file' field is used.", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if fileHeader.Size > config.Cfg.MaxUploadSizeBytes {
		logger.L.Warn("Uploaded file header reports size too large", "houseID", houseID, "fileSize", fileHeader.Size, "limit", config.Cfg.MaxUploadSizeBytes)
		utils.SendJSONError(w, fmt.Sprintf("File too large, max %d MB (header check)", config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}

	clientContentType := fileHeader.Header.Get("Content-Type")
	if err := validation.ValidateClientContentType(clientContentType); err != nil {
		logger.L.Warn("Invalid client-declared file type", "houseID", houseID, "contentType", clientContentType, "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	detectedContentType, err := validation.ValidateFileContentByMagicBytes(file)
	if err != nil {
		logger.L.Warn("Server-side file content validation failed", "houseID", houseID, "filename", fileHeader.Filename, "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	logger.L.Info("File content validated", "houseID", houseID, "filename", fileHeader.Filename, "clientType", clientContentType, "detectedType", detectedContentType)

	dataset, err := h.datasetService.ImportDataset(file, email, houseID, r.FormValue("name"))
	if err != nil {
		if errors.Is(err, services.ErrParsingFailed) {
			logger.L.Warn("Dataset import failed due to parsing errors", "houseID", houseID, "filename", fileHeader.Filename, "error", err)
			utils.SendJSONError(w, fmt.Sprintf("Error parsing file: %v", err), http.StatusBadRequest)
		} else {
			logger.L.Error("Internal error importing dataset", "houseID", houseID, "filename", fileHeader.Filename, "error", err)
			utils.SendJSONError(w, "An internal error occurred while importing the dataset. Please try again later.", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(dataset); err != nil {
		logger.L.Error("Error encoding JSON response for dataset import", "houseID", houseID, "error", err)
	}
}

func (h *DatasetHandler) HandleListDatasets(w http.ResponseWriter, r *http.Request) {
	email, ok := GetUserEmailFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or identity not found in context", http.StatusUnauthorized)
		return
	}
	houseID, err := resolveHouse(r, h.houseService, email)
	if err != nil {
		if errors.Is(err, errNoHouseSelected) {
			utils.SendJSONError(w, "No house selected. Pass ?house= or set an active house.", http.StatusBadRequest)
			return
		}
		utils.SendJSONError(w, "Error resolving house", http.StatusInternalServerError)
		return
	}

	datasets, err := h.datasetService.ListDatasets(email, houseID)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error listing datasets for house %s: %v", houseID, err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(datasets)
}

func (h *DatasetHandler) HandleGetDataset(w http.ResponseWriter, r *http.Request) {
	email, ok := GetUserEmailFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or identity not found in context", http.StatusUnauthorized)
		return
	}
	houseID, err := resolveHouse(r, h.houseService, email)
	if err != nil {
		utils.SendJSONError(w, "No house selected", http.StatusBadRequest)
		return
	}

	dataset, err := h.datasetService.GetDataset(email, houseID, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, services.ErrDatasetNotFound) {
			utils.SendJSONError(w, "Dataset not found", http.StatusNotFound)
			return
		}
		utils.SendJSONError(w, fmt.Sprintf("Error retrieving dataset: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(dataset)
}

func (h *DatasetHandler) HandleDeleteDataset(w http.ResponseWriter, r *http.Request) {
	email, ok := GetUserEmailFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or identity not found in context", http.StatusUnauthorized)
		return
	}
	houseID, err := resolveHouse(r, h.houseService, email)
	if err != nil {
		utils.SendJSONError(w, "No house selected", http.StatusBadRequest)
		return
	}

	if err := h.datasetService.DeleteDataset(email, houseID, r.PathValue("id")); err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error deleting dataset: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "dataset deleted"})
}

func (h *DatasetHandler) HandleSetActiveDataset(w http.ResponseWriter, r *http.Request) {
	email, ok := GetUserEmailFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or identity not found in context", http.StatusUnauthorized)
		return
	}
	houseID, err := resolveHouse(r, h.houseService, email)
	if err != nil {
		utils.SendJSONError(w, "No house selected", http.StatusBadRequest)
		return
	}

	var payload struct {
		DatasetID string `json:"dataset_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.DatasetID == "" {
		utils.SendJSONError(w, "Request body must be JSON with a non-empty 'dataset_id'", http.StatusBadRequest)
		return
	}

	if err := h.datasetService.SetActiveDataset(email, houseID, payload.DatasetID); err != nil {
		if errors.Is(err, services.ErrDatasetNotFound) {
			utils.SendJSONError(w, "Dataset not found", http.StatusNotFound)
			return
		}
		utils.SendJSONError(w, fmt.Sprintf("Error setting active dataset: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"active_dataset": payload.DatasetID})
}

func (h *DatasetHandler) HandleGetActiveDataset(w http.ResponseWriter, r *http.Request) {
	email, ok := GetUserEmailFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or identity not found in context", http.StatusUnauthorized)
		return
	}
	houseID, err := resolveHouse(r, h.houseService, email)
	if err != nil {
		utils.SendJSONError(w, "No house selected", http.StatusBadRequest)
		return
	}

	dataset, err := h.datasetService.GetActiveDataset(email, houseID)
	if err != nil {
		if errors.Is(err, services.ErrDatasetNotFound) {
			utils.SendJSONError(w, "No active dataset", http.StatusNotFound)
			return
		}
		utils.SendJSONError(w, fmt.Sprintf("Error retrieving active dataset: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(dataset)
}
