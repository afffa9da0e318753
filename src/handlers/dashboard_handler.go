package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/username/finboard/backend/src/logger"
	"github.com/username/finboard/backend/src/services"
	"github.com/username/finboard/backend/src/utils"
)

type DashboardHandler struct {
	dashboardService services.DashboardService
	houseService     services.HouseService
}

func NewDashboardHandler(dashboardService services.DashboardService, houseService services.HouseService) *DashboardHandler {
	return &DashboardHandler{
		dashboardService: dashboardService,
		houseService:     houseService,
	}
}

// identityAndHouse is the shared preamble for every dashboard GET.
func (h *DashboardHandler) identityAndHouse(w http.ResponseWriter, r *http.Request) (email, houseID string, ok bool) {
	email, ok = GetUserEmailFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or identity not found in context", http.StatusUnauthorized)
		return "", "", false
	}
	houseID, err := resolveHouse(r, h.houseService, email)
	if err != nil {
		if errors.Is(err, errNoHouseSelected) {
			utils.SendJSONError(w, "No house selected. Pass ?house= or set an active house.", http.StatusBadRequest)
		} else {
			utils.SendJSONError(w, "Error resolving house", http.StatusInternalServerError)
		}
		return "", "", false
	}
	return email, houseID, true
}

func daysParam(r *http.Request) int {
	if v := strings.TrimSpace(r.URL.Query().Get("days")); v != "" {
		if days, err := strconv.Atoi(v); err == nil {
			return days
		}
	}
	return 0 // service applies its default
}

// HandleGetDailyCashflow serves the daily series with ETag support; the
// payload is the heaviest on the dashboard and rarely changes within a
// cache window.
func (h *DashboardHandler) HandleGetDailyCashflow(w http.ResponseWriter, r *http.Request) {
	_, houseID, ok := h.identityAndHouse(w, r)
	if !ok {
		return
	}

	payload, err := h.dashboardService.CashflowDaily(houseID, daysParam(r))
	if err != nil {
		logger.L.Error("Error retrieving daily cashflow", "houseID", houseID, "error", err)
		utils.SendJSONError(w, fmt.Sprintf("Error retrieving daily cashflow for house %s: %v", houseID, err), http.StatusInternalServerError)
		return
	}

	currentETag, etagErr := utils.GenerateETag(payload)
	w.Header().Set("Cache-Control", "no-cache, private")

	if etagErr == nil && currentETag != "" {
		quotedETag := fmt.Sprintf("\"%s\"", currentETag)
		w.Header().Set("ETag", quotedETag)
		for _, cETag := range strings.Split(r.Header.Get("If-None-Match"), ",") {
			if strings.TrimSpace(cETag) == quotedETag {
				logger.L.Info("ETag match for daily cashflow", "houseID", houseID, "etag", currentETag)
				w.WriteHeader(http.StatusNotModified)
				return
			}
		}
	} else {
		logger.L.Warn("Proceeding without ETag check due to ETag generation error", "houseID", houseID, "error", etagErr)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.L.Error("Error encoding JSON response for daily cashflow", "houseID", houseID, "error", err)
	}
}

func (h *DashboardHandler) HandleGetRollingCashflow(w http.ResponseWriter, r *http.Request) {
	_, houseID, ok := h.identityAndHouse(w, r)
	if !ok {
		return
	}
	points, err := h.dashboardService.CashflowRolling(houseID)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error retrieving rolling cashflow for house %s: %v", houseID, err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(points)
}

func (h *DashboardHandler) HandleGetAnomalies(w http.ResponseWriter, r *http.Request) {
	_, houseID, ok := h.identityAndHouse(w, r)
	if !ok {
		return
	}
	points, err := h.dashboardService.Anomalies(houseID)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error retrieving anomalies for house %s: %v", houseID, err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(points)
}

func (h *DashboardHandler) HandleGetBudgetVariance(w http.ResponseWriter, r *http.Request) {
	_, houseID, ok := h.identityAndHouse(w, r)
	if !ok {
		return
	}
	lines, err := h.dashboardService.BudgetVariance(houseID, r.URL.Query().Get("period"))
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error retrieving budget variance for house %s: %v", houseID, err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(lines)
}

func (h *DashboardHandler) HandleGetLiquidity(w http.ResponseWriter, r *http.Request) {
	_, houseID, ok := h.identityAndHouse(w, r)
	if !ok {
		return
	}
	snapshot, err := h.dashboardService.Liquidity(houseID)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error retrieving liquidity for house %s: %v", houseID, err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snapshot)
}

func (h *DashboardHandler) HandleGetExposure(w http.ResponseWriter, r *http.Request) {
	_, houseID, ok := h.identityAndHouse(w, r)
	if !ok {
		return
	}
	lines, err := h.dashboardService.Exposure(houseID)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error retrieving exposure for house %s: %v", houseID, err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(lines)
}

func (h *DashboardHandler) HandleGetRevenue(w http.ResponseWriter, r *http.Request) {
	_, houseID, ok := h.identityAndHouse(w, r)
	if !ok {
		return
	}
	points, err := h.dashboardService.RevenueMonthly(houseID)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error retrieving revenue for house %s: %v", houseID, err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(points)
}

func (h *DashboardHandler) HandleGetForecast(w http.ResponseWriter, r *http.Request) {
	_, houseID, ok := h.identityAndHouse(w, r)
	if !ok {
		return
	}
	points, err := h.dashboardService.Forecast(houseID, daysParam(r))
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error retrieving forecast for house %s: %v", houseID, err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(points)
}
