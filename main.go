package main

import (
	"encoding/json"
	stdlog "log"
	"net/http"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/finboard/backend/src/config"
	"github.com/username/finboard/backend/src/database"
	"github.com/username/finboard/backend/src/handlers"
	"github.com/username/finboard/backend/src/logger"
	"github.com/username/finboard/backend/src/security"
	"github.com/username/finboard/backend/src/services"
	"github.com/username/finboard/backend/src/store"
	"golang.org/x/time/rate"
)

func rateLimitMiddleware(limiter *rate.Limiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded",
				"method", r.Method,
				"path", r.URL.Path,
				"remoteAddr", r.RemoteAddr)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowedOrigins := map[string]bool{
			"http://localhost:3000": true,
		}

		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Requested-With, If-None-Match")
			w.Header().Set("Access-Control-Expose-Headers", "ETag")
		} else if origin == "" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		if r.Method == "OPTIONS" {
			logger.L.Debug("Handling OPTIONS preflight request", "path", r.URL.Path, "origin", origin)
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)
	logger.L.Info("Finboard backend server starting...")

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	db, err := database.Init(config.Cfg.DatabasePath)
	if err != nil {
		logger.L.Error("Failed to initialize database", "error", err)
		stdlog.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()
	logger.L.Info("Database initialized successfully.")

	logger.L.Info("Initializing report cache...")
	reportCache := cache.New(config.Cfg.CacheExpiration, config.Cfg.CacheCleanupInterval)

	logger.L.Info("Initializing services and handlers...")
	blobStore := store.New(db)
	identityService := security.NewIdentityService(config.Cfg.IdentitySecret)

	datasetService := services.NewDatasetService(blobStore, reportCache)
	houseService := services.NewHouseService(blobStore)
	dashboardService := services.NewDashboardService(db, reportCache)

	identity := handlers.NewIdentityMiddleware(identityService)
	datasetHandler := handlers.NewDatasetHandler(datasetService, houseService)
	houseHandler := handlers.NewHouseHandler(houseService)
	dashboardHandler := handlers.NewDashboardHandler(dashboardService, houseService)

	logger.L.Info("Configuring routes...")
	rootMux := http.NewServeMux()
	apiRouter := http.NewServeMux()

	withIdentity := func(handler http.HandlerFunc) http.Handler {
		return identity.Wrap(handler)
	}

	apiRouter.Handle("POST /api/datasets/import", withIdentity(datasetHandler.HandleImportDataset))
	apiRouter.Handle("GET /api/datasets", withIdentity(datasetHandler.HandleListDatasets))
	apiRouter.Handle("GET /api/datasets/active", withIdentity(datasetHandler.HandleGetActiveDataset))
	apiRouter.Handle("PUT /api/datasets/active", withIdentity(datasetHandler.HandleSetActiveDataset))
	apiRouter.Handle("GET /api/datasets/{id}", withIdentity(datasetHandler.HandleGetDataset))
	apiRouter.Handle("DELETE /api/datasets/{id}", withIdentity(datasetHandler.HandleDeleteDataset))

	apiRouter.Handle("GET /api/houses", withIdentity(houseHandler.HandleListHouses))
	apiRouter.Handle("POST /api/houses", withIdentity(houseHandler.HandleCreateHouse))
	apiRouter.Handle("GET /api/houses/active", withIdentity(houseHandler.HandleGetActiveHouse))
	apiRouter.Handle("PUT /api/houses/active", withIdentity(houseHandler.HandleSetActiveHouse))
	apiRouter.Handle("PUT /api/houses/{id}", withIdentity(houseHandler.HandleRenameHouse))
	apiRouter.Handle("DELETE /api/houses/{id}", withIdentity(houseHandler.HandleDeleteHouse))

	apiRouter.Handle("GET /api/dashboard/cashflow/daily", withIdentity(dashboardHandler.HandleGetDailyCashflow))
	apiRouter.Handle("GET /api/dashboard/cashflow/rolling", withIdentity(dashboardHandler.HandleGetRollingCashflow))
	apiRouter.Handle("GET /api/dashboard/cashflow/anomalies", withIdentity(dashboardHandler.HandleGetAnomalies))
	apiRouter.Handle("GET /api/dashboard/cashflow/forecast", withIdentity(dashboardHandler.HandleGetForecast))
	apiRouter.Handle("GET /api/dashboard/budget-variance", withIdentity(dashboardHandler.HandleGetBudgetVariance))
	apiRouter.Handle("GET /api/dashboard/liquidity", withIdentity(dashboardHandler.HandleGetLiquidity))
	apiRouter.Handle("GET /api/dashboard/exposure", withIdentity(dashboardHandler.HandleGetExposure))
	apiRouter.Handle("GET /api/dashboard/revenue", withIdentity(dashboardHandler.HandleGetRevenue))

	rootMux.Handle("/api/", apiRouter)

	rootMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" && r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"message": "Finboard backend is running"})
		} else {
			if !strings.HasPrefix(r.URL.Path, "/api/") {
				logger.L.Warn("Root level path not found", "method", r.Method, "path", r.URL.Path)
				http.NotFound(w, r)
			}
		}
	})

	logger.L.Info("Applying global middleware...")
	limiter := rate.NewLimiter(rate.Every(config.Cfg.RateLimitInterval), config.Cfg.RateLimitBurst)
	finalHandler := enableCORS(rateLimitMiddleware(limiter, rootMux))

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      finalHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.L.Error("Failed to start server", "error", err)
		stdlog.Fatalf("Failed to start server: %v", err)
	} else if err == http.ErrServerClosed {
		logger.L.Info("Server stopped gracefully.")
	}
}
