package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/username/finboard/backend/src/logger"
	"github.com/username/finboard/backend/src/scope"
	"github.com/username/finboard/backend/src/security"
	"github.com/username/finboard/backend/src/services"
	"github.com/username/finboard/backend/src/utils"
)

type contextKey string

const userEmailContextKey = contextKey("userEmail")

// errNoHouseSelected is returned when a request names no house and the
// user has no stored active house either.
var errNoHouseSelected = errors.New("no house selected")

type IdentityMiddleware struct {
	identityService *security.IdentityService
}

func NewIdentityMiddleware(identityService *security.IdentityService) *IdentityMiddleware {
	return &IdentityMiddleware{identityService: identityService}
}

// Wrap validates the bearer token and stores the normalized user email in
// the request context. Identity is opaque here; the upstream auth layer
// owns credentials and sessions.
func (m *IdentityMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			logger.L.Debug("IdentityMiddleware: Authorization header missing", "path", r.URL.Path)
			utils.SendJSONError(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		tokenString := authHeader
		if strings.HasPrefix(authHeader, "Bearer ") {
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
		}
		if tokenString == "" {
			logger.L.Debug("IdentityMiddleware: Token string empty", "path", r.URL.Path)
			utils.SendJSONError(w, "Malformed token", http.StatusUnauthorized)
			return
		}

		email, err := m.identityService.ValidateToken(tokenString)
		if err != nil {
			logger.L.Warn("IdentityMiddleware: Token validation failed", "path", r.URL.Path, "error", err)
			utils.SendJSONError(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userEmailContextKey, scope.NormalizeEmail(email))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUserEmailFromContext returns the authenticated user's normalized
// email, if the identity middleware ran.
func GetUserEmailFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(userEmailContextKey).(string)
	return email, ok && email != ""
}

// resolveHouse picks the house a request operates on: the explicit
// ?house= query parameter when present, otherwise the stored active
// house.
func resolveHouse(r *http.Request, houseService services.HouseService, email string) (string, error) {
	if houseID := strings.TrimSpace(r.URL.Query().Get("house")); houseID != "" {
		return houseID, nil
	}
	active, err := houseService.GetActiveHouse(email)
	if err != nil {
		return "", err
	}
	if active == "" {
		return "", errNoHouseSelected
	}
	return active, nil
}
