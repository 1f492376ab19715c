package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ternarybob/tessera/internal/interfaces"
)

// DefaultTenantID is used when a request carries no tenant context.
const DefaultTenantID = "main"

// RequireMethod validates that the HTTP request uses the specified method.
// Returns true if the method matches, false otherwise (and writes error response).
func RequireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// WriteJSON writes a JSON response with the specified status code and data.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a standard success JSON response.
func WriteSuccess(w http.ResponseWriter, message string) error {
	return WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": message,
	})
}

// WriteError writes a standard error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, message string) error {
	return WriteJSON(w, statusCode, map[string]string{
		"status": "error",
		"error":  message,
	})
}

// TenantID extracts the tenant context from the X-Tenant-ID header or the
// tenant query parameter, defaulting to the single-tenant id.
func TenantID(r *http.Request) string {
	if tenant := r.Header.Get("X-Tenant-ID"); tenant != "" {
		return tenant
	}
	if tenant := r.URL.Query().Get("tenant"); tenant != "" {
		return tenant
	}
	return DefaultTenantID
}

// WriteServiceError maps service-layer errors onto HTTP responses. Provider
// detail never reaches the caller; it stays in the logs.
func WriteServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, interfaces.ErrNotConfigured):
		WriteError(w, http.StatusNotFound, "Ticketing is not configured for this tenant")
	case errors.Is(err, interfaces.ErrUnauthorized):
		WriteError(w, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, interfaces.ErrNotFound):
		WriteError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, interfaces.ErrNotSupported):
		WriteError(w, http.StatusNotImplemented, "Transitions are not supported by this provider")
	default:
		WriteError(w, http.StatusBadGateway, "Upstream ticketing request failed")
	}
}
