package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tessera/internal/common"
	"github.com/ternarybob/tessera/internal/interfaces"
)

// StatusHandler reports application status
type StatusHandler struct {
	credentials interfaces.CredentialStorage
	startedAt   time.Time
	environment string
	logger      arbor.ILogger
}

// NewStatusHandler creates a new StatusHandler
func NewStatusHandler(credentials interfaces.CredentialStorage, environment string, logger arbor.ILogger) *StatusHandler {
	return &StatusHandler{
		credentials: credentials,
		startedAt:   time.Now(),
		environment: environment,
		logger:      logger,
	}
}

// GetStatusHandler handles GET /api/status
func (h *StatusHandler) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	connected := 0
	total := 0
	if creds, err := h.credentials.List(r.Context()); err == nil {
		total = len(creds)
		for _, cred := range creds {
			if cred.Connected {
				connected++
			}
		}
	} else {
		h.logger.Warn().Err(err).Msg("Failed to list credentials for status")
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "running",
		"environment":       h.environment,
		"version":           common.GetVersion(),
		"uptime":            time.Since(h.startedAt).Round(time.Second).String(),
		"tenants":           total,
		"connected_tenants": connected,
	})
}
