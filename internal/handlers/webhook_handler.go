package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tessera/internal/common"
	"github.com/ternarybob/tessera/internal/interfaces"
	"github.com/ternarybob/tessera/internal/models"
	"github.com/ternarybob/tessera/internal/services/webhooks"
)

// maxWebhookBody bounds inbound payload size.
const maxWebhookBody = 1 << 20

// WebhookHandler receives tracker webhooks and exposes per-tenant delivery
// stats.
type WebhookHandler struct {
	service *webhooks.Service
	stats   interfaces.WebhookStatStorage
	logger  arbor.ILogger
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(service *webhooks.Service, stats interfaces.WebhookStatStorage, logger arbor.ILogger) *WebhookHandler {
	return &WebhookHandler{
		service: service,
		stats:   stats,
		logger:  logger,
	}
}

// IngestHandler handles POST /webhooks/ticketing
func (h *WebhookHandler) IngestHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	tenantID := TenantID(r)
	deliveryID := common.NewDeliveryID()
	h.logger.Debug().
		Str("delivery", deliveryID).
		Str("tenant", tenantID).
		Int("bytes", len(body)).
		Msg("Webhook received")

	err = h.service.Authenticate(r.Context(), tenantID,
		r.Header.Get("X-Hub-Signature"), r.URL.Query().Get("secret"), body)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	result, err := h.service.Process(r.Context(), tenantID, body)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotConfigured) {
			WriteServiceError(w, err)
			return
		}
		h.logger.Error().Err(err).
			Str("delivery", deliveryID).
			Str("tenant", tenantID).
			Msg("Webhook processing failed")
		// The failure is recorded in the tenant stats; acknowledge so the
		// tracker does not redeliver an event we cannot process.
		WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

// StatsHandler handles GET /api/webhooks/stats
func (h *WebhookHandler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	tenantID := TenantID(r)
	stat, err := h.stats.Get(r.Context(), tenantID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			// A tenant with no recorded deliveries reports zeroes.
			WriteJSON(w, http.StatusOK, &models.WebhookStat{TenantID: tenantID})
			return
		}
		WriteError(w, http.StatusInternalServerError, "Failed to load webhook stats")
		return
	}
	WriteJSON(w, http.StatusOK, stat)
}
