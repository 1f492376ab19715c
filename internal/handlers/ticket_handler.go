package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tessera/internal/interfaces"
	"github.com/ternarybob/tessera/internal/models"
)

// TicketHandler exposes ticket CRUD, comments and transitions over the
// tenant's configured tracker. Every operation resolves the tenant provider
// first, so an unconfigured tenant uniformly yields 404.
type TicketHandler struct {
	resolver interfaces.ProviderResolver
	validate *validator.Validate
	logger   arbor.ILogger
}

// NewTicketHandler creates a new TicketHandler
func NewTicketHandler(resolver interfaces.ProviderResolver, logger arbor.ILogger) *TicketHandler {
	return &TicketHandler{
		resolver: resolver,
		validate: validator.New(),
		logger:   logger,
	}
}

// CreateTicketHandler handles POST /api/tickets
func (h *TicketHandler) CreateTicketHandler(w http.ResponseWriter, r *http.Request) {
	var input models.TicketInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(&input); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid ticket input: "+err.Error())
		return
	}

	provider, err := h.resolver.Resolve(r.Context(), TenantID(r))
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	result, err := provider.CreateTicket(r.Context(), &input)
	if err != nil {
		h.logger.Error().Err(err).Msg("Ticket creation failed")
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

// ListTicketsHandler handles GET /api/tickets?owner=<id>
func (h *TicketHandler) ListTicketsHandler(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("owner")
	if ownerID == "" {
		WriteError(w, http.StatusBadRequest, "Missing owner parameter")
		return
	}

	provider, err := h.resolver.Resolve(r.Context(), TenantID(r))
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	items, err := provider.ListTickets(r.Context(), ownerID)
	if err != nil {
		h.logger.Error().Err(err).Msg("Ticket listing failed")
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"tickets": items,
		"count":   len(items),
	})
}

// GetTicketHandler handles GET /api/tickets/{key}?owner=<id>
func (h *TicketHandler) GetTicketHandler(w http.ResponseWriter, r *http.Request) {
	ticketID := ticketKey(r.URL.Path)
	ownerID := r.URL.Query().Get("owner")
	if ticketID == "" || ownerID == "" {
		WriteError(w, http.StatusBadRequest, "Missing ticket key or owner parameter")
		return
	}

	provider, err := h.resolver.Resolve(r.Context(), TenantID(r))
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	ticket, err := provider.GetTicket(r.Context(), ticketID, ownerID)
	if err != nil {
		h.logger.Error().Err(err).Str("ticket", ticketID).Msg("Ticket fetch failed")
		WriteServiceError(w, err)
		return
	}
	if ticket == nil {
		// Not found and not-yours are indistinguishable on purpose.
		WriteError(w, http.StatusNotFound, "Ticket not found")
		return
	}
	WriteJSON(w, http.StatusOK, ticket)
}

// AddCommentHandler handles POST /api/tickets/{key}/comments
func (h *TicketHandler) AddCommentHandler(w http.ResponseWriter, r *http.Request) {
	ticketID := ticketKey(strings.TrimSuffix(r.URL.Path, "/comments"))
	if ticketID == "" {
		WriteError(w, http.StatusBadRequest, "Missing ticket key")
		return
	}

	var input models.CommentInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(&input); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid comment input: "+err.Error())
		return
	}

	provider, err := h.resolver.Resolve(r.Context(), TenantID(r))
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	ok, err := provider.AddComment(r.Context(), ticketID, &input)
	if err != nil {
		h.logger.Error().Err(err).Str("ticket", ticketID).Msg("Comment creation failed")
		WriteServiceError(w, err)
		return
	}
	if !ok {
		WriteError(w, http.StatusNotFound, "Ticket not found")
		return
	}
	WriteSuccess(w, "Comment added")
}

// TransitionTicketHandler handles POST /api/tickets/{key}/transition
func (h *TicketHandler) TransitionTicketHandler(w http.ResponseWriter, r *http.Request) {
	ticketID := ticketKey(strings.TrimSuffix(r.URL.Path, "/transition"))
	if ticketID == "" {
		WriteError(w, http.StatusBadRequest, "Missing ticket key")
		return
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Status == "" {
		WriteError(w, http.StatusBadRequest, "Missing target status")
		return
	}

	provider, err := h.resolver.Resolve(r.Context(), TenantID(r))
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	supported, err := provider.TransitionTicket(r.Context(), ticketID, body.Status)
	if !supported {
		// Capability absence, not failure.
		WriteServiceError(w, interfaces.ErrNotSupported)
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("ticket", ticketID).Msg("Ticket transition failed")
		WriteServiceError(w, err)
		return
	}
	WriteSuccess(w, "Ticket transitioned")
}

// ticketKey extracts the ticket key from /api/tickets/{key} paths.
func ticketKey(path string) string {
	const prefix = "/api/tickets/"
	if !strings.HasPrefix(path, prefix) {
		return ""
	}
	key := strings.TrimPrefix(path, prefix)
	if strings.Contains(key, "/") {
		return ""
	}
	return key
}
