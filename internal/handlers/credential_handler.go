package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tessera/internal/interfaces"
	"github.com/ternarybob/tessera/internal/models"
)

// ConnectRequest is the payload for storing a tenant's tracker credentials.
// OAuth mode requires the cloud id and both tokens; API-token mode requires
// the site URL, account email and token.
type ConnectRequest struct {
	Provider      models.ProviderType `json:"provider" validate:"required,oneof=jira zendesk"`
	AuthMode      models.AuthMode     `json:"auth_mode" validate:"required,oneof=oauth api_token"`
	CloudID       string              `json:"cloud_id,omitempty"`
	CloudURL      string              `json:"cloud_url,omitempty"`
	AccountEmail  string              `json:"account_email,omitempty"`
	ProjectKey    string              `json:"project_key,omitempty"`
	AccessToken   string              `json:"access_token" validate:"required"`
	RefreshToken  string              `json:"refresh_token,omitempty"`
	TokenExpiry   int64               `json:"token_expiry,omitempty"`
	WebhookSecret string              `json:"webhook_secret,omitempty"`
}

// CredentialHandler manages the tenant credential lifecycle. Every write
// invalidates the tenant's cached provider synchronously, before the response
// is sent, so no request after a credential change can see a stale provider.
type CredentialHandler struct {
	credentials interfaces.CredentialStorage
	encryptor   interfaces.Encryptor
	resolver    interfaces.ProviderResolver
	validate    *validator.Validate
	logger      arbor.ILogger
}

// NewCredentialHandler creates a new CredentialHandler
func NewCredentialHandler(
	credentials interfaces.CredentialStorage,
	encryptor interfaces.Encryptor,
	resolver interfaces.ProviderResolver,
	logger arbor.ILogger,
) *CredentialHandler {
	return &CredentialHandler{
		credentials: credentials,
		encryptor:   encryptor,
		resolver:    resolver,
		validate:    validator.New(),
		logger:      logger,
	}
}

// ConnectHandler handles POST /api/credentials/connect
func (h *CredentialHandler) ConnectHandler(w http.ResponseWriter, r *http.Request) {
	var req ConnectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid credential input: "+err.Error())
		return
	}

	tenantID := TenantID(r)
	cred, err := h.buildCredential(tenantID, &req)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.credentials.Store(r.Context(), cred); err != nil {
		h.logger.Error().Err(err).Str("tenant", tenantID).Msg("Failed to store credentials")
		WriteError(w, http.StatusInternalServerError, "Failed to store credentials")
		return
	}
	h.resolver.Invalidate(tenantID)

	h.logger.Info().
		Str("tenant", tenantID).
		Str("provider", string(req.Provider)).
		Str("auth_mode", string(req.AuthMode)).
		Msg("Tenant connected")
	WriteSuccess(w, "Credentials stored")
}

// DisconnectHandler handles POST /api/credentials/disconnect
func (h *CredentialHandler) DisconnectHandler(w http.ResponseWriter, r *http.Request) {
	tenantID := TenantID(r)

	if err := h.credentials.Delete(r.Context(), tenantID); err != nil {
		h.logger.Error().Err(err).Str("tenant", tenantID).Msg("Failed to delete credentials")
		WriteError(w, http.StatusInternalServerError, "Failed to delete credentials")
		return
	}
	h.resolver.Invalidate(tenantID)

	h.logger.Info().Str("tenant", tenantID).Msg("Tenant disconnected")
	WriteSuccess(w, "Credentials removed")
}

// StatusHandler handles GET /api/credentials/status
func (h *CredentialHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	cred, err := h.credentials.Get(r.Context(), TenantID(r))
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			WriteJSON(w, http.StatusOK, map[string]interface{}{"connected": false})
			return
		}
		WriteError(w, http.StatusInternalServerError, "Failed to load credentials")
		return
	}

	status := map[string]interface{}{
		"connected": cred.Connected,
		"provider":  cred.Provider,
		"auth_mode": cred.AuthMode,
	}
	if cred.AuthMode == models.AuthModeOAuth {
		status["token_expiry"] = cred.ExpiresAt().Format(time.RFC3339)
	}
	WriteJSON(w, http.StatusOK, status)
}

// buildCredential encrypts the token material and assembles the record.
func (h *CredentialHandler) buildCredential(tenantID string, req *ConnectRequest) (*models.TenantCredential, error) {
	cred := &models.TenantCredential{
		TenantID:      tenantID,
		Provider:      req.Provider,
		AuthMode:      req.AuthMode,
		CloudID:       req.CloudID,
		CloudURL:      req.CloudURL,
		AccountEmail:  req.AccountEmail,
		ProjectKey:    req.ProjectKey,
		TokenExpiry:   req.TokenExpiry,
		WebhookSecret: req.WebhookSecret,
		Connected:     true,
	}

	accessEnc, err := h.encryptor.Encrypt([]byte(req.AccessToken))
	if err != nil {
		return nil, errors.New("failed to encrypt access token")
	}
	cred.AccessTokenEnc = accessEnc

	if req.RefreshToken != "" {
		refreshEnc, err := h.encryptor.Encrypt([]byte(req.RefreshToken))
		if err != nil {
			return nil, errors.New("failed to encrypt refresh token")
		}
		cred.RefreshTokenEnc = refreshEnc
	}

	if !cred.Complete() {
		return nil, errors.New("incomplete credential set for the selected auth mode")
	}
	return cred, nil
}
