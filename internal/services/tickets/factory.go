package tickets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tessera/internal/common"
	"github.com/ternarybob/tessera/internal/httpclient"
	"github.com/ternarybob/tessera/internal/interfaces"
	"github.com/ternarybob/tessera/internal/models"
)

// refreshSkew is how close to expiry a token must be before Resolve refreshes
// it, so a provider handed out near the boundary cannot go stale mid-request.
const refreshSkew = 5 * time.Minute

// Factory builds and caches ticket providers per tenant. It owns the token
// lifecycle: expiring OAuth tokens are refreshed during resolution, rotated
// token pairs are persisted, and a terminal refresh failure marks the tenant
// disconnected so the portal can prompt reconnection.
//
// Two requests racing on the same expiring token may both refresh; this is
// tolerated (the tracker honors refresh-token reuse within a grace window)
// and the last write to the credential store wins.
type Factory struct {
	credentials interfaces.CredentialStorage
	encryptor   interfaces.Encryptor
	refresher   *TokenRefresher
	cache       *ProviderCache
	oauthTTL    time.Duration
	apiTokenTTL time.Duration
	httpTimeout time.Duration
	logger      arbor.ILogger
	now         func() time.Time
}

// NewFactory creates a provider factory.
func NewFactory(
	credentials interfaces.CredentialStorage,
	encryptor interfaces.Encryptor,
	refresher *TokenRefresher,
	cache *ProviderCache,
	cfg *common.ProvidersConfig,
	logger arbor.ILogger,
) *Factory {
	return &Factory{
		credentials: credentials,
		encryptor:   encryptor,
		refresher:   refresher,
		cache:       cache,
		oauthTTL:    cfg.OAuthTTL(),
		apiTokenTTL: cfg.APITokenTTL(),
		httpTimeout: cfg.Timeout(),
		logger:      logger,
		now:         time.Now,
	}
}

// Resolve returns a ready provider for the tenant. Returns ErrNotConfigured
// when the tenant has no usable credential record.
func (f *Factory) Resolve(ctx context.Context, tenantID string) (interfaces.TicketProvider, error) {
	if provider, ok := f.cache.Get(tenantID); ok {
		return provider, nil
	}

	cred, err := f.credentials.Get(ctx, tenantID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, interfaces.ErrNotConfigured
		}
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}
	if !cred.Connected || !cred.Complete() {
		return nil, interfaces.ErrNotConfigured
	}

	var ttl time.Duration
	switch cred.AuthMode {
	case models.AuthModeOAuth:
		if !cred.ExpiresAt().After(f.now().Add(refreshSkew)) {
			cred, err = f.RefreshCredential(ctx, cred)
			if err != nil {
				return nil, err
			}
		}
		ttl = f.oauthTTL
	case models.AuthModeAPIToken:
		ttl = f.apiTokenTTL
	default:
		return nil, interfaces.ErrNotConfigured
	}

	token, err := f.encryptor.Decrypt(cred.AccessTokenEnc)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt access token: %w", err)
	}

	provider, err := f.buildProvider(cred, string(token))
	if err != nil {
		return nil, err
	}

	f.cache.Put(tenantID, provider, ttl)
	return provider, nil
}

// Invalidate drops any cached provider for the tenant. Called synchronously
// by every credential write (connect, reconnect, disconnect).
func (f *Factory) Invalidate(tenantID string) {
	f.cache.Invalidate(tenantID)
}

// RefreshCredential exchanges the tenant's refresh token for a new pair and
// persists it. On terminal failure the tenant is marked disconnected and
// ErrNotConfigured is returned.
func (f *Factory) RefreshCredential(ctx context.Context, cred *models.TenantCredential) (*models.TenantCredential, error) {
	refreshToken, err := f.encryptor.Decrypt(cred.RefreshTokenEnc)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt refresh token: %w", err)
	}

	token, err := f.refresher.Refresh(ctx, string(refreshToken))
	if err != nil {
		f.logger.Warn().Err(err).Str("tenant", cred.TenantID).Msg("Token refresh failed, marking tenant disconnected")
		if derr := f.MarkDisconnected(ctx, cred.TenantID); derr != nil {
			f.logger.Error().Err(derr).Str("tenant", cred.TenantID).Msg("Failed to mark tenant disconnected")
		}
		return nil, interfaces.ErrNotConfigured
	}

	accessEnc, err := f.encryptor.Encrypt([]byte(token.AccessToken))
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt access token: %w", err)
	}
	refreshEnc, err := f.encryptor.Encrypt([]byte(token.RefreshToken))
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt refresh token: %w", err)
	}

	cred.AccessTokenEnc = accessEnc
	cred.RefreshTokenEnc = refreshEnc
	cred.TokenExpiry = token.Expiry.Unix()

	if err := f.credentials.Store(ctx, cred); err != nil {
		return nil, fmt.Errorf("failed to persist refreshed tokens: %w", err)
	}

	f.logger.Info().
		Str("tenant", cred.TenantID).
		Str("expiry", token.Expiry.Format(time.RFC3339)).
		Msg("Refreshed OAuth tokens")

	return cred, nil
}

// MarkDisconnected flags the tenant's credential record as disconnected and
// drops any cached provider.
func (f *Factory) MarkDisconnected(ctx context.Context, tenantID string) error {
	f.cache.Invalidate(tenantID)

	cred, err := f.credentials.Get(ctx, tenantID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil
		}
		return err
	}
	cred.Connected = false
	return f.credentials.Store(ctx, cred)
}

func (f *Factory) buildProvider(cred *models.TenantCredential, token string) (interfaces.TicketProvider, error) {
	client := httpclient.NewPooledHTTPClient(f.httpTimeout)

	switch cred.Provider {
	case models.ProviderTypeJira:
		if cred.AuthMode == models.AuthModeOAuth {
			return NewJiraOAuthProvider(cred.CloudID, token, cred.ProjectKey, f.logger, WithJiraHTTPClient(client)), nil
		}
		return NewJiraBasicProvider(cred.CloudURL, cred.AccountEmail, token, cred.ProjectKey, f.logger, WithJiraHTTPClient(client)), nil
	case models.ProviderTypeZendesk:
		if cred.AuthMode == models.AuthModeOAuth {
			return NewZendeskOAuthProvider(cred.CloudURL, token, f.logger, WithZendeskHTTPClient(client)), nil
		}
		return NewZendeskBasicProvider(cred.CloudURL, cred.AccountEmail, token, f.logger, WithZendeskHTTPClient(client)), nil
	default:
		return nil, fmt.Errorf("unknown provider type %q", cred.Provider)
	}
}

// Ensure Factory implements the ProviderResolver interface
var _ interfaces.ProviderResolver = (*Factory)(nil)
