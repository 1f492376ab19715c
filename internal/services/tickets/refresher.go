package tickets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tessera/internal/common"
	"golang.org/x/oauth2"
)

// TokenRefresher exchanges a refresh token for a new token pair at the
// tracker's OAuth endpoint. The tracker rotates refresh tokens on every use,
// so callers must persist the returned refresh token and discard the old one.
type TokenRefresher struct {
	conf       *oauth2.Config
	logger     arbor.ILogger
	retryDelay time.Duration
}

// NewTokenRefresher creates a refresher bound to the configured OAuth client.
func NewTokenRefresher(cfg *common.OAuthConfig, logger arbor.ILogger) *TokenRefresher {
	return &TokenRefresher{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL: cfg.TokenURL,
				// Trackers take client credentials in the form body. Setting
				// the style explicitly stops oauth2 from probing the endpoint
				// twice when the first attempt is rejected.
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		logger:     logger,
		retryDelay: 2 * time.Second,
	}
}

// Refresh performs the refresh-token grant. Transient failures (network
// errors, 5xx) are retried once with backoff; a 4xx from the token endpoint
// means the grant is revoked or expired and is terminal; the caller must
// mark the tenant disconnected.
func (r *TokenRefresher) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	token, err := r.exchange(ctx, refreshToken)
	if err == nil {
		return token, nil
	}

	if !isTransient(err) {
		r.logger.Warn().Err(err).Msg("Token refresh rejected by OAuth endpoint")
		return nil, fmt.Errorf("token refresh rejected: %w", err)
	}

	r.logger.Debug().Err(err).Msg("Transient token refresh failure, retrying once")

	select {
	case <-time.After(r.retryDelay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	token, err = r.exchange(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("token refresh failed after retry: %w", err)
	}
	return token, nil
}

func (r *TokenRefresher) exchange(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	src := r.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := src.Token()
	if err != nil {
		return nil, err
	}
	if token.RefreshToken == "" {
		// Endpoints that don't rotate return no refresh token; keep the old
		// one so the credential record stays complete.
		token.RefreshToken = refreshToken
	}
	return token, nil
}

// isTransient reports whether a refresh failure is worth one retry. A 4xx
// from the token endpoint (revoked/expired grant, bad client) is terminal.
func isTransient(err error) bool {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.Response != nil && retrieveErr.Response.StatusCode < http.StatusInternalServerError {
			return false
		}
		return true
	}
	// Anything that never reached the endpoint (DNS, refused connection,
	// timeout) is transient.
	return true
}
