package models

import "time"

// AuthMode selects how a tenant authenticates against its issue tracker.
type AuthMode string

const (
	AuthModeOAuth    AuthMode = "oauth"
	AuthModeAPIToken AuthMode = "api_token"
)

// ProviderType identifies a supported issue tracker.
type ProviderType string

const (
	ProviderTypeJira    ProviderType = "jira"
	ProviderTypeZendesk ProviderType = "zendesk"
)

// TenantCredential is the per-tenant credential record for an issue tracker.
// Token material is stored encrypted; the encryptor is injected at the point
// of use and this model never sees plaintext.
//
// For AuthModeAPIToken the static token lives in AccessTokenEnc and
// RefreshTokenEnc is empty.
type TenantCredential struct {
	TenantID     string       `json:"tenant_id" badgerhold:"key"`
	Provider     ProviderType `json:"provider"`
	AuthMode     AuthMode     `json:"auth_mode"`
	CloudID      string       `json:"cloud_id,omitempty"`  // OAuth: tracker cloud/site identifier
	CloudURL     string       `json:"cloud_url,omitempty"` // site base URL (e.g. https://acme.atlassian.net)
	AccountEmail string       `json:"account_email,omitempty"`
	ProjectKey   string       `json:"project_key,omitempty"` // Jira project (or Zendesk brand) tickets are filed under
	AccessTokenEnc  []byte `json:"access_token_enc,omitempty"`
	RefreshTokenEnc []byte `json:"refresh_token_enc,omitempty"`
	TokenExpiry     int64  `json:"token_expiry,omitempty"` // unix seconds; zero for static tokens
	Connected       bool   `json:"connected"`
	WebhookSecret   string `json:"webhook_secret,omitempty"`
	CreatedAt       int64  `json:"created_at"`
	UpdatedAt       int64  `json:"updated_at"`
}

// Complete reports whether the record carries everything its auth mode needs.
// An OAuth record requires both token fields plus the site identifier its
// provider dials with: Jira goes through api.atlassian.com and needs the
// cloud id, Zendesk talks to the site URL directly. A static-token record
// requires the token and the account email used for basic auth.
func (c *TenantCredential) Complete() bool {
	switch c.AuthMode {
	case AuthModeOAuth:
		if len(c.AccessTokenEnc) == 0 || len(c.RefreshTokenEnc) == 0 {
			return false
		}
		if c.Provider == ProviderTypeJira {
			return c.CloudID != ""
		}
		return c.CloudURL != ""
	case AuthModeAPIToken:
		return len(c.AccessTokenEnc) > 0 && c.AccountEmail != ""
	default:
		return false
	}
}

// ExpiresAt returns the token expiry as a time, or the zero time for static tokens.
func (c *TenantCredential) ExpiresAt() time.Time {
	if c.TokenExpiry == 0 {
		return time.Time{}
	}
	return time.Unix(c.TokenExpiry, 0)
}
