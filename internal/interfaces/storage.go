package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/tessera/internal/models"
)

// CredentialStorage persists per-tenant issue tracker credentials.
type CredentialStorage interface {
	// Store inserts or replaces the credential record for its tenant.
	Store(ctx context.Context, cred *models.TenantCredential) error

	// Get returns the credential record for a tenant, or ErrNotFound.
	Get(ctx context.Context, tenantID string) (*models.TenantCredential, error)

	// Delete removes the credential record. Deleting an absent record is not
	// an error.
	Delete(ctx context.Context, tenantID string) error

	// List returns all stored credential records.
	List(ctx context.Context) ([]*models.TenantCredential, error)
}

// WebhookStatStorage tracks per-tenant webhook delivery counters.
type WebhookStatStorage interface {
	Get(ctx context.Context, tenantID string) (*models.WebhookStat, error)
	// RecordSuccess stamps LastWebhookAt and resets the failure counter.
	RecordSuccess(ctx context.Context, tenantID string, at time.Time) error
	// RecordFailure increments the failure counter.
	RecordFailure(ctx context.Context, tenantID string) error
}

// NotificationStateStorage persists the DM message surface per (owner, ticket).
type NotificationStateStorage interface {
	Get(ctx context.Context, ownerID, ticketID string) (*models.NotificationState, error)
	Put(ctx context.Context, state *models.NotificationState) error
	Delete(ctx context.Context, ownerID, ticketID string) error
}

// StorageManager provides access to all storage implementations.
type StorageManager interface {
	CredentialStorage() CredentialStorage
	WebhookStatStorage() WebhookStatStorage
	NotificationStateStorage() NotificationStateStorage
	Close() error
}
