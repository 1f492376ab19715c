package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tessera/internal/interfaces"
	"github.com/ternarybob/tessera/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// CredentialStorage implements the CredentialStorage interface for Badger
type CredentialStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewCredentialStorage creates a new CredentialStorage instance
func NewCredentialStorage(db *BadgerDB, logger arbor.ILogger) interfaces.CredentialStorage {
	return &CredentialStorage{
		db:     db,
		logger: logger,
	}
}

// Store inserts or replaces the credential record for its tenant
func (s *CredentialStorage) Store(ctx context.Context, cred *models.TenantCredential) error {
	if cred.TenantID == "" {
		return fmt.Errorf("tenant ID is required")
	}

	now := time.Now().Unix()
	if cred.CreatedAt == 0 {
		// Preserve CreatedAt across updates
		var existing models.TenantCredential
		if err := s.db.Store().Get(cred.TenantID, &existing); err == nil {
			cred.CreatedAt = existing.CreatedAt
		} else {
			cred.CreatedAt = now
		}
	}
	cred.UpdatedAt = now

	if err := s.db.Store().Upsert(cred.TenantID, cred); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	return nil
}

// Get returns the credential record for a tenant, or ErrNotFound
func (s *CredentialStorage) Get(ctx context.Context, tenantID string) (*models.TenantCredential, error) {
	var cred models.TenantCredential
	if err := s.db.Store().Get(tenantID, &cred); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}
	return &cred, nil
}

// Delete removes the credential record for a tenant
func (s *CredentialStorage) Delete(ctx context.Context, tenantID string) error {
	if err := s.db.Store().Delete(tenantID, &models.TenantCredential{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return nil
}

// List returns all stored credential records
func (s *CredentialStorage) List(ctx context.Context) ([]*models.TenantCredential, error) {
	var creds []models.TenantCredential
	if err := s.db.Store().Find(&creds, nil); err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}

	result := make([]*models.TenantCredential, len(creds))
	for i := range creds {
		result[i] = &creds[i]
	}
	return result, nil
}
