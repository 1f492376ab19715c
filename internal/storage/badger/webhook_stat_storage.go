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

// WebhookStatStorage implements the WebhookStatStorage interface for Badger
type WebhookStatStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewWebhookStatStorage creates a new WebhookStatStorage instance
func NewWebhookStatStorage(db *BadgerDB, logger arbor.ILogger) interfaces.WebhookStatStorage {
	return &WebhookStatStorage{
		db:     db,
		logger: logger,
	}
}

// Get returns the webhook stats for a tenant, or ErrNotFound
func (s *WebhookStatStorage) Get(ctx context.Context, tenantID string) (*models.WebhookStat, error) {
	var stat models.WebhookStat
	if err := s.db.Store().Get(tenantID, &stat); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get webhook stat: %w", err)
	}
	return &stat, nil
}

// RecordSuccess stamps LastWebhookAt and resets the failure counter
func (s *WebhookStatStorage) RecordSuccess(ctx context.Context, tenantID string, at time.Time) error {
	stat := s.load(tenantID)
	stat.LastWebhookAt = at
	stat.ReceivedCount++
	stat.FailureCount = 0
	stat.UpdatedAt = time.Now()

	if err := s.db.Store().Upsert(tenantID, stat); err != nil {
		return fmt.Errorf("failed to record webhook success: %w", err)
	}
	return nil
}

// RecordFailure increments the failure counter
func (s *WebhookStatStorage) RecordFailure(ctx context.Context, tenantID string) error {
	stat := s.load(tenantID)
	stat.FailureCount++
	stat.UpdatedAt = time.Now()

	if err := s.db.Store().Upsert(tenantID, stat); err != nil {
		return fmt.Errorf("failed to record webhook failure: %w", err)
	}
	return nil
}

func (s *WebhookStatStorage) load(tenantID string) *models.WebhookStat {
	var stat models.WebhookStat
	if err := s.db.Store().Get(tenantID, &stat); err != nil {
		return &models.WebhookStat{TenantID: tenantID}
	}
	return &stat
}
