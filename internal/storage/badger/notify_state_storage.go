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

// NotifyStateStorage implements the NotificationStateStorage interface for Badger
type NotifyStateStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewNotifyStateStorage creates a new NotifyStateStorage instance
func NewNotifyStateStorage(db *BadgerDB, logger arbor.ILogger) interfaces.NotificationStateStorage {
	return &NotifyStateStorage{
		db:     db,
		logger: logger,
	}
}

// Get returns the notification state for an (owner, ticket) pair, or ErrNotFound
func (s *NotifyStateStorage) Get(ctx context.Context, ownerID, ticketID string) (*models.NotificationState, error) {
	key := models.NotificationStateKey(ownerID, ticketID)

	var state models.NotificationState
	if err := s.db.Store().Get(key, &state); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get notification state: %w", err)
	}
	return &state, nil
}

// Put inserts or replaces the notification state
func (s *NotifyStateStorage) Put(ctx context.Context, state *models.NotificationState) error {
	if state.OwnerID == "" || state.TicketID == "" {
		return fmt.Errorf("owner ID and ticket ID are required")
	}

	state.Key = models.NotificationStateKey(state.OwnerID, state.TicketID)
	state.UpdatedAt = time.Now()

	if err := s.db.Store().Upsert(state.Key, state); err != nil {
		return fmt.Errorf("failed to store notification state: %w", err)
	}
	return nil
}

// Delete removes the notification state for an (owner, ticket) pair
func (s *NotifyStateStorage) Delete(ctx context.Context, ownerID, ticketID string) error {
	key := models.NotificationStateKey(ownerID, ticketID)

	if err := s.db.Store().Delete(key, &models.NotificationState{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil
		}
		return fmt.Errorf("failed to delete notification state: %w", err)
	}
	return nil
}
