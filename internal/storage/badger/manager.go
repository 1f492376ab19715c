package badger

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tessera/internal/common"
	"github.com/ternarybob/tessera/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db          *BadgerDB
	credential  interfaces.CredentialStorage
	webhookStat interfaces.WebhookStatStorage
	notifyState interfaces.NotificationStateStorage
	logger      arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:          db,
		credential:  NewCredentialStorage(db, logger),
		webhookStat: NewWebhookStatStorage(db, logger),
		notifyState: NewNotifyStateStorage(db, logger),
		logger:      logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// CredentialStorage returns the credential storage interface
func (m *Manager) CredentialStorage() interfaces.CredentialStorage {
	return m.credential
}

// WebhookStatStorage returns the webhook stat storage interface
func (m *Manager) WebhookStatStorage() interfaces.WebhookStatStorage {
	return m.webhookStat
}

// NotificationStateStorage returns the notification state storage interface
func (m *Manager) NotificationStateStorage() interfaces.NotificationStateStorage {
	return m.notifyState
}

// Close closes the underlying database
func (m *Manager) Close() error {
	m.logger.Debug().Msg("Closing Badger storage manager")
	return m.db.Close()
}
