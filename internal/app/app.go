package app

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tessera/internal/common"
	"github.com/ternarybob/tessera/internal/crypto"
	"github.com/ternarybob/tessera/internal/handlers"
	"github.com/ternarybob/tessera/internal/interfaces"
	"github.com/ternarybob/tessera/internal/services/notify"
	"github.com/ternarybob/tessera/internal/services/scheduler"
	"github.com/ternarybob/tessera/internal/services/tickets"
	"github.com/ternarybob/tessera/internal/services/webhooks"
	"github.com/ternarybob/tessera/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	// Core services
	Encryptor        interfaces.Encryptor
	ProviderFactory  *tickets.Factory
	WebhookService   *webhooks.Service
	Notifier         interfaces.Notifier
	SchedulerService *scheduler.Service

	// HTTP handlers
	APIHandler        *handlers.APIHandler
	StatusHandler     *handlers.StatusHandler
	TicketHandler     *handlers.TicketHandler
	CredentialHandler *handlers.CredentialHandler
	WebhookHandler    *handlers.WebhookHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	storageManager, err := badger.NewManager(logger, &cfg.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	app.StorageManager = storageManager
	credentials := storageManager.CredentialStorage()

	encryptor, err := crypto.NewService(cfg.Encryption.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize encryption: %w", err)
	}
	app.Encryptor = encryptor

	// Provider resolution: cache + refresher + factory
	refresher := tickets.NewTokenRefresher(&cfg.OAuth, logger)
	cache := tickets.NewProviderCache(logger)
	app.ProviderFactory = tickets.NewFactory(credentials, encryptor, refresher, cache, &cfg.Providers, logger)

	// Outbound notifications
	if cfg.Notify.Enabled && cfg.Notify.BotToken != "" {
		var opts []notify.DiscordOption
		if cfg.Notify.APIBaseURL != "" {
			opts = append(opts, notify.WithDiscordBaseURL(cfg.Notify.APIBaseURL))
		}
		client := notify.NewDiscordClient(cfg.Notify.BotToken, logger, opts...)
		app.Notifier = notify.NewService(client, storageManager.NotificationStateStorage(), logger)
	} else {
		logger.Warn().Msg("Outbound notifications disabled")
		app.Notifier = notify.NewNoopNotifier(logger)
	}

	// Webhook ingest pipeline
	app.WebhookService = webhooks.NewService(
		app.ProviderFactory,
		credentials,
		storageManager.WebhookStatStorage(),
		app.Notifier,
		&cfg.Webhook,
		logger,
	)

	// Background token refresh sweep
	if cfg.Scheduler.Enabled {
		app.SchedulerService = scheduler.NewService(credentials, app.ProviderFactory, &cfg.Scheduler, logger)
	}

	// HTTP handlers
	app.APIHandler = handlers.NewAPIHandler()
	app.StatusHandler = handlers.NewStatusHandler(credentials, cfg.Environment, logger)
	app.TicketHandler = handlers.NewTicketHandler(app.ProviderFactory, logger)
	app.CredentialHandler = handlers.NewCredentialHandler(credentials, encryptor, app.ProviderFactory, logger)
	app.WebhookHandler = handlers.NewWebhookHandler(app.WebhookService, storageManager.WebhookStatStorage(), logger)

	logger.Info().Msg("Application initialized")
	return app, nil
}

// Start launches background services.
func (a *App) Start() error {
	if a.SchedulerService != nil {
		if err := a.SchedulerService.Start(); err != nil {
			return err
		}
	}
	return nil
}

// Close releases application resources in reverse initialization order.
func (a *App) Close() {
	if a.SchedulerService != nil {
		a.SchedulerService.Stop()
	}
	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("Failed to close storage")
		}
	}
}
