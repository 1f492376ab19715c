package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tessera/internal/common"
	"github.com/ternarybob/tessera/internal/interfaces"
	"github.com/ternarybob/tessera/internal/models"
)

// CredentialRefresher rotates one tenant's OAuth token pair. Implemented by
// the ticket provider factory.
type CredentialRefresher interface {
	RefreshCredential(ctx context.Context, cred *models.TenantCredential) (*models.TenantCredential, error)
}

// Service runs the background sweep that pre-refreshes OAuth tokens expiring
// soon, so interactive requests and webhooks rarely pay the refresh
// round-trip themselves. Tenants whose refresh fails terminally are marked
// disconnected by the refresher.
type Service struct {
	credentials interfaces.CredentialStorage
	refresher   CredentialRefresher
	cron        *cron.Cron
	schedule    string
	horizon     time.Duration
	logger      arbor.ILogger
	now         func() time.Time
}

// NewService creates the token refresh sweep.
func NewService(
	credentials interfaces.CredentialStorage,
	refresher CredentialRefresher,
	cfg *common.SchedulerConfig,
	logger arbor.ILogger,
) *Service {
	return &Service{
		credentials: credentials,
		refresher:   refresher,
		cron:        cron.New(),
		schedule:    cfg.Schedule,
		horizon:     cfg.Horizon(),
		logger:      logger,
		now:         time.Now,
	}
}

// Start registers the sweep and starts the cron scheduler.
func (s *Service) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.sweep); err != nil {
		return fmt.Errorf("failed to schedule token refresh sweep: %w", err)
	}
	s.cron.Start()
	s.logger.Info().Str("schedule", s.schedule).Msg("Started token refresh sweep")
	return nil
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (s *Service) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("Stopped token refresh sweep")
}

// sweep refreshes every connected OAuth tenant whose token expires within the
// horizon. One tenant's failure never stops the sweep.
func (s *Service) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	creds, err := s.credentials.List(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Token sweep failed to list credentials")
		return
	}

	deadline := s.now().Add(s.horizon)
	refreshed := 0
	for _, cred := range creds {
		if !cred.Connected || cred.AuthMode != models.AuthModeOAuth {
			continue
		}
		if cred.ExpiresAt().After(deadline) {
			continue
		}
		if _, err := s.refresher.RefreshCredential(ctx, cred); err != nil {
			s.logger.Warn().Err(err).Str("tenant", cred.TenantID).Msg("Sweep refresh failed")
			continue
		}
		refreshed++
	}

	if refreshed > 0 {
		s.logger.Info().Int("refreshed", refreshed).Msg("Token refresh sweep complete")
	}
}
