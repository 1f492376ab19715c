package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tessera/internal/interfaces"
	"github.com/ternarybob/tessera/internal/models"
)

// Service sends ticket notifications as Discord DMs, idempotent per
// (owner, ticket) pair: the first event posts a message, later events edit it
// in place so the owner's DM history holds one live surface per ticket. When
// the stored message has been deleted the surface is recreated.
type Service struct {
	client *DiscordClient
	states interfaces.NotificationStateStorage
	logger arbor.ILogger
}

// NewService creates the notification dispatcher.
func NewService(client *DiscordClient, states interfaces.NotificationStateStorage, logger arbor.ILogger) *Service {
	return &Service{
		client: client,
		states: states,
		logger: logger,
	}
}

// SendOrUpdate delivers content to the owner's DM surface for a ticket.
func (s *Service) SendOrUpdate(ctx context.Context, ownerID, ticketID, content string) error {
	state, err := s.states.Get(ctx, ownerID, ticketID)
	if err != nil && !errors.Is(err, interfaces.ErrNotFound) {
		return fmt.Errorf("failed to load notification state: %w", err)
	}

	if state != nil {
		err := s.client.EditMessage(ctx, state.ChannelID, state.MessageID, content)
		if err == nil {
			state.UpdatedAt = time.Now()
			return s.states.Put(ctx, state)
		}
		if !isMessageGone(err) {
			return err
		}
		// The user deleted the message or closed the DM; start over.
		s.logger.Debug().
			Str("owner", ownerID).
			Str("ticket", ticketID).
			Msg("Notification message gone, recreating")
		if derr := s.states.Delete(ctx, ownerID, ticketID); derr != nil {
			return fmt.Errorf("failed to drop stale notification state: %w", derr)
		}
	}

	return s.create(ctx, ownerID, ticketID, content)
}

func (s *Service) create(ctx context.Context, ownerID, ticketID, content string) error {
	channelID, err := s.client.CreateDMChannel(ctx, ownerID)
	if err != nil {
		return err
	}
	messageID, err := s.client.CreateMessage(ctx, channelID, content)
	if err != nil {
		return err
	}

	s.logger.Info().
		Str("owner", ownerID).
		Str("ticket", ticketID).
		Msg("Sent ticket notification")

	return s.states.Put(ctx, &models.NotificationState{
		Key:       models.NotificationStateKey(ownerID, ticketID),
		OwnerID:   ownerID,
		TicketID:  ticketID,
		ChannelID: channelID,
		MessageID: messageID,
		UpdatedAt: time.Now(),
	})
}

// NoopNotifier is wired when outbound messaging is disabled; it logs at debug
// level and reports success.
type NoopNotifier struct {
	logger arbor.ILogger
}

// NewNoopNotifier creates a notifier that drops every message.
func NewNoopNotifier(logger arbor.ILogger) *NoopNotifier {
	return &NoopNotifier{logger: logger}
}

func (n *NoopNotifier) SendOrUpdate(ctx context.Context, ownerID, ticketID, content string) error {
	n.logger.Debug().
		Str("owner", ownerID).
		Str("ticket", ticketID).
		Msg("Notifications disabled, dropping message")
	return nil
}

// Ensure interface compliance
var (
	_ interfaces.Notifier = (*Service)(nil)
	_ interfaces.Notifier = (*NoopNotifier)(nil)
)
