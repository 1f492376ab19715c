package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tessera/internal/common"
	"github.com/ternarybob/tessera/internal/interfaces"
	"github.com/ternarybob/tessera/internal/models"
)

// signatureHeader carries the base64 HMAC-SHA256 of the raw request body,
// with or without a "sha256=" prefix.
const signatureHeader = "X-Hub-Signature"

// Result is the outcome of processing one webhook delivery. Skipped
// deliveries are still acknowledged with 200 so upstream automation never
// retries on payload shape variance.
type Result struct {
	OK      bool   `json:"ok"`
	Skipped bool   `json:"skipped,omitempty"`
	Reason  string `json:"-"`
}

// Service is the webhook ingestor: it authenticates inbound tracker webhooks,
// classifies them, fetches authoritative ticket state through the provider
// resolver, and hands qualifying events to the notification dispatcher.
type Service struct {
	resolver      interfaces.ProviderResolver
	credentials   interfaces.CredentialStorage
	stats         interfaces.WebhookStatStorage
	notifier      interfaces.Notifier
	defaultSecret string
	freshness     time.Duration
	asyncDispatch bool
	logger        arbor.ILogger
	now           func() time.Time
}

// NewService creates the webhook ingestor. Dispatch runs on a background
// goroutine so webhook responses never wait on the messaging API.
func NewService(
	resolver interfaces.ProviderResolver,
	credentials interfaces.CredentialStorage,
	stats interfaces.WebhookStatStorage,
	notifier interfaces.Notifier,
	cfg *common.WebhookConfig,
	logger arbor.ILogger,
) *Service {
	return &Service{
		resolver:      resolver,
		credentials:   credentials,
		stats:         stats,
		notifier:      notifier,
		defaultSecret: cfg.DefaultSecret,
		freshness:     cfg.Freshness(),
		asyncDispatch: true,
		logger:        logger,
		now:           time.Now,
	}
}

// Authenticate validates one inbound delivery against the tenant's webhook
// secret. Either the HMAC signature header over the raw body or a
// constant-time-compared secret query token must match. Returns
// ErrNotConfigured when no secret exists for the tenant and ErrUnauthorized
// when neither scheme validates.
func (s *Service) Authenticate(ctx context.Context, tenantID, signature, querySecret string, body []byte) error {
	secret, err := s.webhookSecret(ctx, tenantID)
	if err != nil {
		return err
	}

	if signature != "" && validSignature(signature, secret, body) {
		return nil
	}
	if querySecret != "" && subtle.ConstantTimeCompare([]byte(querySecret), []byte(secret)) == 1 {
		return nil
	}

	s.logger.Warn().Str("tenant", tenantID).Msg("Webhook authentication failed")
	return interfaces.ErrUnauthorized
}

// Process classifies one authenticated delivery and dispatches notifications.
// Malformed or out-of-scope payloads are acknowledged and skipped, never
// errored: the upstream automation tool controls the shape, not us.
func (s *Service) Process(ctx context.Context, tenantID string, body []byte) (*Result, error) {
	result, err := s.process(ctx, tenantID, body)
	if err != nil {
		if serr := s.stats.RecordFailure(ctx, tenantID); serr != nil {
			s.logger.Error().Err(serr).Str("tenant", tenantID).Msg("Failed to record webhook failure")
		}
		return nil, err
	}

	if serr := s.stats.RecordSuccess(ctx, tenantID, s.now()); serr != nil {
		s.logger.Error().Err(serr).Str("tenant", tenantID).Msg("Failed to record webhook delivery")
	}
	if result.Skipped {
		s.logger.Debug().Str("tenant", tenantID).Str("reason", result.Reason).Msg("Webhook acknowledged and skipped")
	}
	return result, nil
}

func (s *Service) process(ctx context.Context, tenantID string, body []byte) (*Result, error) {
	event := parseEvent(body)
	if event.IssueKey == "" {
		return skipped("no issue key"), nil
	}

	switch event.Type {
	case models.EventCommentCreated, models.EventIssueTransitioned, models.EventJiraIssueUpdated:
	default:
		return skipped("ignored event type"), nil
	}

	provider, err := s.resolver.Resolve(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	ticket, ownerID, err := provider.GetTicketUnguarded(ctx, event.IssueKey)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ticket state: %w", err)
	}
	if ticket == nil {
		return skipped("unknown ticket"), nil
	}
	if ownerID == "" {
		return skipped("unowned ticket"), nil
	}

	var content string
	switch event.Type {
	case models.EventCommentCreated:
		comment := latestStaffComment(ticket)
		if comment == nil {
			return skipped("no staff comment"), nil
		}
		if s.now().Sub(comment.Created) > s.freshness {
			// Unrelated triggers must not resurface historical comments.
			return skipped("stale comment"), nil
		}
		content = commentMessage(ticket, comment)
	default:
		content = statusMessage(ticket)
	}

	s.dispatch(ownerID, ticket.ID, content)
	return &Result{OK: true}, nil
}

// dispatch hands the notification to the messaging client without blocking
// the webhook response. Delivery failure is logged, never surfaced upstream.
func (s *Service) dispatch(ownerID, ticketID, content string) {
	send := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.notifier.SendOrUpdate(ctx, ownerID, ticketID, content); err != nil {
			s.logger.Warn().Err(err).
				Str("owner", ownerID).
				Str("ticket", ticketID).
				Msg("Notification dispatch failed")
		}
	}
	if s.asyncDispatch {
		common.SafeGo(s.logger, "webhook-notify", send)
		return
	}
	send()
}

// webhookSecret resolves the secret for a tenant: its credential record's
// secret when set, otherwise the environment-level default.
func (s *Service) webhookSecret(ctx context.Context, tenantID string) (string, error) {
	cred, err := s.credentials.Get(ctx, tenantID)
	if err != nil && !errors.Is(err, interfaces.ErrNotFound) {
		return "", fmt.Errorf("failed to load webhook config: %w", err)
	}
	if cred != nil && cred.WebhookSecret != "" {
		return cred.WebhookSecret, nil
	}
	if s.defaultSecret != "" {
		return s.defaultSecret, nil
	}
	return "", interfaces.ErrNotConfigured
}

func validSignature(signature, secret string, body []byte) bool {
	encoded := strings.TrimPrefix(signature, "sha256=")
	provided, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(provided, mac.Sum(nil))
}

// parseEvent extracts the event type and issue key from either a lightweight
// `{event, issueKey}` payload or a classic Jira `{webhookEvent, issue:{key}}`
// payload.
func parseEvent(body []byte) *models.WebhookEvent {
	var payload struct {
		Event        string `json:"event"`
		WebhookEvent string `json:"webhookEvent"`
		IssueKey     string `json:"issueKey"`
		Issue        struct {
			Key string `json:"key"`
		} `json:"issue"`
	}
	// A malformed body degrades to an empty event, which is skipped.
	_ = json.Unmarshal(body, &payload)

	event := &models.WebhookEvent{
		Type:     payload.Event,
		IssueKey: payload.IssueKey,
	}
	if event.Type == "" {
		event.Type = payload.WebhookEvent
	}
	if event.IssueKey == "" {
		event.IssueKey = payload.Issue.Key
	}
	return event
}

// latestStaffComment returns the most recent comment not authored by the
// ticket owner, or nil when every comment is the owner's.
func latestStaffComment(ticket *models.Ticket) *models.Comment {
	var latest *models.Comment
	for i := range ticket.Comments {
		c := &ticket.Comments[i]
		if !c.Staff {
			continue
		}
		if latest == nil || c.Created.After(latest.Created) {
			latest = c
		}
	}
	return latest
}

func commentMessage(ticket *models.Ticket, comment *models.Comment) string {
	author := comment.Author
	if author == "" {
		author = "Support"
	}
	return fmt.Sprintf("New reply from **%s** on ticket **%s** (%s):\n>>> %s", author, ticket.ID, ticket.Status, comment.Body)
}

func statusMessage(ticket *models.Ticket) string {
	return fmt.Sprintf("Ticket **%s** is now **%s**.", ticket.ID, ticket.Status)
}

func skipped(reason string) *Result {
	return &Result{OK: true, Skipped: true, Reason: reason}
}
