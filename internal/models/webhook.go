package models

import "time"

// Webhook event types accepted by the ingest pipeline. Everything else is
// acknowledged and skipped.
const (
	EventCommentCreated    = "comment_created"
	EventIssueTransitioned = "issue_transitioned"
	EventJiraIssueUpdated  = "jira:issue_updated"
)

// WebhookEvent is the per-request projection of an inbound webhook payload.
// It exists only for the duration of request processing.
type WebhookEvent struct {
	Type     string `json:"type"`
	IssueKey string `json:"issue_key"`
	TenantID string `json:"tenant_id"`
}

// WebhookStat tracks per-tenant webhook delivery health. FailureCount is
// observability plumbing only; nothing auto-disables a tenant from it.
type WebhookStat struct {
	TenantID      string    `json:"tenant_id" badgerhold:"key"`
	LastWebhookAt time.Time `json:"last_webhook_at"`
	ReceivedCount int       `json:"received_count"`
	FailureCount  int       `json:"failure_count"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NotificationState records the outbound DM surface for an (owner, ticket)
// pair so repeat notifications edit the existing message instead of posting
// a new one.
type NotificationState struct {
	Key       string    `json:"key" badgerhold:"key"` // ownerID + ":" + ticketID
	OwnerID   string    `json:"owner_id"`
	TicketID  string    `json:"ticket_id"`
	ChannelID string    `json:"channel_id"`
	MessageID string    `json:"message_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NotificationStateKey builds the storage key for an (owner, ticket) pair.
func NotificationStateKey(ownerID, ticketID string) string {
	return ownerID + ":" + ticketID
}
