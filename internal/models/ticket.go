package models

import "time"

// StatusCategory is the normalized status vocabulary exposed to callers.
// Provider-specific statuses are mapped onto this closed set so callers never
// branch on tracker vocabulary.
type StatusCategory string

const (
	StatusCategoryNew           StatusCategory = "new"
	StatusCategoryIndeterminate StatusCategory = "indeterminate"
	StatusCategoryDone          StatusCategory = "done"
	StatusCategoryUndefined     StatusCategory = "undefined"
)

// Ticket is a read projection over an issue in the external tracker.
// Description and comment bodies are sanitized before they leave the
// provider layer.
type Ticket struct {
	ID             string         `json:"id"`
	Summary        string         `json:"summary"`
	Description    string         `json:"description"`
	Status         string         `json:"status"`
	StatusCategory StatusCategory `json:"status_category"`
	Comments       []Comment      `json:"comments"`
}

// Comment is a single ticket comment. Staff marks comments not authored by
// the ticket owner (no ownership marker, or a different owner id).
type Comment struct {
	ID      string    `json:"id"`
	Author  string    `json:"author"`
	Body    string    `json:"body"`
	Staff   bool      `json:"staff"`
	Created time.Time `json:"created"`
}

// TicketListItem is the compact projection used for owner-scoped listings.
type TicketListItem struct {
	ID             string         `json:"id"`
	Summary        string         `json:"summary"`
	Status         string         `json:"status"`
	StatusCategory StatusCategory `json:"status_category"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// TicketInput is the payload for creating a ticket on behalf of an owner.
type TicketInput struct {
	OwnerID     string `json:"owner_id" validate:"required,numeric,min=15,max=20"`
	DisplayName string `json:"display_name,omitempty" validate:"omitempty,max=128"`
	Summary     string `json:"summary" validate:"required,max=255"`
	Description string `json:"description" validate:"required"`
}

// CommentInput is the payload for appending a comment to an owned ticket.
type CommentInput struct {
	OwnerID string `json:"owner_id" validate:"required,numeric,min=15,max=20"`
	Body    string `json:"body" validate:"required"`
}

// CreateResult is the outcome of a ticket creation attempt. Error carries a
// caller-safe message only; provider error bodies stay in the logs.
type CreateResult struct {
	Success  bool   `json:"success"`
	TicketID string `json:"ticket_id,omitempty"`
	Error    string `json:"error,omitempty"`
}
