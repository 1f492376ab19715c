package interfaces

import (
	"context"

	"github.com/ternarybob/tessera/internal/models"
)

// TicketProvider is the uniform contract over provider-specific tracker APIs.
//
// Guarded operations take the caller's owner id and treat an ownership
// mismatch exactly like "not found" (nil result, nil error) so callers cannot
// distinguish tickets that exist from tickets that are not theirs.
// GetTicketUnguarded skips that check and is reserved for trusted
// server-initiated paths (webhook processing), which do not yet know the
// owner and extract it from the embedded marker instead.
type TicketProvider interface {
	// Type returns the concrete provider type.
	Type() models.ProviderType

	// CreateTicket submits a new ticket with the ownership marker embedded
	// in the description.
	CreateTicket(ctx context.Context, input *models.TicketInput) (*models.CreateResult, error)

	// ListTickets returns the compact listing of tickets owned by ownerID.
	ListTickets(ctx context.Context, ownerID string) ([]*models.TicketListItem, error)

	// GetTicket fetches the full ticket with comments, verifying the embedded
	// owner matches ownerID. Returns (nil, nil) on not-found or mismatch.
	GetTicket(ctx context.Context, ticketID, ownerID string) (*models.Ticket, error)

	// GetTicketUnguarded fetches without ownership verification and returns
	// the owner id extracted from the embedded marker ("" when unowned).
	// Returns (nil, "", nil) when the ticket does not exist.
	GetTicketUnguarded(ctx context.Context, ticketID string) (*models.Ticket, string, error)

	// AddComment verifies ownership then appends a comment with the marker
	// re-embedded. Returns (nil, nil)-style false when the ticket is not
	// owned by ownerID.
	AddComment(ctx context.Context, ticketID string, input *models.CommentInput) (bool, error)

	// TransitionTicket moves the ticket toward targetStatus. The first return
	// reports whether the provider supports transitions at all; false with a
	// nil error means "not supported", which callers surface distinctly from
	// failure.
	TransitionTicket(ctx context.Context, ticketID, targetStatus string) (bool, error)
}

// ProviderResolver resolves and caches per-tenant ticket providers.
type ProviderResolver interface {
	// Resolve returns a ready provider for the tenant, refreshing OAuth
	// tokens when needed. Returns ErrNotConfigured when the tenant has no
	// usable credentials.
	Resolve(ctx context.Context, tenantID string) (TicketProvider, error)

	// Invalidate drops any cached provider for the tenant. Called
	// synchronously by every credential write.
	Invalidate(tenantID string)
}
