package interfaces

import "context"

// Notifier delivers outbound notifications to ticket owners. Implementations
// are idempotent per (ownerID, ticketID): repeat sends update the existing
// message surface instead of posting a new one.
type Notifier interface {
	SendOrUpdate(ctx context.Context, ownerID, ticketID, content string) error
}
