package common

import (
	"github.com/google/uuid"
)

// NewDeliveryID generates a unique webhook delivery ID with the "whk_" prefix,
// used to correlate log lines for a single inbound webhook.
func NewDeliveryID() string {
	return "whk_" + uuid.New().String()
}
