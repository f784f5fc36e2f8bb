package nostr

import "github.com/google/uuid"

// SubscriptionID is an opaque identifier for an active REQ, unique within a
// single relay connection.
type SubscriptionID string

// NewSubscriptionID generates a fresh random subscription id.
func NewSubscriptionID() SubscriptionID {
	return SubscriptionID(uuid.NewString())
}
