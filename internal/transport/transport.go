// Package transport is the outbound send primitive: one message to one
// address, accepted or rejected. Delivery beyond "accepted for sending"
// is the carrier's problem.
package transport

import "context"

// Transport sends a single message body to a single address.
type Transport interface {
	// Send returns nil once the carrier has accepted the message.
	// A non-nil error means the message was rejected; the error text
	// is surfaced verbatim as the per-recipient failure reason.
	Send(ctx context.Context, address, body string) error
}
