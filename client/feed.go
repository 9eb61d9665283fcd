package client

import "context"

// Feed is a realtime source for one chat surface. The support surface
// backs it with the push channel, the team surface with a poll ticker;
// both deliver into the same conversation-store reconciliation.
type Feed interface {
	// Open starts delivery. It corresponds to the panel opening and is
	// idempotent while the feed is running.
	Open(ctx context.Context) error
	// Close stops delivery and releases the feed's timer or socket.
	// Safe to call more than once.
	Close()
}

var (
	_ Feed = (*SupportChat)(nil)
	_ Feed = (*TeamChat)(nil)
)
