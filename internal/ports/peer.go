package ports

import (
	"github.com/bft-labs/ylog/internal/domain"
	"github.com/bft-labs/ylog/internal/relay"
)

// Peer is one connected station as seen by the relay hub.
type Peer interface {
	// ID returns the connection identifier.
	ID() string

	// State returns the current connection state.
	State() domain.ConnState

	// Send queues msg for delivery without blocking.
	// Returns false if the message was dropped.
	Send(msg relay.Message) bool

	// Close starts closing the connection. It is safe to call more than once.
	Close() error
}
