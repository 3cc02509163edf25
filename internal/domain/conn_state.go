package domain

// ConnState is the lifecycle state of one relay connection.
type ConnState int

const (
	ConnConnecting ConnState = iota
	ConnOpen
	ConnClosing
	ConnClosed
)

// String returns a human-readable representation of the state.
func (s ConnState) String() string {
	switch s {
	case ConnConnecting:
		return "Connecting"
	case ConnOpen:
		return "Open"
	case ConnClosing:
		return "Closing"
	case ConnClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// CanTransitionTo reports whether moving from s to next is allowed.
// Connections only move forward; Connecting may close directly when the
// handshake fails.
func (s ConnState) CanTransitionTo(next ConnState) bool {
	switch s {
	case ConnConnecting:
		return next == ConnOpen || next == ConnClosing || next == ConnClosed
	case ConnOpen:
		return next == ConnClosing || next == ConnClosed
	case ConnClosing:
		return next == ConnClosed
	default:
		return false
	}
}

// Deliverable reports whether a connection in state s may submit or receive broadcasts.
func (s ConnState) Deliverable() bool {
	return s == ConnOpen
}
