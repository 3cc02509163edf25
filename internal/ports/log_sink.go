package ports

import "context"

// LogSink is an append-only destination for encoded logsheet text.
type LogSink interface {
	// Append writes p after any existing content. It never truncates.
	// Implementations must honour ctx cancellation and deadlines and
	// report failures as domain.ErrSinkUnavailable. A failed Append may
	// have written a prefix of p; it is not rolled back.
	Append(ctx context.Context, p []byte) error
}

// ReopenableSink is a LogSink whose underlying file can be reopened after
// it has been rotated away externally.
type ReopenableSink interface {
	LogSink

	// Reopen releases the current handle; the next Append recreates the
	// file. It gives up when ctx ends while a write is in flight.
	Reopen(ctx context.Context) error

	// Path returns the destination path.
	Path() string
}
