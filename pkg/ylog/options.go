package ylog

import (
	"context"

	"github.com/bft-labs/ylog/pkg/log"
)

// Logger is the interface for structured logging.
type Logger = log.Logger

// LogField represents a structured log field.
type LogField = log.Field

// Sink is a durable append-only destination for logsheet text. Append must
// honour ctx and never truncate existing content.
type Sink interface {
	Append(ctx context.Context, p []byte) error
}

// Option configures optional behavior of a Server.
type Option func(*options)

type options struct {
	logger       Logger
	eventHandler EventHandler
	plugins      []Plugin
	sink         Sink
}

func defaultOptions() options {
	return options{
		logger: log.NewNoopLogger(),
	}
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithEventHandler sets a handler for server events.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}

// WithPlugin registers a plugin to be initialized when the server starts.
func WithPlugin(plugin Plugin) Option {
	return func(o *options) {
		o.plugins = append(o.plugins, plugin)
	}
}

// WithSink replaces the logsheet file with a custom sink.
// ReopenLogsheet is then a no-op unless the sink has a
// Reopen(context.Context) error method, and Stop closes it through
// Shutdown(context.Context) error or io.Closer when present.
func WithSink(sink Sink) Option {
	return func(o *options) {
		o.sink = sink
	}
}
