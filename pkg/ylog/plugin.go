package ylog

import "context"

// Plugin extends a Server. Plugins are initialized in registration order
// when the server starts and shut down in reverse order when it stops.
type Plugin interface {
	Name() string
	Initialize(ctx context.Context, cfg PluginConfig) error
	Shutdown(ctx context.Context) error
}

// PluginConfig is what a plugin gets to work with.
type PluginConfig struct {
	LogsheetPath string
	StateDir     string
	Logger       Logger

	// ReopenLogsheet releases the logsheet handle so the next batch
	// recreates the file at LogsheetPath.
	ReopenLogsheet func() error
}
