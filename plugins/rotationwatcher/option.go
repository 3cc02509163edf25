package rotationwatcher

import "github.com/bft-labs/ylog/pkg/ylog"

// WithRotationWatcher returns a ylog Option that reopens the logsheet
// after it is rotated away by an external tool.
//
// Usage:
//
//	srv, err := ylog.New(cfg,
//	    rotationwatcher.WithRotationWatcher(rotationwatcher.Config{
//	        DebounceDelay: 200 * time.Millisecond,
//	    }),
//	)
func WithRotationWatcher(cfg Config) ylog.Option {
	return ylog.WithPlugin(New(cfg))
}

// WithDefaultRotationWatcher enables rotation watching with default settings.
func WithDefaultRotationWatcher() ylog.Option {
	return WithRotationWatcher(DefaultConfig())
}
