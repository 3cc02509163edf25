package ylog

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/bft-labs/ylog/internal/adapters/ws"
	"github.com/bft-labs/ylog/internal/app"
	"github.com/bft-labs/ylog/internal/domain"
)

// Config holds the configuration for a relay server.
// Zero values are replaced by defaults in SetDefaults.
type Config struct {
	// ListenAddr is the TCP address to serve on. Use ":0" for an ephemeral port.
	ListenAddr string

	// LogsheetPath is the append-only logsheet file. Required.
	LogsheetPath string

	// StateDir holds relay-state.json. Defaults to the logsheet's directory.
	StateDir string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	SinkTimeout     time.Duration
	ShutdownTimeout time.Duration

	QueueSize       int
	MaxBatchRecords int
	MaxFrameBytes   int
	OutboundBuffer  int
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":7373"
	}
	if c.StateDir == "" && c.LogsheetPath != "" {
		c.StateDir = filepath.Dir(c.LogsheetPath)
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = ws.DefaultReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = ws.DefaultWriteTimeout
	}
	if c.SinkTimeout <= 0 {
		c.SinkTimeout = app.DefaultSinkTimeout
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = app.ShutdownTimeout
	}
	if c.QueueSize <= 0 {
		c.QueueSize = app.DefaultQueueSize
	}
	if c.MaxBatchRecords <= 0 {
		c.MaxBatchRecords = app.DefaultMaxBatchRecords
	}
	if c.MaxFrameBytes <= 0 {
		c.MaxFrameBytes = ws.DefaultMaxFrameBytes
	}
	if c.OutboundBuffer <= 0 {
		c.OutboundBuffer = ws.DefaultOutboundBuffer
	}
}

// Validate checks required fields.
func (c Config) Validate() error {
	if c.LogsheetPath == "" {
		return fmt.Errorf("%w: logsheet path is required", domain.ErrInvalidConfig)
	}
	return nil
}
