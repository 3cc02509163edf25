package cliconfig

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/bft-labs/ylog/internal/domain"
	"github.com/bft-labs/ylog/pkg/log"
)

// DefaultListenAddr is where the relay listens unless configured otherwise.
const DefaultListenAddr = ":7373"

// Config holds CLI configuration for the ylog relay.
type Config struct {
	ListenAddr   string
	LogsheetPath string
	StateDir     string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	SinkTimeout     time.Duration
	ShutdownTimeout time.Duration

	QueueSize       int
	MaxBatchRecords int
	MaxFrameBytes   int
	OutboundBuffer  int

	LogLevel      string
	WatchRotation bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		ListenAddr:      DefaultListenAddr,
		LogsheetPath:    "logsheet.txt",
		ReadTimeout:     2 * time.Minute,
		WriteTimeout:    10 * time.Second,
		SinkTimeout:     5 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		QueueSize:       256,
		MaxBatchRecords: 64,
		MaxFrameBytes:   64 << 10, // 64KB
		OutboundBuffer:  1024,
		LogLevel:        "info",
		StateDir:        "", // Derived from LogsheetPath during Validate
	}
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("%w: listen address is required", domain.ErrInvalidConfig)
	}
	if c.LogsheetPath == "" {
		return fmt.Errorf("%w: logsheet path is required", domain.ErrInvalidConfig)
	}

	if c.StateDir == "" {
		c.StateDir = filepath.Dir(c.LogsheetPath)
	}

	durations := []struct {
		name string
		d    time.Duration
	}{
		{"read timeout", c.ReadTimeout},
		{"write timeout", c.WriteTimeout},
		{"sink timeout", c.SinkTimeout},
		{"shutdown timeout", c.ShutdownTimeout},
	}
	for _, d := range durations {
		if d.d <= 0 {
			return fmt.Errorf("%w: %s must be positive", domain.ErrInvalidConfig, d.name)
		}
	}

	if c.QueueSize <= 0 {
		return fmt.Errorf("%w: queue size must be positive", domain.ErrInvalidConfig)
	}
	if c.MaxBatchRecords <= 0 {
		return fmt.Errorf("%w: max batch records must be positive", domain.ErrInvalidConfig)
	}
	if c.MaxFrameBytes <= 0 {
		return fmt.Errorf("%w: max frame bytes must be positive", domain.ErrInvalidConfig)
	}

	if _, ok := log.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("%w: unknown log level %q", domain.ErrInvalidConfig, c.LogLevel)
	}
	return nil
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString accepts "true" and "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
