package cliconfig

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/bft-labs/ylog/internal/domain"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() on defaults error = %v", err)
	}
	if cfg.StateDir != "." {
		t.Errorf("StateDir = %q, want . (derived from logsheet path)", cfg.StateDir)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing listen address", func(c *Config) { c.ListenAddr = "" }},
		{"missing logsheet", func(c *Config) { c.LogsheetPath = "" }},
		{"non-positive read timeout", func(c *Config) { c.ReadTimeout = 0 }},
		{"negative sink timeout", func(c *Config) { c.SinkTimeout = -time.Second }},
		{"zero queue size", func(c *Config) { c.QueueSize = 0 }},
		{"zero batch records", func(c *Config) { c.MaxBatchRecords = 0 }},
		{"zero frame bytes", func(c *Config) { c.MaxFrameBytes = 0 }},
		{"unknown log level", func(c *Config) { c.LogLevel = "loud" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if !errors.Is(err, domain.ErrInvalidConfig) {
				t.Errorf("Validate() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestConfig_Validate_Derivations(t *testing.T) {
	c1 := DefaultConfig()
	c1.LogsheetPath = "/contest/2023/logsheet.txt"
	if err := c1.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if c1.StateDir != "/contest/2023" {
		t.Errorf("StateDir = %v, want /contest/2023", c1.StateDir)
	}

	// StateDir respects explicit override
	c2 := DefaultConfig()
	c2.LogsheetPath = "/contest/2023/logsheet.txt"
	c2.StateDir = "/state"
	if err := c2.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if c2.StateDir != "/state" {
		t.Errorf("StateDir = %v, want /state", c2.StateDir)
	}
}

func TestNewLogger(t *testing.T) {
	if _, err := NewLogger("debug"); err != nil {
		t.Errorf("NewLogger(debug) error = %v", err)
	}
	if _, err := NewLogger("verbose"); err == nil {
		t.Error("NewLogger(verbose) expected error")
	}
}

func TestConfig_ValidateKeepsExplicitValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ListenAddr = "127.0.0.1:9000"
	cfg.StateDir = "/var/lib/ylog"
	want := cfg

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Validate() changed config (-want +got):\n%s", diff)
	}
}
