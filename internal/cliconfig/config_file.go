package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	ListenAddr      string `toml:"listen_addr"`
	LogsheetPath    string `toml:"logsheet"`
	StateDir        string `toml:"state_dir"`
	ReadTimeout     string `toml:"read_timeout"`
	WriteTimeout    string `toml:"write_timeout"`
	SinkTimeout     string `toml:"sink_timeout"`
	ShutdownTimeout string `toml:"shutdown_timeout"`
	QueueSize       int    `toml:"queue_size"`
	MaxBatchRecords int    `toml:"max_batch_records"`
	MaxFrameBytes   int    `toml:"max_frame_bytes"`
	OutboundBuffer  int    `toml:"outbound_buffer"`
	LogLevel        string `toml:"log_level"`
	WatchRotation   *bool  `toml:"watch_rotation"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.ylog/config.toml, or "" if the home
// directory cannot be determined.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".ylog", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("listen", fc.ListenAddr, &cfg.ListenAddr)
	s.setString("logsheet", fc.LogsheetPath, &cfg.LogsheetPath)
	s.setString("state-dir", fc.StateDir, &cfg.StateDir)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	if err := s.setDuration("read-timeout", fc.ReadTimeout, &cfg.ReadTimeout); err != nil {
		return err
	}
	if err := s.setDuration("write-timeout", fc.WriteTimeout, &cfg.WriteTimeout); err != nil {
		return err
	}
	if err := s.setDuration("sink-timeout", fc.SinkTimeout, &cfg.SinkTimeout); err != nil {
		return err
	}
	if err := s.setDuration("shutdown-timeout", fc.ShutdownTimeout, &cfg.ShutdownTimeout); err != nil {
		return err
	}

	s.setInt("queue-size", fc.QueueSize, &cfg.QueueSize)
	s.setInt("max-batch-records", fc.MaxBatchRecords, &cfg.MaxBatchRecords)
	s.setInt("max-frame-bytes", fc.MaxFrameBytes, &cfg.MaxFrameBytes)
	s.setInt("outbound-buffer", fc.OutboundBuffer, &cfg.OutboundBuffer)

	s.setBool("watch-rotation", fc.WatchRotation, &cfg.WatchRotation)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
