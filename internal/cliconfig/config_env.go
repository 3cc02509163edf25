package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (YLOG_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("listen", os.Getenv("YLOG_LISTEN_ADDR"), &cfg.ListenAddr)
	s.setString("logsheet", os.Getenv("YLOG_LOGSHEET"), &cfg.LogsheetPath)
	s.setString("state-dir", os.Getenv("YLOG_STATE_DIR"), &cfg.StateDir)
	s.setString("log-level", os.Getenv("YLOG_LOG_LEVEL"), &cfg.LogLevel)

	if err := s.setDuration("read-timeout", os.Getenv("YLOG_READ_TIMEOUT"), &cfg.ReadTimeout); err != nil {
		return err
	}
	if err := s.setDuration("write-timeout", os.Getenv("YLOG_WRITE_TIMEOUT"), &cfg.WriteTimeout); err != nil {
		return err
	}
	if err := s.setDuration("sink-timeout", os.Getenv("YLOG_SINK_TIMEOUT"), &cfg.SinkTimeout); err != nil {
		return err
	}
	if err := s.setDuration("shutdown-timeout", os.Getenv("YLOG_SHUTDOWN_TIMEOUT"), &cfg.ShutdownTimeout); err != nil {
		return err
	}

	if err := s.setIntFromString("queue-size", os.Getenv("YLOG_QUEUE_SIZE"), &cfg.QueueSize); err != nil {
		return err
	}
	if err := s.setIntFromString("max-batch-records", os.Getenv("YLOG_MAX_BATCH_RECORDS"), &cfg.MaxBatchRecords); err != nil {
		return err
	}
	if err := s.setIntFromString("max-frame-bytes", os.Getenv("YLOG_MAX_FRAME_BYTES"), &cfg.MaxFrameBytes); err != nil {
		return err
	}
	if err := s.setIntFromString("outbound-buffer", os.Getenv("YLOG_OUTBOUND_BUFFER"), &cfg.OutboundBuffer); err != nil {
		return err
	}

	s.setBoolFromString("watch-rotation", os.Getenv("YLOG_WATCH_ROTATION"), &cfg.WatchRotation)

	return nil
}
