package cliconfig

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestApplyEnvConfig(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		changed  map[string]bool
		initial  Config
		expected Config
		wantErr  bool
	}{
		{
			name: "applies all valid env vars",
			envVars: map[string]string{
				"YLOG_LISTEN_ADDR":    ":9000",
				"YLOG_LOGSHEET":       "/env/logsheet.txt",
				"YLOG_SINK_TIMEOUT":   "2s",
				"YLOG_QUEUE_SIZE":     "10",
				"YLOG_WATCH_ROTATION": "true",
				"YLOG_LOG_LEVEL":      "debug",
			},
			changed: map[string]bool{},
			initial: Config{},
			expected: Config{
				ListenAddr:    ":9000",
				LogsheetPath:  "/env/logsheet.txt",
				SinkTimeout:   2 * time.Second,
				QueueSize:     10,
				WatchRotation: true,
				LogLevel:      "debug",
			},
		},
		{
			name: "respects changed flags",
			envVars: map[string]string{
				"YLOG_LISTEN_ADDR": ":9000",
				"YLOG_LOGSHEET":    "/env/logsheet.txt",
			},
			changed: map[string]bool{"listen": true},
			initial: Config{ListenAddr: ":7000"},
			expected: Config{
				ListenAddr:   ":7000",
				LogsheetPath: "/env/logsheet.txt",
			},
		},
		{
			name:     "non-positive int is ignored",
			envVars:  map[string]string{"YLOG_QUEUE_SIZE": "0"},
			changed:  map[string]bool{},
			initial:  Config{QueueSize: 5},
			expected: Config{QueueSize: 5},
		},
		{
			name:     "returns error for invalid duration",
			envVars:  map[string]string{"YLOG_READ_TIMEOUT": "not-a-duration"},
			changed:  map[string]bool{},
			initial:  Config{},
			expected: Config{},
			wantErr:  true,
		},
		{
			name:     "returns error for invalid int",
			envVars:  map[string]string{"YLOG_MAX_BATCH_RECORDS": "not-a-number"},
			changed:  map[string]bool{},
			initial:  Config{},
			expected: Config{},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg := tt.initial
			err := ApplyEnvConfig(&cfg, tt.changed)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ApplyEnvConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if diff := cmp.Diff(tt.expected, cfg); diff != "" {
				t.Errorf("ApplyEnvConfig() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// Integration test: precedence order (CLI > Env > File)
func TestConfigPrecedence(t *testing.T) {
	trueVal := true

	fileConf := FileConfig{
		ListenAddr:    ":1111",
		LogsheetPath:  "/file/logsheet.txt",
		WatchRotation: &trueVal,
	}

	t.Setenv("YLOG_LISTEN_ADDR", ":2222")
	t.Setenv("YLOG_LOGSHEET", "/env/logsheet.txt")
	t.Setenv("YLOG_STATE_DIR", "/env/state")

	// Simulate CLI flags
	changed := map[string]bool{
		"listen": true,
	}
	cfg := Config{
		ListenAddr: ":3333",
	}

	if err := ApplyFileConfig(&cfg, fileConf, changed); err != nil {
		t.Fatalf("ApplyFileConfig failed: %v", err)
	}
	if err := ApplyEnvConfig(&cfg, changed); err != nil {
		t.Fatalf("ApplyEnvConfig failed: %v", err)
	}

	want := Config{
		ListenAddr:    ":3333",              // CLI wins
		LogsheetPath:  "/env/logsheet.txt", // env overrides file
		StateDir:      "/env/state",
		WatchRotation: true, // file sets
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("precedence mismatch (-want +got):\n%s", diff)
	}
}
