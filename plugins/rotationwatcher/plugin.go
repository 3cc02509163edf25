// Package rotationwatcher reopens the logsheet file when it is renamed or
// removed, so the next batch starts a fresh file at the configured path.
package rotationwatcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/ylog/pkg/log"
	"github.com/bft-labs/ylog/pkg/ylog"
)

// Plugin watches the logsheet directory.
type Plugin struct {
	mu sync.Mutex

	debounceDelay time.Duration

	path     string
	reopen   func() error
	logger   ylog.Logger
	watcher  *fsnotify.Watcher
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	debounce *time.Timer
	reopens  int
}

// Config holds configuration options for the rotation watcher plugin.
type Config struct {
	// DebounceDelay coalesces bursts of events (rename then create).
	// Default: 100 milliseconds
	DebounceDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{DebounceDelay: 100 * time.Millisecond}
}

// New creates a rotation watcher.
func New(cfg Config) *Plugin {
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = 100 * time.Millisecond
	}
	return &Plugin{debounceDelay: cfg.DebounceDelay}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "rotationwatcher"
}

// Initialize starts watching the directory that holds the logsheet.
func (p *Plugin) Initialize(ctx context.Context, cfg ylog.PluginConfig) error {
	if cfg.LogsheetPath == "" || cfg.ReopenLogsheet == nil {
		return errors.New("rotationwatcher: logsheet path and reopen hook are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}

	dir := filepath.Dir(cfg.LogsheetPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return err
	}

	p.mu.Lock()
	p.path = filepath.Clean(cfg.LogsheetPath)
	p.reopen = cfg.ReopenLogsheet
	p.logger = logger
	p.watcher = w
	p.mu.Unlock()

	watchCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(1)
	go p.watchLoop(watchCtx)

	logger.Info("rotation watcher started", log.String("dir", dir))
	return nil
}

// Shutdown stops the watcher.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.debounce != nil {
		p.debounce.Stop()
	}
	if p.watcher != nil {
		err := p.watcher.Close()
		p.watcher = nil
		return err
	}
	return nil
}

// Reopens returns how many times the logsheet was reopened.
func (p *Plugin) Reopens() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reopens
}

func (p *Plugin) watchLoop(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != p.path {
				continue
			}
			if event.Op&(fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			p.scheduleReopen()

		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.logger.Warn("rotation watcher error", log.Err(err))
		}
	}
}

func (p *Plugin) scheduleReopen() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.debounce = time.AfterFunc(p.debounceDelay, func() {
		if err := p.reopen(); err != nil {
			p.logger.Error("reopen logsheet failed", log.String("path", p.path), log.Err(err))
			return
		}
		p.mu.Lock()
		p.reopens++
		p.mu.Unlock()
		p.logger.Info("logsheet rotated, reopened", log.String("path", p.path))
	})
}

var _ ylog.Plugin = (*Plugin)(nil)
