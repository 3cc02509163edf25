package ylog

import (
	"context"
	"io"
	"sync"

	"github.com/bft-labs/ylog/internal/adapters/fs"
	"github.com/bft-labs/ylog/internal/adapters/ws"
	"github.com/bft-labs/ylog/internal/app"
	"github.com/bft-labs/ylog/internal/domain"
	"github.com/bft-labs/ylog/internal/ports"
)

// Server is a contest log relay that can be embedded in other applications.
// Use New() to create an instance, then Start() to begin serving.
type Server struct {
	config    Config
	opts      options
	lifecycle *app.Lifecycle
	logger    ports.Logger
	emitter   *eventEmitterWrapper

	sink      ports.LogSink
	stateRepo ports.StateRepository

	mu       sync.RWMutex
	active   bool
	hub      *app.Hub
	listener *ws.Server
}

// New creates a Server with the given configuration.
// The instance is created in StateStopped; call Start() to begin serving.
func New(cfg Config, opts ...Option) (*Server, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	emitter := &eventEmitterWrapper{handler: o.eventHandler}

	var sink ports.LogSink
	if o.sink != nil {
		sink = o.sink
	} else {
		sink = fs.NewLogsheetFile(cfg.LogsheetPath, o.logger)
	}

	return &Server{
		config:    cfg,
		opts:      o,
		lifecycle: app.NewLifecycle(o.logger, emitter),
		logger:    o.logger,
		emitter:   emitter,
		sink:      sink,
		stateRepo: fs.NewStateFileRepository(cfg.StateDir),
	}, nil
}

// Start binds the listen address and begins serving in the background.
// Returns an error if already running or if startup fails. A server whose
// run crashed must be stopped before it is started again.
// The provided context bounds the lifetime of the server.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		return domain.ErrAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	if err := s.lifecycle.Begin(cancel); err != nil {
		cancel()
		return err
	}

	fail := func(reason string, err error) error {
		s.logger.Error(reason, ports.Err(err))
		cancel()
		_ = s.lifecycle.TransitionTo(app.StateCrashed, reason+": "+err.Error())
		return err
	}

	hub := app.NewHub(app.HubConfig{
		QueueSize:       s.config.QueueSize,
		MaxBatchRecords: s.config.MaxBatchRecords,
		SinkTimeout:     s.config.SinkTimeout,
	}, s.sink, s.stateRepo, s.logger, s.emitter)
	if err := hub.Restore(runCtx); err != nil {
		return fail("restore relay state", err)
	}
	s.lifecycle.Attach(hub)

	pluginCfg := PluginConfig{
		LogsheetPath:   s.config.LogsheetPath,
		StateDir:       s.config.StateDir,
		Logger:         s.logger,
		ReopenLogsheet: s.reopenSink,
	}
	for i, p := range s.opts.plugins {
		if err := p.Initialize(runCtx, pluginCfg); err != nil {
			s.shutdownPlugins(s.opts.plugins[:i])
			return fail("plugin "+p.Name()+" failed to initialize", err)
		}
		s.logger.Info("plugin initialized", ports.String("plugin", p.Name()))
	}

	handler := ws.NewHandler(hub, ws.Config{
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		MaxFrameBytes:  s.config.MaxFrameBytes,
		OutboundBuffer: s.config.OutboundBuffer,
	}, s.logger)
	listener, err := ws.Listen(s.config.ListenAddr, handler, s.logger)
	if err != nil {
		s.shutdownPlugins(s.opts.plugins)
		return fail("listen", err)
	}
	s.hub = hub
	s.listener = listener
	s.active = true

	s.lifecycle.Go("hub", func() error { return hub.Run(runCtx) })
	s.lifecycle.Go("listener", listener.Serve)

	if err := s.lifecycle.TransitionTo(app.StateRunning, "listening on "+listener.Addr().String()); err != nil {
		// A worker failed before the server came up; Stop releases the run.
		if failure := s.lifecycle.Failure(); failure != nil {
			return failure
		}
		return err
	}
	return nil
}

// Stop closes the listener and every station connection, persists what is
// still queued, and waits for the workers up to ShutdownTimeout.
// Returns nil on graceful shutdown, ErrShutdownTimeout if forced. Stopping
// a crashed server releases what its run left behind and returns the
// failure that crashed it.
func (s *Server) Stop() error {
	s.mu.Lock()

	if !s.active {
		s.mu.Unlock()
		return domain.ErrNotRunning
	}
	if err := s.lifecycle.TransitionTo(app.StateStopping, "stop requested"); err != nil && s.lifecycle.State() != app.StateCrashed {
		s.mu.Unlock()
		return err
	}
	s.active = false

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancelShutdown()
	if err := s.listener.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("listener shutdown", ports.Err(err))
	}
	s.hub.DisconnectAll()
	s.mu.Unlock()

	err := s.lifecycle.Drain(s.config.ShutdownTimeout)

	s.shutdownPlugins(s.opts.plugins)
	s.closeSink(shutdownCtx)
	return err
}

// shutdownPlugins shuts plugins down in reverse registration order.
func (s *Server) shutdownPlugins(plugins []Plugin) {
	ctx := context.Background()
	for i := len(plugins) - 1; i >= 0; i-- {
		p := plugins[i]
		if err := p.Shutdown(ctx); err != nil {
			s.logger.Error("plugin shutdown failed",
				ports.String("plugin", p.Name()),
				ports.Err(err))
		}
	}
}

func (s *Server) reopenSink() error {
	r, ok := s.sink.(interface{ Reopen(context.Context) error })
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.config.SinkTimeout)
	defer cancel()
	return r.Reopen(ctx)
}

// closeSink releases the sink without waiting past ctx for a stuck write.
func (s *Server) closeSink(ctx context.Context) {
	var err error
	switch c := s.sink.(type) {
	case interface{ Shutdown(context.Context) error }:
		err = c.Shutdown(ctx)
	case io.Closer:
		err = c.Close()
	}
	if err != nil {
		s.logger.Warn("close logsheet", ports.Err(err))
	}
}

// Status returns the current lifecycle state.
// Safe to call concurrently from any goroutine.
func (s *Server) Status() State {
	return State(s.lifecycle.State())
}

// Addr returns the bound listen address, or "" when not serving.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.active {
		return ""
	}
	return s.listener.Addr().String()
}

// LastSequence returns the last sequence id handed out, or 0 when not started.
func (s *Server) LastSequence() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.hub == nil {
		return 0
	}
	return s.hub.LastSequence()
}
