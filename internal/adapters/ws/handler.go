// Package ws serves the relay hub over WebSocket text frames using
// golang.org/x/net/websocket.
package ws

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"

	"github.com/bft-labs/ylog/internal/domain"
	"github.com/bft-labs/ylog/internal/ports"
	"github.com/bft-labs/ylog/internal/relay"
)

// MessagePath is where stations open their relay connection.
const MessagePath = "/message"

// Defaults for Config.
const (
	DefaultReadTimeout    = 2 * time.Minute
	DefaultWriteTimeout   = 10 * time.Second
	DefaultMaxFrameBytes  = 64 << 10
	DefaultOutboundBuffer = 1024
)

// Config tunes per-connection behaviour.
type Config struct {
	// ReadTimeout closes a connection that sends nothing (not even a ping) for this long.
	ReadTimeout time.Duration

	// WriteTimeout bounds each frame write to a slow recipient.
	WriteTimeout time.Duration

	// MaxFrameBytes is the largest accepted inbound frame.
	MaxFrameBytes int

	// OutboundBuffer is the per-connection queue of pending outbound
	// messages. Keep it well above the hub's batch size: a whole batch of
	// acks is queued to every peer at once.
	OutboundBuffer int
}

func (c Config) withDefaults() Config {
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.MaxFrameBytes <= 0 {
		c.MaxFrameBytes = DefaultMaxFrameBytes
	}
	if c.OutboundBuffer <= 0 {
		c.OutboundBuffer = DefaultOutboundBuffer
	}
	return c
}

// Relay is the hub as seen by the connection layer.
type Relay interface {
	Register(p ports.Peer) error
	Unregister(id string)
	HandleSubmission(connID string, raw []byte) relay.Message
}

// NewHandler returns the relay routes: GET /message upgrades to WebSocket,
// GET /up reports liveness.
func NewHandler(r Relay, cfg Config, logger ports.Logger) http.Handler {
	cfg = cfg.withDefaults()
	mux := http.NewServeMux()
	mux.HandleFunc("/up", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	wsServer := websocket.Server{
		// Stations are not authenticated; any origin may connect.
		Handshake: func(*websocket.Config, *http.Request) error { return nil },
		Handler: func(ws *websocket.Conn) {
			serveConn(ws, r, cfg, logger)
		},
	}

	mux.HandleFunc(MessagePath, func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		wsServer.ServeHTTP(w, req)
	})
	return mux
}

func serveConn(ws *websocket.Conn, r Relay, cfg Config, logger ports.Logger) {
	ws.PayloadType = websocket.TextFrame
	ws.MaxPayloadBytes = cfg.MaxFrameBytes

	c := newConn(uuid.NewString(), ws, cfg, logger)
	defer func() {
		r.Unregister(c.id)
		_ = c.Close()
		_ = c.transition(domain.ConnClosed)
		logger.Info("station disconnected", ports.String("conn", c.id))
	}()

	if err := c.transition(domain.ConnOpen); err != nil {
		logger.Warn("open connection", ports.String("conn", c.id), ports.Err(err))
		return
	}
	if err := r.Register(c); err != nil {
		logger.Warn("register connection", ports.String("conn", c.id), ports.Err(err))
		return
	}
	remote := ""
	if req := ws.Request(); req != nil {
		remote = req.RemoteAddr
	}
	logger.Info("station connected", ports.String("conn", c.id), ports.String("remote", remote))

	go c.writeLoop()
	c.readLoop(r)
}

// Server is the HTTP listener carrying the relay routes.
type Server struct {
	listener   net.Listener
	httpServer *http.Server
	logger     ports.Logger
}

// Listen binds addr. Use ":0" for an ephemeral port.
func Listen(addr string, handler http.Handler, logger ports.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return &Server{
		listener: ln,
		httpServer: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}, nil
}

// Addr returns the bound address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve accepts connections until Shutdown is called.
func (s *Server) Serve() error {
	s.logger.Info("relay listening", ports.String("addr", s.Addr().String()))
	if err := s.httpServer.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve relay: %w", err)
	}
	return nil
}

// Shutdown stops accepting new connections. Upgraded WebSocket connections
// are not tracked by net/http and must be closed through the hub.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
