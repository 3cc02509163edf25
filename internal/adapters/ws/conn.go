package ws

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	"github.com/bft-labs/ylog/internal/domain"
	"github.com/bft-labs/ylog/internal/ports"
	"github.com/bft-labs/ylog/internal/relay"
)

// conn is one station connection. It implements ports.Peer.
type conn struct {
	id     string
	ws     *websocket.Conn
	config Config
	logger ports.Logger

	mu    sync.Mutex
	state domain.ConnState

	out       chan relay.Message
	done      chan struct{}
	closeOnce sync.Once
}

func newConn(id string, ws *websocket.Conn, cfg Config, logger ports.Logger) *conn {
	return &conn{
		id:     id,
		ws:     ws,
		config: cfg,
		logger: logger,
		state:  domain.ConnConnecting,
		out:    make(chan relay.Message, cfg.OutboundBuffer),
		done:   make(chan struct{}),
	}
}

func (c *conn) ID() string { return c.id }

func (c *conn) State() domain.ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *conn) transition(next domain.ConnState) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.CanTransitionTo(next) {
		return fmt.Errorf("%s -> %s: %w", c.state, next, domain.ErrInvalidTransition)
	}
	c.state = next
	return nil
}

// Send queues m for the writer goroutine. When the queue is full it waits
// up to WriteTimeout for the writer to make room; a peer whose writer makes
// no progress for that long is stuck and gets closed.
func (c *conn) Send(m relay.Message) bool {
	if !c.State().Deliverable() {
		return false
	}
	select {
	case <-c.done:
		return false
	case c.out <- m:
		return true
	default:
	}

	timer := time.NewTimer(c.config.WriteTimeout)
	defer timer.Stop()
	select {
	case c.out <- m:
		return true
	case <-c.done:
		return false
	case <-timer.C:
		c.logger.Warn("outbound queue stalled, closing connection",
			ports.String("conn", c.id),
			ports.Int("queued", len(c.out)),
			ports.Duration("waited", c.config.WriteTimeout),
		)
		_ = c.Close()
		return false
	}
}

// Close moves the connection to Closing and unblocks both workers.
func (c *conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		if c.state.CanTransitionTo(domain.ConnClosing) {
			c.state = domain.ConnClosing
		}
		c.mu.Unlock()
		close(c.done)
		err = c.ws.Close()
	})
	return err
}

// writeLoop drains the outbound queue until the connection closes.
func (c *conn) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case m := <-c.out:
			if err := c.write(m); err != nil {
				c.logger.Debug("write failed", ports.String("conn", c.id), ports.Err(err))
				_ = c.Close()
				return
			}
		}
	}
}

func (c *conn) write(m relay.Message) error {
	b, err := relay.Encode(m)
	if err != nil {
		return err
	}
	if c.config.WriteTimeout > 0 {
		_ = c.ws.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	}
	return websocket.Message.Send(c.ws, string(b))
}

// readLoop hands every inbound frame to the relay until the peer goes
// away, idles past the read timeout, or the connection is closed.
func (c *conn) readLoop(r Relay) {
	for {
		if c.config.ReadTimeout > 0 {
			_ = c.ws.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		}

		var frame []byte
		err := websocket.Message.Receive(c.ws, &frame)
		if errors.Is(err, websocket.ErrFrameTooLarge) {
			c.Send(relay.NewError(relay.ReasonMalformed, "", 0))
			continue
		}
		if err != nil {
			select {
			case <-c.done:
			default:
				c.logger.Debug("connection read ended", ports.String("conn", c.id), ports.Err(err))
			}
			return
		}

		reply := r.HandleSubmission(c.id, frame)
		if reply.Kind == relay.KindError {
			c.Send(reply)
		}
	}
}
