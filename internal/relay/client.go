package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/net/websocket"

	"github.com/bft-labs/ylog/internal/domain"
	"github.com/bft-labs/ylog/pkg/log"
)

// DialOptions tunes Dial.
type DialOptions struct {
	// Origin is sent in the handshake. Defaults to the URL with an http scheme.
	Origin string

	// Attempts is the number of dial attempts (default 1).
	Attempts int

	// BackoffInitial and BackoffMax bound the delay between attempts.
	BackoffInitial time.Duration
	BackoffMax     time.Duration

	Logger log.Logger
}

// Client is a single station connection to a relay hub.
type Client struct {
	conn *websocket.Conn
}

// Dial connects to the hub at url (ws:// or wss://), retrying with
// exponential backoff until opts.Attempts is exhausted or ctx ends.
func Dial(ctx context.Context, url string, opts DialOptions) (*Client, error) {
	if opts.Attempts <= 0 {
		opts.Attempts = 1
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	origin := opts.Origin
	if origin == "" {
		origin = httpOrigin(url)
	}

	cfg, err := websocket.NewConfig(url, origin)
	if err != nil {
		return nil, fmt.Errorf("websocket config: %w", err)
	}

	bo := newBackoff(opts.BackoffInitial, opts.BackoffMax)
	var lastErr error
	for attempt := 1; attempt <= opts.Attempts; attempt++ {
		conn, err := cfg.DialContext(ctx)
		if err == nil {
			return &Client{conn: conn}, nil
		}
		lastErr = err
		opts.Logger.Warn("dial failed",
			log.String("url", url),
			log.Int("attempt", attempt),
			log.Err(err),
		)
		if attempt == opts.Attempts {
			break
		}
		if err := bo.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("dial %s: %w", url, lastErr)
}

// httpOrigin derives an http(s) origin from a ws(s) URL.
func httpOrigin(url string) string {
	switch {
	case strings.HasPrefix(url, "wss://"):
		return "https://" + strings.TrimPrefix(url, "wss://")
	case strings.HasPrefix(url, "ws://"):
		return "http://" + strings.TrimPrefix(url, "ws://")
	}
	return url
}

// Send writes one message as a text frame.
func (c *Client) Send(ctx context.Context, m Message) error {
	b, err := Encode(m)
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
	}
	return websocket.Message.Send(c.conn, string(b))
}

// Receive reads the next message, honouring ctx's deadline.
func (c *Client) Receive(ctx context.Context) (Message, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetReadDeadline(deadline)
	} else {
		_ = c.conn.SetReadDeadline(time.Time{})
	}
	var frame string
	if err := websocket.Message.Receive(c.conn, &frame); err != nil {
		return Message{}, err
	}
	return Decode([]byte(frame))
}

// SubmitError is returned by Submit when the hub answers with an error.
type SubmitError struct {
	Reason   string
	Sequence uint64
}

func (e *SubmitError) Error() string {
	if e.Sequence > 0 {
		return fmt.Sprintf("relay rejected submission %d: %s", e.Sequence, e.Reason)
	}
	return "relay rejected submission: " + e.Reason
}

// Submit sends a contact and waits for the ack or error carrying ref.
// Broadcasts for other stations' contacts are skipped.
func (c *Client) Submit(ctx context.Context, fields domain.ContactFields, supersedes uint64, ref string) (Message, error) {
	if ref == "" {
		return Message{}, errors.New("submit requires a ref to match the reply")
	}
	if err := c.Send(ctx, NewSubmit(fields, supersedes, ref)); err != nil {
		return Message{}, fmt.Errorf("send submit: %w", err)
	}

	for {
		m, err := c.Receive(ctx)
		if err != nil {
			if errors.Is(err, domain.ErrMalformedMessage) {
				continue
			}
			return Message{}, fmt.Errorf("await reply: %w", err)
		}
		if m.Ref != ref {
			continue
		}
		switch m.Kind {
		case KindAck:
			return m, nil
		case KindError:
			return m, &SubmitError{Reason: m.Reason, Sequence: m.Sequence}
		}
	}
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
