package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fedsync/fedsync/internal/protocol"
	"github.com/fedsync/fedsync/internal/timebase"
)

const (
	maxMessageBytes         = 4096
	clientWriteTimeout      = 10 * time.Second
	defaultHandshakeTimeout = 10 * time.Second
	clientInboundBuffer     = 256
	closeGracePeriod        = time.Second
)

// DialOption configures a websocket ambassador.
type DialOption func(*dialConfig)

type dialConfig struct {
	handshakeTimeout time.Duration
}

// WithHandshakeTimeout bounds the wait for the exchange's welcome.
func WithHandshakeTimeout(d time.Duration) DialOption {
	return func(cfg *dialConfig) {
		cfg.handshakeTimeout = d
	}
}

// Client is the websocket ambassador. It joins a remote exchange and
// implements syncpoint.Gateway over the federation protocol.
type Client struct {
	federate string
	conn     *websocket.Conn
	inbound  chan protocol.Message

	// The websocket package allows one concurrent writer.
	writeMu sync.Mutex

	closeOnce sync.Once
	done      chan struct{}
}

// Dial connects to an exchange, introduces the federate, and waits for
// the welcome. The returned client is ready for Register and Achieve;
// federation traffic, including any replayed history, arrives on Inbound.
func Dial(ctx context.Context, url, federate string, opts ...DialOption) (*Client, error) {
	cfg := dialConfig{handshakeTimeout: defaultHandshakeTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial exchange %s: %w", url, err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	conn.SetReadLimit(maxMessageBytes)

	c := &Client{
		federate: federate,
		conn:     conn,
		inbound:  make(chan protocol.Message, clientInboundBuffer),
		done:     make(chan struct{}),
	}

	if err := c.write(protocol.Hello(federate)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send hello: %w", err)
	}

	deadline := time.Now().Add(cfg.handshakeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetReadDeadline(deadline)
	_, data, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("read welcome: %w", err)
	}
	m, err := protocol.Decode(data)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("decode welcome: %w", err)
	}
	switch m.Kind {
	case protocol.KindWelcome:
	case protocol.KindError:
		conn.Close()
		return nil, fmt.Errorf("join rejected: %s", m.Detail)
	default:
		conn.Close()
		return nil, fmt.Errorf("expected welcome, got %s", m.Kind)
	}
	conn.SetReadDeadline(time.Time{})

	go c.readLoop()

	slog.Info("joined federation", "federate", federate, "url", url)
	return c, nil
}

// Federate returns the name this ambassador joined under.
func (c *Client) Federate() string {
	return c.federate
}

// Register announces a point to the federation. A nil return means the
// request reached the wire; the announce arrives on Inbound.
func (c *Client) Register(ctx context.Context, label string, at timebase.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.write(protocol.Register(c.federate, label, at))
}

// Achieve declares that this federate reached the barrier.
func (c *Client) Achieve(ctx context.Context, label string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.write(protocol.Achieve(c.federate, label))
}

// Inbound delivers federation traffic. Closed when the connection drops.
func (c *Client) Inbound() <-chan protocol.Message {
	return c.inbound
}

// Resign announces departure and closes the connection.
func (c *Client) Resign() error {
	err := c.write(protocol.Resign(c.federate))
	c.Close()
	return err
}

// Close tears the connection down without a resign notice; the exchange
// treats the disconnect as a resignation. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeGracePeriod))
		c.writeMu.Unlock()
		c.conn.Close()
	})
}

func (c *Client) write(m protocol.Message) error {
	data, err := protocol.Encode(m)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(clientWriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) readLoop() {
	defer close(c.inbound)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				slog.Warn("federation connection lost", "federate", c.federate, "error", err)
			}
			return
		}
		m, err := protocol.Decode(data)
		if err != nil {
			slog.Warn("undecodable federation message", "federate", c.federate, "error", err)
			continue
		}
		select {
		case c.inbound <- m:
		case <-c.done:
			// Nobody is draining inbound anymore; a blocked send here
			// would pin this goroutine past Close.
			return
		}
	}
}
