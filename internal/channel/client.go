package channel

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gorilla/websocket"

	"github.com/bethropolis/tandem/internal/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	DefaultQueueSize      = 64
	DefaultInitialBackoff = 500 * time.Millisecond
	DefaultMaxBackoff     = 30 * time.Second
)

// State is the connection state reported to the state callback.
type State int

const (
	StateConnecting State = iota
	StateConnected
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config configures a Client.
type Config struct {
	URL            string
	Header         http.Header
	QueueSize      int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Dialer         *websocket.Dialer
}

// Handler receives decoded inbound messages. It runs on the reader goroutine;
// callers hand the message to their own event loop.
type Handler func(Message)

// StateFunc observes connection changes. err is the reason for a disconnect.
type StateFunc func(State, error)

// Client holds one logical connection to a document channel. The underlying
// websocket is re-dialed whenever it drops, until Run's context ends.
type Client struct {
	cfg       Config
	onMessage Handler
	onState   StateFunc
	send      chan Message

	mu        sync.Mutex
	connected bool

	// pending is a message whose write failed. It goes out first on the next
	// connection, ahead of anything queued after it.
	pending *Message
}

// WebsocketURL builds the channel address for a document from the HTTP base URL.
func WebsocketURL(base, docID, user string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws/documents/" + url.PathEscape(docID) + "/"
	q := url.Values{}
	if user != "" {
		q.Set("user", user)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// NewClient creates a client. onMessage must not be nil.
func NewClient(cfg Config, onMessage Handler) *Client {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = DefaultInitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = DefaultMaxBackoff
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	return &Client{
		cfg:       cfg,
		onMessage: onMessage,
		send:      make(chan Message, cfg.QueueSize),
	}
}

// OnState registers the connection state observer. Call before Run.
func (c *Client) OnState(fn StateFunc) {
	c.onState = fn
}

func (c *Client) setState(s State, err error) {
	c.mu.Lock()
	c.connected = s == StateConnected
	c.mu.Unlock()
	if c.onState != nil {
		c.onState(s, err)
	}
}

// Connected reports whether a websocket is currently open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Send queues m for delivery without blocking. Messages queued while the
// connection is down go out after the next successful dial. It returns false
// when the queue is full and the message was dropped.
func (c *Client) Send(m Message) bool {
	select {
	case c.send <- m:
		return true
	default:
		logger.WarnTagf("channel", "send queue full, dropping %s message", m.Action)
		return false
	}
}

func (c *Client) newBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.InitialBackoff
	b.MaxInterval = c.cfg.MaxBackoff
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Run connects and keeps the connection alive until ctx is cancelled.
func (c *Client) Run(ctx context.Context) error {
	b := c.newBackoff()
	for {
		c.setState(StateConnecting, nil)
		established, err := c.connect(ctx)
		if ctx.Err() != nil {
			c.setState(StateDisconnected, nil)
			return ctx.Err()
		}
		if established {
			b.Reset()
		}
		wait := b.NextBackOff()
		logger.WarnTagf("channel", "connection to %s lost: %v; retrying in %v", c.cfg.URL, err, wait)
		c.setState(StateDisconnected, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// connect dials once and pumps messages until the connection fails.
// established reports whether the dial succeeded.
func (c *Client) connect(ctx context.Context) (established bool, err error) {
	conn, resp, err := c.cfg.Dialer.DialContext(ctx, c.cfg.URL, c.cfg.Header)
	if err != nil {
		if resp != nil {
			return false, fmt.Errorf("dial: %w (status %s)", err, resp.Status)
		}
		return false, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	logger.InfoTagf("channel", "connected to %s", c.cfg.URL)
	c.setState(StateConnected, nil)

	readErr := make(chan error, 1)
	go func() {
		readErr <- c.readPump(conn)
	}()

	err = c.writePump(ctx, conn, readErr)
	conn.Close()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		// Let the reader finish so no handler runs after Run returns.
		<-readErr
	}
	return true, err
}

func (c *Client) readPump(conn *websocket.Conn) error {
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		msg, err := Decode(data)
		if err != nil {
			logger.WarnTagf("channel", "ignoring malformed frame: %v", err)
			continue
		}
		c.onMessage(msg)
	}
}

func (c *Client) writePump(ctx context.Context, conn *websocket.Conn, readErr <-chan error) error {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	if msg, ok := c.takePending(); ok {
		if err := c.write(conn, msg); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return ctx.Err()
		case err := <-readErr:
			return err
		case msg := <-c.send:
			if err := c.write(conn, msg); err != nil {
				return err
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return fmt.Errorf("ping: %w", err)
			}
		}
	}
}

// write sends one message. On failure the message is kept as pending.
func (c *Client) write(conn *websocket.Conn, msg Message) error {
	data, err := Encode(msg)
	if err != nil {
		logger.ErrorTagf("channel", "dropping unencodable message: %v", err)
		return nil
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.requeue(msg)
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// requeue keeps m for the next connection. Snapshots queued after m were
// taken later, so m must be written before them.
func (c *Client) requeue(m Message) {
	c.mu.Lock()
	c.pending = &m
	c.mu.Unlock()
}

func (c *Client) takePending() (Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return Message{}, false
	}
	m := *c.pending
	c.pending = nil
	return m, true
}
