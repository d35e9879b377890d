// Package relay is the document server: the HTTP document API and the live
// channel that fans edits out to everyone on the same document.
package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/bethropolis/tandem/internal/channel"
	"github.com/bethropolis/tandem/internal/logger"
	"github.com/bethropolis/tandem/internal/relay/broker"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 << 20
	sendBuffer     = 256

	anonymousUser = "anonymous"
)

// envelope wraps a frame on the broker so each connection can skip its own.
type envelope struct {
	Origin  string          `json:"origin"`
	Message channel.Message `json:"message"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub tracks live connections and routes their frames through the broker.
type Hub struct {
	broker broker.Broker

	mu    sync.Mutex
	conns map[string]*conn
}

func NewHub(b broker.Broker) *Hub {
	return &Hub{broker: b, conns: make(map[string]*conn)}
}

// Count returns the number of connections, optionally limited to one document.
func (h *Hub) Count(docID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if docID == "" {
		return len(h.conns)
	}
	n := 0
	for _, c := range h.conns {
		if c.docID == docID {
			n++
		}
	}
	return n
}

// Close drops every connection.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := make([]*conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()
	for _, c := range conns {
		_ = c.ws.Close()
	}
}

type conn struct {
	hub   *Hub
	id    string
	docID string
	user  string
	ws    *websocket.Conn
	send  chan []byte
	done  chan struct{}
	sub   broker.Subscription
}

// Serve upgrades the request and runs the connection until it closes.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, docID string) {
	user := r.URL.Query().Get("user")
	if user == "" {
		user = anonymousUser
	}
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WarnTagf("hub", "upgrade for document %s failed: %v", docID, err)
		return
	}

	ctx := context.Background()
	sub, err := h.broker.Subscribe(ctx, docID)
	if err != nil {
		logger.ErrorTagf("hub", "subscribe to document %s: %v", docID, err)
		_ = ws.Close()
		return
	}

	c := &conn{
		hub:   h,
		id:    uuid.NewString(),
		docID: docID,
		user:  user,
		ws:    ws,
		send:  make(chan []byte, sendBuffer),
		done:  make(chan struct{}),
		sub:   sub,
	}
	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()
	logger.InfoTagf("hub", "%s joined document %s (%s)", user, docID, c.id)

	go c.forward()
	go c.writePump()
	c.publish(ctx, channel.Message{Action: channel.ActionUserConnected, User: user})
	c.readPump(ctx)
}

func (c *conn) publish(ctx context.Context, m channel.Message) {
	data, err := json.Marshal(envelope{Origin: c.id, Message: m})
	if err != nil {
		logger.ErrorTagf("hub", "encode envelope: %v", err)
		return
	}
	if err := c.hub.broker.Publish(ctx, c.docID, data); err != nil {
		logger.WarnTagf("hub", "publish to document %s: %v", c.docID, err)
	}
}

// enqueue hands a frame to the writer. A full queue drops the frame.
func (c *conn) enqueue(data []byte) {
	select {
	case <-c.done:
	case c.send <- data:
	default:
		logger.WarnTagf("hub", "send queue full for %s on document %s", c.user, c.docID)
	}
}

func (c *conn) reply(m channel.Message) {
	data, err := channel.Encode(m)
	if err != nil {
		logger.ErrorTagf("hub", "%v", err)
		return
	}
	c.enqueue(data)
}

// forward copies broker frames from other connections into the send queue.
func (c *conn) forward() {
	for data := range c.sub.C() {
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			logger.WarnTagf("hub", "bad envelope on document %s: %v", c.docID, err)
			continue
		}
		if env.Origin == c.id {
			continue
		}
		frame, err := channel.Encode(env.Message)
		if err != nil {
			logger.ErrorTagf("hub", "%v", err)
			continue
		}
		c.enqueue(frame)
	}
}

func (c *conn) readPump(ctx context.Context) {
	defer func() {
		c.hub.mu.Lock()
		delete(c.hub.conns, c.id)
		c.hub.mu.Unlock()
		c.publish(ctx, channel.Message{Action: channel.ActionUserDisconnected, User: c.user})
		_ = c.sub.Close()
		close(c.done)
		logger.InfoTagf("hub", "%s left document %s (%s)", c.user, c.docID, c.id)
	}()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.WarnTagf("hub", "read from %s: %v", c.user, err)
			}
			return
		}
		m, err := channel.Decode(data)
		if err != nil {
			c.reply(channel.Message{Action: channel.ActionError, Message: err.Error()})
			continue
		}
		switch m.Action {
		case channel.ActionEdit, channel.ActionTyping:
			m.User = c.user
			c.publish(ctx, m)
		default:
			c.reply(channel.Message{Action: channel.ActionError, Message: "unsupported action " + m.Action})
		}
	}
}

func (c *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()
	for {
		select {
		case <-c.done:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
