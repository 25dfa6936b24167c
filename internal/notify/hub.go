package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 256
)

var errNoBrowserClient = errors.New("no browser client accepted the notification")

// Frame is a message exchanged with browser clients
type Frame struct {
	Type         string        `json:"type"`
	Permission   Permission    `json:"permission,omitempty"`
	Notification *Notification `json:"notification,omitempty"`
	Toast        *Toast        `json:"toast,omitempty"`
	Payload      interface{}   `json:"payload,omitempty"`
}

// Frame types
const (
	FramePermission        = "permission"
	FramePermissionRequest = "permission-request"
	FrameNotification      = "notification"
	FrameToast             = "toast"
	FrameEvent             = "event"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type client struct {
	id         string
	conn       *websocket.Conn
	send       chan []byte
	permission Permission
	closed     bool
}

// Hub is the browser notification channel. Connected clients report their
// notification permission and receive notifications, toasts and events.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{clients: make(map[string]*client)}
}

// Name implements Channel
func (h *Hub) Name() string { return MethodBrowser }

// Permission is granted when any connected client granted it. Without
// clients the platform is unsupported.
func (h *Hub) Permission() Permission {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.clients) == 0 {
		return PermissionUnsupported
	}
	result := PermissionDefault
	for _, c := range h.clients {
		switch c.permission {
		case PermissionGranted:
			return PermissionGranted
		case PermissionDenied:
			result = PermissionDenied
		}
	}
	return result
}

// RequestPermission asks connected clients to prompt the learner
func (h *Hub) RequestPermission(ctx context.Context) error {
	return h.broadcast(Frame{Type: FramePermissionRequest})
}

// Deliver sends a notification to clients that granted permission. It
// fails when no client took the frame.
func (h *Hub) Deliver(ctx context.Context, n Notification) error {
	data, err := json.Marshal(Frame{Type: FrameNotification, Notification: &n})
	if err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	queued := 0
	for _, c := range h.clients {
		if c.permission == PermissionGranted && h.enqueue(c, data) {
			queued++
		}
	}
	if queued == 0 {
		return errNoBrowserClient
	}
	return nil
}

// BroadcastToast forwards a toast to every client
func (h *Hub) BroadcastToast(t Toast) {
	if err := h.broadcast(Frame{Type: FrameToast, Toast: &t}); err != nil {
		log.WithError(err).Warn("toast broadcast failed")
	}
}

// BroadcastEvent forwards an arbitrary payload to every client
func (h *Hub) BroadcastEvent(payload interface{}) {
	if err := h.broadcast(Frame{Type: FrameEvent, Payload: payload}); err != nil {
		log.WithError(err).Warn("event broadcast failed")
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and serves the client until it disconnects
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	c := &client{
		id:         uuid.NewString(),
		conn:       conn,
		send:       make(chan []byte, sendBuffer),
		permission: PermissionDefault,
	}
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	log.WithField("client", c.id).Debug("websocket client connected")

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) broadcast(f Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		h.enqueue(c, data)
	}
	return nil
}

// enqueue must be called with h.mu held. Slow clients drop the message.
func (h *Hub) enqueue(c *client, data []byte) bool {
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		log.WithField("client", c.id).Warn("websocket client too slow, message dropped")
		return false
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	delete(h.clients, c.id)
	close(c.send)
	log.WithField("client", c.id).Debug("websocket client disconnected")
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var f Frame
		if err := c.conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).Warn("websocket read failed")
			}
			return
		}
		if f.Type == FramePermission {
			switch f.Permission {
			case PermissionGranted, PermissionDenied, PermissionDefault, PermissionUnsupported:
				h.mu.Lock()
				c.permission = f.Permission
				h.mu.Unlock()
			}
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
