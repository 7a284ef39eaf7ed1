package realtime

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/openchat/disqus/pkg/disqus"
)

const (
	EventSubscribe    = "thread.subscribe"
	EventUnsubscribe  = "thread.unsubscribe"
	EventPing         = "ping"
	EventSubscribed   = "thread.subscribed"
	EventUnsubscribed = "thread.unsubscribed"
	EventPong         = "pong"
	EventError        = "error"
	EventPostCreated  = "post.created"
	EventThreadUpdate = "thread.updated"
)

type Envelope struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Hub fans out post and thread events to websocket clients subscribed to a
// thread id.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu                  sync.RWMutex
	clientsByID         map[string]*client
	subscribersByThread map[string]map[string]*client
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(_ *http.Request) bool {
				return true
			},
		},
		clientsByID:         make(map[string]*client),
		subscribersByThread: make(map[string]map[string]*client),
	}
}

func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("realtime websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		id:            uuid.NewString(),
		conn:          conn,
		hub:           h,
		send:          make(chan Envelope, 64),
		subscriptions: make(map[string]struct{}),
		closed:        make(chan struct{}),
	}

	h.register(c)
	go c.writeLoop()
	if threadID := strings.TrimSpace(r.URL.Query().Get("thread_id")); threadID != "" {
		h.subscribe(c, threadID)
	}
	c.readLoop()
}

func (h *Hub) BroadcastPost(post disqus.Post) {
	h.broadcast(string(post.Thread), newEnvelope(EventPostCreated, "", map[string]any{"post": post}))
}

func (h *Hub) BroadcastThread(thread disqus.Thread) {
	h.broadcast(string(thread.ID), newEnvelope(EventThreadUpdate, "", map[string]any{"thread": thread}))
}

// Subscribers returns how many clients follow threadID.
func (h *Hub) Subscribers(threadID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribersByThread[threadID])
}

func (h *Hub) broadcast(threadID string, envelope Envelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.subscribersByThread[threadID] {
		c.enqueue(envelope)
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clientsByID[c.id] = c
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clientsByID, c.id)
	for threadID := range c.subscriptions {
		h.removeSubscriberLocked(c, threadID)
	}
}

func (h *Hub) subscribe(c *client, threadID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subscribers := h.subscribersByThread[threadID]
	if subscribers == nil {
		subscribers = make(map[string]*client)
		h.subscribersByThread[threadID] = subscribers
	}
	subscribers[c.id] = c
	c.subscriptions[threadID] = struct{}{}
}

func (h *Hub) unsubscribe(c *client, threadID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(c.subscriptions, threadID)
	h.removeSubscriberLocked(c, threadID)
}

func (h *Hub) removeSubscriberLocked(c *client, threadID string) {
	subscribers := h.subscribersByThread[threadID]
	if subscribers == nil {
		return
	}
	delete(subscribers, c.id)
	if len(subscribers) == 0 {
		delete(h.subscribersByThread, threadID)
	}
}

type client struct {
	id   string
	conn *websocket.Conn
	hub  *Hub
	send chan Envelope

	// guarded by hub.mu
	subscriptions map[string]struct{}
	closeOnce     sync.Once
	closed        chan struct{}
}

func (c *client) readLoop() {
	defer c.close()
	_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		var envelope Envelope
		if err := c.conn.ReadJSON(&envelope); err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		c.handleEnvelope(envelope)
	}
}

func (c *client) handleEnvelope(envelope Envelope) {
	switch envelope.Type {
	case EventSubscribe, EventUnsubscribe:
		var payload struct {
			ThreadID string `json:"thread_id"`
		}
		_ = json.Unmarshal(envelope.Payload, &payload)
		threadID := strings.TrimSpace(payload.ThreadID)
		if threadID == "" {
			c.enqueue(errorEnvelope(envelope.RequestID, "thread_required", "thread_id is required"))
			return
		}
		if envelope.Type == EventSubscribe {
			c.hub.subscribe(c, threadID)
			c.enqueue(newEnvelope(EventSubscribed, envelope.RequestID, map[string]any{"thread_id": threadID}))
			return
		}
		c.hub.unsubscribe(c, threadID)
		c.enqueue(newEnvelope(EventUnsubscribed, envelope.RequestID, map[string]any{"thread_id": threadID}))
	case EventPing:
		c.enqueue(newEnvelope(EventPong, envelope.RequestID, map[string]any{"ts": time.Now().UTC().Format(time.RFC3339Nano)}))
	default:
		c.enqueue(errorEnvelope(envelope.RequestID, "unknown_event", "unsupported realtime event"))
	}
}

func (c *client) writeLoop() {
	ticker := time.NewTicker(25 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case envelope, ok := <-c.send:
			if !ok {
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(envelope); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(10*time.Second)); err != nil {
				return
			}
		case <-c.closed:
			return
		}
	}
}

// enqueue drops the envelope when the client is not keeping up.
func (c *client) enqueue(envelope Envelope) {
	select {
	case <-c.closed:
	case c.send <- envelope:
	default:
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		c.hub.unregister(c)
		close(c.closed)
		_ = c.conn.Close()
	})
}

func newEnvelope(eventType string, requestID string, payload any) Envelope {
	rawPayload := json.RawMessage("{}")
	if payload != nil {
		if encoded, err := json.Marshal(payload); err == nil {
			rawPayload = encoded
		}
	}
	return Envelope{
		Type:      eventType,
		RequestID: requestID,
		Payload:   rawPayload,
	}
}

func errorEnvelope(requestID string, code string, message string) Envelope {
	return newEnvelope(EventError, requestID, map[string]any{
		"code":    code,
		"message": message,
	})
}
