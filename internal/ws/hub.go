package ws

import (
	"context"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Event is the wire envelope for everything pushed over the socket. Payloads
// mirror the REST resource shapes; messageDeleted carries only the id.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

const (
	EventNewMessage           = "newMessage"
	EventMessageEdited        = "messageEdited"
	EventMessageDeleted       = "messageDeleted"
	EventNewConnectionRequest = "newConnectionRequest"
	EventConnectionResolved   = "connectionResolved"
	EventSessionUpdated       = "sessionUpdated"
	EventTyping               = "typing"
)

type Client struct {
	UserID uint64
	Conn   *websocket.Conn
	Send   chan Event

	ctx    context.Context
	cancel context.CancelFunc
}

// Hub is the room registry. Rooms are keyed by user id, so addressing an
// event "to user X" is publishing to room X. A user may hold several
// concurrent connections (tabs, devices); each is a separate Client.
type Hub struct {
	mu      sync.RWMutex
	clients map[uint64]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: map[uint64]map[*Client]struct{}{},
	}
}

func (h *Hub) AddClient(userID uint64, conn *websocket.Conn) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Client{
		UserID: userID,
		Conn:   conn,
		Send:   make(chan Event, 64),
		ctx:    ctx,
		cancel: cancel,
	}

	h.mu.Lock()
	if h.clients[userID] == nil {
		h.clients[userID] = map[*Client]struct{}{}
	}
	h.clients[userID][c] = struct{}{}
	h.mu.Unlock()

	go c.writeLoop()
	go c.keepAliveLoop()

	return c
}

func (h *Hub) RemoveClient(c *Client) {
	c.cancel()

	h.mu.Lock()
	defer h.mu.Unlock()

	if set, ok := h.clients[c.UserID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.UserID)
		}
	}

	_ = c.Conn.Close(websocket.StatusNormalClosure, "bye")
}

// Publish delivers ev to every live connection in userID's room. It never
// blocks and never fails: an empty room is a no-op, a slow client's full
// buffer drops the event. Offline recipients catch up by re-fetching
// persisted state.
func (h *Hub) Publish(userID uint64, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients[userID] {
		select {
		case c.Send <- ev:
		default:
			// slow consumer, drop
		}
	}
}

// Broadcast delivers ev to every connected client. Room-scoped Publish is
// the default posture; this exists for the rare service-wide announcement.
func (h *Hub) Broadcast(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, set := range h.clients {
		for c := range set {
			select {
			case c.Send <- ev:
			default:
			}
		}
	}
}

// Online reports whether the user has at least one live connection.
// Advisory only.
func (h *Hub) Online(userID uint64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

// writeLoop drains Send until the client is cancelled. The channel is never
// closed: a concurrent Publish may still hold a reference to it.
func (c *Client) writeLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case ev := <-c.Send:
			writeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			_ = wsjson.Write(writeCtx, c.Conn, ev)
			cancel()
		}
	}
}

func (c *Client) keepAliveLoop() {
	ticker := time.NewTicker(25 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = c.Conn.Ping(pingCtx)
			cancel()
		}
	}
}
