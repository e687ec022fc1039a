// Package hub owns live client connections. A connection exists only
// after its bearer token has been verified; it is then placed in its
// personal room (and the admin or organizer room for those roles), can
// join event rooms, and receives whatever is broadcast to those rooms.
//
// Delivery is fire-and-forget. Each connection has a bounded send
// buffer; a connection whose buffer is full is dropped instead of
// slowing down everyone else.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"event-ticketing/auth"
	"event-ticketing/clock"
	"event-ticketing/rooms"
	"event-ticketing/shared"
)

// InventorySource supplies the current counters of an event's ticket
// types, sent to a connection when it joins that event's room.
type InventorySource interface {
	EventInventory(ctx context.Context, eventID string) ([]shared.TicketType, error)
}

// Stats tracks statistics for the hub
type Stats struct {
	Connections       int       `json:"connections"`
	Rooms             int       `json:"rooms"`
	TotalBroadcasts   int64     `json:"total_broadcasts"`
	DroppedMessages   int64     `json:"dropped_messages"`
	StartedAt         time.Time `json:"started_at"`
	LastBroadcastTime time.Time `json:"last_broadcast_time,omitempty"`
}

// Hub maintains the set of authenticated clients and routes messages
// between them through the room registry.
type Hub struct {
	auth      auth.Authenticator
	rooms     *rooms.Registry
	clock     clock.Clock
	inventory InventorySource

	sendBuffer      int
	snapshotTimeout time.Duration
	upgrader        websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*Client

	statsMu sync.Mutex
	stats   Stats
}

type Option func(*Hub)

// WithInventorySource enables inventory snapshots on join_event_room.
func WithInventorySource(src InventorySource) Option {
	return func(h *Hub) { h.inventory = src }
}

// WithSendBuffer sets the per-connection outbound queue length.
func WithSendBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.sendBuffer = n
		}
	}
}

func WithClock(c clock.Clock) Option {
	return func(h *Hub) { h.clock = c }
}

// WithCheckOrigin overrides the websocket origin check.
func WithCheckOrigin(check func(origin string) bool) Option {
	return func(h *Hub) {
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			return check(r.Header.Get("Origin"))
		}
	}
}

// New returns a Hub that verifies handshakes with a and records
// memberships in reg.
func New(a auth.Authenticator, reg *rooms.Registry, opts ...Option) *Hub {
	h := &Hub{
		auth:            a,
		rooms:           reg,
		clock:           clock.NewSystem(),
		sendBuffer:      shared.DefaultSendBuffer,
		snapshotTimeout: 5 * time.Second,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[string]*Client),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.stats.StartedAt = h.clock.Now()
	return h
}

// Connect authenticates token and registers a new client. Any failure is
// reported as auth.ErrAuthentication and leaves no trace in the hub.
func (h *Hub) Connect(ctx context.Context, token string) (*Client, error) {
	id, err := h.auth.Authenticate(ctx, token)
	if err != nil {
		if !errors.Is(err, auth.ErrAuthentication) {
			log.Printf("[HUB] authenticator error: %v", err)
		}
		return nil, auth.ErrAuthentication
	}

	c := &Client{
		hub:             h,
		send:            make(chan []byte, h.sendBuffer),
		id:              "conn-" + uuid.NewString(),
		userID:          id.UserID,
		role:            id.Role,
		authenticatedAt: h.clock.Now(),
	}

	h.mu.Lock()
	h.clients[c.id] = c
	total := len(h.clients)
	h.mu.Unlock()

	for _, room := range defaultRooms(id) {
		h.rooms.Join(c.id, room)
	}

	log.Printf("[HUB] Client registered: %s user=%s role=%s (total clients: %d)", c.id, c.userID, c.role, total)
	c.sendMessage(shared.MessageTypeWelcome, map[string]interface{}{
		"connectionId": c.id,
		"userId":       c.userID,
		"role":         c.role,
		"rooms":        h.rooms.RoomsOf(c.id),
	})
	return c, nil
}

func defaultRooms(id auth.Identity) []string {
	out := []string{shared.UserRoom(id.UserID)}
	switch id.Role {
	case shared.RoleAdmin:
		out = append(out, shared.RoomAdmin)
	case shared.RoleOrganizer:
		out = append(out, shared.RoomOrganizer)
	}
	return out
}

// Disconnect removes c from the hub and from every room. It is safe to
// call more than once and from any goroutine.
func (h *Hub) Disconnect(c *Client) {
	if !c.markClosed() {
		return
	}

	h.mu.Lock()
	delete(h.clients, c.id)
	total := len(h.clients)
	h.mu.Unlock()

	left := h.rooms.LeaveAll(c.id)
	log.Printf("[HUB] Client unregistered: %s user=%s left %d rooms after %v (total clients: %d)",
		c.id, c.userID, len(left), h.clock.Now().Sub(c.authenticatedAt), total)
}

// NotifyUser delivers to every connection of userID.
func (h *Hub) NotifyUser(userID, msgType string, payload interface{}) int {
	return h.NotifyRoom(shared.UserRoom(userID), msgType, payload)
}

// NotifyAdmins delivers to admin_room.
func (h *Hub) NotifyAdmins(msgType string, payload interface{}) int {
	return h.NotifyRoom(shared.RoomAdmin, msgType, payload)
}

// NotifyOrganizers delivers to organizer_room.
func (h *Hub) NotifyOrganizers(msgType string, payload interface{}) int {
	return h.NotifyRoom(shared.RoomOrganizer, msgType, payload)
}

// NotifyEventRoom delivers to event_<eventID>.
func (h *Hub) NotifyEventRoom(eventID, msgType string, payload interface{}) int {
	return h.NotifyRoom(shared.EventRoom(eventID), msgType, payload)
}

// NotifyRoom delivers to every current member of room and returns how
// many connections the message was queued for.
func (h *Hub) NotifyRoom(room, msgType string, payload interface{}) int {
	if !shared.ValidRoom(room) {
		log.Printf("[HUB] Refusing to notify invalid room %q", room)
		return 0
	}
	data, ok := h.encode(msgType, payload)
	if !ok {
		return 0
	}
	return h.deliver(h.lookup(h.rooms.MembersOf(room)), data)
}

// NotifyAll delivers to every connected client.
func (h *Hub) NotifyAll(msgType string, payload interface{}) int {
	data, ok := h.encode(msgType, payload)
	if !ok {
		return 0
	}
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	return h.deliver(targets, data)
}

func (h *Hub) encode(msgType string, payload interface{}) ([]byte, bool) {
	msg, err := shared.NewMessage(msgType, payload, h.clock.Now())
	if err != nil {
		log.Printf("[ERROR] Failed to marshal %s payload: %v", msgType, err)
		return nil, false
	}
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[ERROR] Failed to marshal %s message: %v", msgType, err)
		return nil, false
	}
	return data, true
}

func (h *Hub) lookup(ids []string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Client, 0, len(ids))
	for _, id := range ids {
		if c, ok := h.clients[id]; ok {
			out = append(out, c)
		}
	}
	return out
}

// deliver queues data on each target without blocking. Targets whose
// queue is full are disconnected.
func (h *Hub) deliver(targets []*Client, data []byte) int {
	sent := 0
	var dropped int64
	for _, c := range targets {
		switch c.trySend(data) {
		case sendOK:
			sent++
		case sendFull:
			dropped++
			log.Printf("[HUB] Client %s send buffer full, disconnecting", c.id)
			go h.Disconnect(c)
		}
	}

	h.statsMu.Lock()
	h.stats.TotalBroadcasts++
	h.stats.DroppedMessages += dropped
	h.stats.LastBroadcastTime = h.clock.Now()
	h.statsMu.Unlock()
	return sent
}

// Stats returns current hub statistics
func (h *Hub) Stats() Stats {
	h.statsMu.Lock()
	s := h.stats
	h.statsMu.Unlock()

	s.Connections = h.ClientCount()
	s.Rooms = h.rooms.RoomCount()
	return s
}

// ClientCount returns the current number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Client returns a connected client by id.
func (h *Hub) Client(id string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[id]
	return c, ok
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	all := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		all = append(all, c)
	}
	h.mu.RUnlock()

	for _, c := range all {
		h.Disconnect(c)
	}
}
