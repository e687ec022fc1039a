package hub

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"event-ticketing/shared"
)

const (
	// Time allowed to write a message to the peer
	writeWait = shared.WebSocketWriteWait

	// Time allowed to read the next pong message from the peer
	pongWait = shared.WebSocketPongWait

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = shared.WebSocketPingPeriod

	// Maximum message size allowed from peer
	maxMessageSize = shared.WebSocketMaxMessageSize
)

type sendResult int

const (
	sendOK sendResult = iota
	sendFull
	sendClosed
)

// Client is a middleman between one authenticated connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection; nil for clients driven directly in-process
	conn *websocket.Conn

	// Buffered channel of outbound messages, closed on disconnect
	send chan []byte

	id              string
	userID          string
	role            shared.Role
	authenticatedAt time.Time

	mu     sync.RWMutex
	closed bool
}

func (c *Client) ID() string                 { return c.id }
func (c *Client) UserID() string             { return c.userID }
func (c *Client) Role() shared.Role          { return c.role }
func (c *Client) AuthenticatedAt() time.Time { return c.authenticatedAt }

// Rooms returns the rooms this client currently belongs to.
func (c *Client) Rooms() []string {
	return c.hub.rooms.RoomsOf(c.id)
}

// Outbound exposes the queue of encoded frames for in-process transports.
// It is closed when the client disconnects.
func (c *Client) Outbound() <-chan []byte {
	return c.send
}

// trySend queues data without blocking.
func (c *Client) trySend(data []byte) sendResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return sendClosed
	}
	select {
	case c.send <- data:
		return sendOK
	default:
		return sendFull
	}
}

// markClosed flips the client to closed and closes its queue. It reports
// whether this call did the closing.
func (c *Client) markClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.closed = true
	close(c.send)
	return true
}

// joinRoom adds c to room unless c has already disconnected. The read lock
// keeps markClosed, and with it the room cleanup in Disconnect, ordered
// after the join.
func (c *Client) joinRoom(room string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}
	c.hub.rooms.Join(c.id, room)
	return true
}

func (c *Client) sendMessage(msgType string, payload interface{}) {
	data, ok := c.hub.encode(msgType, payload)
	if !ok {
		return
	}
	if c.trySend(data) == sendFull {
		log.Printf("[HUB] Failed to send %s to client %s: buffer full", msgType, c.id)
	}
}

func (c *Client) sendError(errorMsg string) {
	c.sendMessage(shared.MessageTypeError, shared.ErrorResponse{Error: errorMsg})
}

// readPump pumps messages from the websocket connection to the hub. Messages
// from one connection are handled one at a time, in arrival order.
func (c *Client) readPump() {
	defer func() {
		c.hub.Disconnect(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Printf("[HUB] WebSocket error for client %s: %v", c.id, err)
			}
			return
		}
		c.hub.HandleMessage(c, message)
	}
}

// writePump pumps messages from the hub to the websocket connection. Each
// queued frame is written as its own websocket message.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
