package shared

import (
	"strings"
	"time"
)

// Redis key patterns
const (
	RedisKeyTicketTypes = "inventory:ticket_types"
)

// NATS subjects
const (
	NATSSubjectHeld      = "reservations.held"
	NATSSubjectConfirmed = "reservations.confirmed"
	NATSSubjectReleased  = "reservations.released"
	NATSSubjectExpired   = "reservations.expired"
	NATSSubjectAll       = "reservations.>"
)

// Timeouts and durations
const (
	DefaultHoldTTL              = 10 * time.Minute
	DefaultSweepInterval        = 30 * time.Second
	DefaultReservationRetention = time.Hour
	WebSocketWriteWait          = 10 * time.Second
	WebSocketPongWait           = 60 * time.Second
	WebSocketPingPeriod         = (WebSocketPongWait * 9) / 10
	WebSocketMaxMessageSize     = 64 * 1024
	DefaultSendBuffer           = 256
)

// Server configuration
const (
	DefaultBookingPort = "8080"
	DefaultEdgePort    = "3000"
)

// API endpoints
const (
	APIEndpointHealth = "/health"
	APIEndpointStats  = "/stats"
	WebSocketEndpoint = "/ws"
)

// Roles carried by an authenticated identity.
type Role string

const (
	RoleUser      Role = "user"
	RoleOrganizer Role = "organizer"
	RoleAdmin     Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleOrganizer, RoleAdmin:
		return true
	}
	return false
}

// Room names. Everything else is derived from an id.
const (
	RoomAdmin     = "admin_room"
	RoomOrganizer = "organizer_room"

	roomUserPrefix  = "user_"
	roomEventPrefix = "event_"
)

// UserRoom returns the private room of a user.
func UserRoom(userID string) string {
	return roomUserPrefix + userID
}

// EventRoom returns the broadcast room of an event.
func EventRoom(eventID string) string {
	return roomEventPrefix + eventID
}

// ValidRoom reports whether name follows the room grammar:
// user_<id>, admin_room, organizer_room or event_<id>.
func ValidRoom(name string) bool {
	switch name {
	case RoomAdmin, RoomOrganizer:
		return true
	}
	if id, ok := strings.CutPrefix(name, roomUserPrefix); ok {
		return id != ""
	}
	if id, ok := strings.CutPrefix(name, roomEventPrefix); ok {
		return id != ""
	}
	return false
}
