package shared

import (
	"encoding/json"
	"time"
)

// Reservation states
type ReservationState string

const (
	StateHeld      ReservationState = "held"
	StateConfirmed ReservationState = "confirmed"
	StateReleased  ReservationState = "released"
	StateExpired   ReservationState = "expired"
)

// Terminal reports whether no further transition is possible from s.
func (s ReservationState) Terminal() bool {
	return s == StateConfirmed || s == StateReleased || s == StateExpired
}

// Inbound message types (client -> server)
const (
	MessageTypeJoinEventRoom      = "join_event_room"
	MessageTypeLeaveEventRoom     = "leave_event_room"
	MessageTypeSendMessage        = "send_message"
	MessageTypeTicketStatusUpdate = "ticket_status_update"
)

// Outbound message types (server -> client)
const (
	MessageTypeWelcome            = "welcome"
	MessageTypeJoinedRoom         = "joined_room"
	MessageTypeLeftRoom           = "left_room"
	MessageTypeChat               = "message"
	MessageTypeReservationUpdated = "reservation_updated"
	MessageTypeInventoryUpdated   = "inventory_updated"
	MessageTypeInventorySnapshot  = "inventory_snapshot"
	MessageTypeTicketSold         = "ticket_sold"
	MessageTypeHoldExpired        = "hold_expired"
	MessageTypeNotification       = "notification"
	MessageTypeError              = "error"
)

// Message is the envelope for every frame in both directions.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage marshals payload into an envelope stamped with ts.
func NewMessage(msgType string, payload interface{}, ts time.Time) (Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: msgType, Payload: raw, Timestamp: ts.UTC()}, nil
}

// EventRoomRequest is the payload of join_event_room and leave_event_room.
type EventRoomRequest struct {
	EventID string `json:"eventId"`
}

// SendMessageRequest is the payload of send_message.
type SendMessageRequest struct {
	EventID     string `json:"eventId"`
	Message     string `json:"message"`
	RecipientID string `json:"recipientId,omitempty"`
}

// ChatMessage is what members of a room receive for send_message.
type ChatMessage struct {
	EventID     string    `json:"eventId"`
	Message     string    `json:"message"`
	SenderID    string    `json:"senderId"`
	RecipientID string    `json:"recipientId,omitempty"`
	SentAt      time.Time `json:"sentAt"`
}

// TicketStatusUpdate is the payload of ticket_status_update, relayed as-is.
type TicketStatusUpdate struct {
	EventID  string `json:"eventId"`
	TicketID string `json:"ticketId"`
	Status   string `json:"status"`
}

// TicketType is a point-in-time copy of one ledger entry.
type TicketType struct {
	ID        string `json:"id"`
	EventID   string `json:"eventId"`
	Capacity  int    `json:"capacity"`
	Held      int    `json:"held"`
	Sold      int    `json:"sold"`
	Available int    `json:"available"`
}

// ReservationEvent is emitted on every successful reservation state transition.
type ReservationEvent struct {
	ReservationID string           `json:"reservationId"`
	UserID        string           `json:"userId"`
	TicketTypeID  string           `json:"ticketTypeId"`
	EventID       string           `json:"eventId"`
	Quantity      int              `json:"quantity"`
	NewState      ReservationState `json:"newState"`
	Timestamp     time.Time        `json:"timestamp"`
	Inventory     *TicketType      `json:"inventory,omitempty"`
}

// InventorySnapshot is sent to a connection that joins an event room.
type InventorySnapshot struct {
	EventID     string       `json:"eventId"`
	TicketTypes []TicketType `json:"ticketTypes"`
}

// ErrorResponse represents an error message
type ErrorResponse struct {
	Error string `json:"error"`
}
