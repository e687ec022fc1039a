package hub

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"event-ticketing/shared"
)

// HandleMessage routes one inbound frame from c. Problems are reported
// back to c only.
func (h *Hub) HandleMessage(c *Client, raw []byte) {
	var msg shared.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Printf("[HUB] Error parsing message from client %s: %v", c.id, err)
		c.sendError("invalid message format")
		return
	}

	switch msg.Type {
	case shared.MessageTypeJoinEventRoom:
		h.handleJoinEventRoom(c, msg.Payload)
	case shared.MessageTypeLeaveEventRoom:
		h.handleLeaveEventRoom(c, msg.Payload)
	case shared.MessageTypeSendMessage:
		h.handleSendMessage(c, msg.Payload)
	case shared.MessageTypeTicketStatusUpdate:
		h.handleTicketStatusUpdate(c, msg.Payload)
	default:
		c.sendError("unknown message type: " + msg.Type)
	}
}

func decodePayload(raw json.RawMessage, v interface{}) bool {
	if len(raw) == 0 {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}

func (h *Hub) handleJoinEventRoom(c *Client, payload json.RawMessage) {
	var req shared.EventRoomRequest
	if !decodePayload(payload, &req) || strings.TrimSpace(req.EventID) == "" {
		c.sendError("join_event_room: eventId is required")
		return
	}

	room := shared.EventRoom(req.EventID)
	if !c.joinRoom(room) {
		log.Printf("[JOIN] Ignoring join of %s from disconnected client %s", room, c.id)
		return
	}
	c.sendMessage(shared.MessageTypeJoinedRoom, map[string]string{"room": room})
	log.Printf("[JOIN] Client %s (user %s) joined %s", c.id, c.userID, room)

	if h.inventory != nil {
		go h.sendInventorySnapshot(c, req.EventID)
	}
}

func (h *Hub) sendInventorySnapshot(c *Client, eventID string) {
	ctx, cancel := context.WithTimeout(context.Background(), h.snapshotTimeout)
	defer cancel()

	types, err := h.inventory.EventInventory(ctx, eventID)
	if err != nil {
		log.Printf("[ERROR] Failed to load inventory for event %s: %v", eventID, err)
		return
	}
	c.sendMessage(shared.MessageTypeInventorySnapshot, shared.InventorySnapshot{
		EventID:     eventID,
		TicketTypes: types,
	})
}

func (h *Hub) handleLeaveEventRoom(c *Client, payload json.RawMessage) {
	var req shared.EventRoomRequest
	if !decodePayload(payload, &req) || strings.TrimSpace(req.EventID) == "" {
		c.sendError("leave_event_room: eventId is required")
		return
	}

	room := shared.EventRoom(req.EventID)
	if !h.rooms.Leave(c.id, room) {
		c.sendError("not a member of " + room)
		return
	}
	c.sendMessage(shared.MessageTypeLeftRoom, map[string]string{"room": room})
}

func (h *Hub) handleSendMessage(c *Client, payload json.RawMessage) {
	var req shared.SendMessageRequest
	if !decodePayload(payload, &req) {
		c.sendError("send_message: invalid payload")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		c.sendError("send_message: message is required")
		return
	}
	if req.RecipientID == "" && req.EventID == "" {
		c.sendError("send_message: eventId or recipientId is required")
		return
	}

	out := shared.ChatMessage{
		EventID:     req.EventID,
		Message:     req.Message,
		SenderID:    c.userID,
		RecipientID: req.RecipientID,
		SentAt:      h.clock.Now(),
	}
	if req.RecipientID != "" {
		h.NotifyUser(req.RecipientID, shared.MessageTypeChat, out)
		return
	}
	h.NotifyEventRoom(req.EventID, shared.MessageTypeChat, out)
}

func (h *Hub) handleTicketStatusUpdate(c *Client, payload json.RawMessage) {
	var req shared.TicketStatusUpdate
	if !decodePayload(payload, &req) || req.EventID == "" || req.TicketID == "" || req.Status == "" {
		c.sendError("ticket_status_update: eventId, ticketId and status are required")
		return
	}
	h.NotifyEventRoom(req.EventID, shared.MessageTypeTicketStatusUpdate, req)
}
