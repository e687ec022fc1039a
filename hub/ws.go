package hub

import (
	"encoding/json"
	"log"
	"net/http"

	"event-ticketing/auth"
	"event-ticketing/shared"
)

// ServeWS authenticates the handshake and upgrades it. The token is taken
// from the "token" query parameter or an Authorization bearer header; a
// missing or invalid token is refused with 401 before any upgrade.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token, _ = auth.BearerToken(r.Header.Get("Authorization"))
	}

	c, err := h.Connect(r.Context(), token)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(shared.ErrorResponse{Error: err.Error()})
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[HUB] WebSocket upgrade error for %s: %v", c.id, err)
		h.Disconnect(c)
		return
	}
	c.conn = conn

	go c.writePump()
	go c.readPump()
}
