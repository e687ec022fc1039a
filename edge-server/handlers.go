package main

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"event-ticketing/auth"
	"event-ticketing/hub"
	"event-ticketing/shared"
)

const identityKey = "identity"

type notifyRequest struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type notifyResponse struct {
	Delivered int `json:"delivered"`
}

func setupRoutes(h *hub.Hub, a auth.Authenticator) *gin.Engine {
	router := gin.Default()

	router.GET(shared.WebSocketEndpoint, gin.WrapF(h.ServeWS))
	router.GET(shared.APIEndpointHealth, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "edge-server"})
	})
	router.GET(shared.APIEndpointStats, func(c *gin.Context) {
		c.JSON(http.StatusOK, h.Stats())
	})

	notify := router.Group("/api/notify", requireAdmin(a))
	{
		notify.POST("/admins", notifyHandler(func(_ *gin.Context, t string, p interface{}) int {
			return h.NotifyAdmins(t, p)
		}))
		notify.POST("/organizers", notifyHandler(func(_ *gin.Context, t string, p interface{}) int {
			return h.NotifyOrganizers(t, p)
		}))
		notify.POST("/users/:id", notifyHandler(func(c *gin.Context, t string, p interface{}) int {
			return h.NotifyUser(c.Param("id"), t, p)
		}))
		notify.POST("/events/:id", notifyHandler(func(c *gin.Context, t string, p interface{}) int {
			return h.NotifyEventRoom(c.Param("id"), t, p)
		}))
		notify.POST("/all", notifyHandler(func(_ *gin.Context, t string, p interface{}) int {
			return h.NotifyAll(t, p)
		}))
	}

	return router
}

// requireAdmin only lets admin bearer tokens through.
func requireAdmin(a auth.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := auth.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, shared.ErrorResponse{Error: "missing bearer token"})
			return
		}
		id, err := a.Authenticate(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, shared.ErrorResponse{Error: err.Error()})
			return
		}
		if id.Role != shared.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, shared.ErrorResponse{Error: "admin role required"})
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

func notifyHandler(send func(c *gin.Context, msgType string, payload interface{}) int) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req notifyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, shared.ErrorResponse{Error: "Invalid request"})
			return
		}
		if req.Type == "" {
			req.Type = shared.MessageTypeNotification
		}
		var payload interface{} = req.Payload
		if len(req.Payload) == 0 {
			payload = struct{}{}
		}

		n := send(c, req.Type, payload)
		sender, _ := c.Get(identityKey)
		log.Printf("[NOTIFY] %s %s from %s delivered to %d connections",
			req.Type, c.Request.URL.Path, senderID(sender), n)
		c.JSON(http.StatusAccepted, notifyResponse{Delivered: n})
	}
}

func senderID(v interface{}) string {
	if id, ok := v.(auth.Identity); ok {
		return id.UserID
	}
	return "unknown"
}
