package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"event-ticketing/auth"
	"event-ticketing/shared"
)

const identityKey = "identity"

// requireAuth rejects requests without a valid bearer token and stores the
// verified identity on the context.
func requireAuth(a auth.Authenticator) gin.HandlerFunc {
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
		c.Set(identityKey, id)
		c.Next()
	}
}

func requireRole(roles ...shared.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := identityFrom(c)
		for _, r := range roles {
			if id.Role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, shared.ErrorResponse{Error: "insufficient role"})
	}
}

func identityFrom(c *gin.Context) auth.Identity {
	v, _ := c.Get(identityKey)
	id, _ := v.(auth.Identity)
	return id
}
