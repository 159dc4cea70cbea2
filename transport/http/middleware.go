package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openquant/etrade-mcp/core"
	"github.com/openquant/etrade-mcp/service"
)

// SessionGuard creates middleware that ensures a validated access token pair
// exists before a request is proxied to the broker.
func SessionGuard(session *service.Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := session.EnsureValid(c.Request.Context()); err != nil {
			switch {
			case errors.Is(err, core.ErrNotAuthenticated), errors.Is(err, core.ErrTokenInvalidated):
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			case errors.Is(err, core.ErrBrokerUnavailable):
				c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			default:
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
			return
		}

		c.Next()
	}
}
