package http

import (
	"github.com/gin-gonic/gin"

	"github.com/openquant/etrade-mcp/service"
)

// SetupRouter sets up the Gin router for the REST gateway. It mirrors the
// MCP tool surface for callers that speak plain HTTP.
func SetupRouter(session *service.Session) *gin.Engine {
	router := gin.Default()

	handlers := NewSessionHandlers(session)

	// Handshake routes
	auth := router.Group("/auth")
	{
		auth.POST("/initialize", handlers.Initialize)
		auth.POST("/complete", handlers.Complete)
		auth.GET("/status", handlers.Status)
	}

	// Signed passthrough to the broker, guarded by the session
	api := router.Group("/api")
	api.Use(SessionGuard(session))
	{
		api.Any("/proxy/*endpoint", handlers.Proxy)
	}

	return router
}
