package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openquant/etrade-mcp/core"
	"github.com/openquant/etrade-mcp/service"
)

// SessionHandlers contains HTTP handlers for the session endpoints
type SessionHandlers struct {
	session *service.Session
}

// NewSessionHandlers creates new session handlers
func NewSessionHandlers(session *service.Session) *SessionHandlers {
	return &SessionHandlers{
		session: session,
	}
}

// Initialize starts the OAuth handshake and returns the authorization URL
func (h *SessionHandlers) Initialize(c *gin.Context) {
	authURL, err := h.session.InitializeOAuth(c.Request.Context())
	if err != nil {
		statusCode := http.StatusBadGateway

		// Map specific errors to appropriate status codes
		switch {
		case errors.Is(err, core.ErrMissingCredentials):
			statusCode = http.StatusInternalServerError
		case errors.Is(err, core.ErrHandshakeFailed):
			statusCode = http.StatusBadGateway
		}

		c.JSON(statusCode, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"authorization_url": authURL})
}

// Complete exchanges the verification code for an access token pair
func (h *SessionHandlers) Complete(c *gin.Context) {
	var req struct {
		VerificationCode string `json:"verification_code" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if err := h.session.CompleteOAuth(c.Request.Context(), req.VerificationCode); err != nil {
		statusCode := http.StatusBadGateway

		// Map specific errors to appropriate status codes
		switch {
		case errors.Is(err, core.ErrNoHandshake):
			statusCode = http.StatusConflict
		case errors.Is(err, core.ErrHandshakeFailed):
			statusCode = http.StatusBadGateway
		}

		c.JSON(statusCode, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Authenticated"})
}

// Status reports the session state without touching the broker
func (h *SessionHandlers) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.session.Status())
}

// Proxy signs the incoming request and relays it to the broker. The response
// body passes through untouched with its original status code; auth-class
// broker rejections surface as 401 after the token record has been cleared.
func (h *SessionHandlers) Proxy(c *gin.Context) {
	method := c.Request.Method
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
	default:
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "use GET, POST, PUT or DELETE"})
		return
	}

	var body []byte
	if c.Request.Body != nil {
		var err error
		body, err = io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
			return
		}
	}

	resp, err := h.session.Do(c.Request.Context(), method, c.Param("endpoint"), c.Request.URL.Query(), body)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrNotAuthenticated), errors.Is(err, core.ErrTokenInvalidated):
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		case errors.Is(err, core.ErrBrokerUnavailable):
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.Data(resp.StatusCode, "application/json", resp.Body)
}
