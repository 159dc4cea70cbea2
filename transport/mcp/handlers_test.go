package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openquant/etrade-mcp/adapters/store"
	"github.com/openquant/etrade-mcp/core"
	"github.com/openquant/etrade-mcp/service"
)

func newTestServer(t *testing.T, login LoginCredentials) (*Server, *httptest.Server) {
	t.Helper()

	broker := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/request_token":
			w.Header().Set("Content-Type", "application/x-www-form-urlencoded")
			fmt.Fprint(w, "oauth_token=rt&oauth_token_secret=rts&oauth_callback_confirmed=true")
		case "/oauth/access_token":
			w.Header().Set("Content-Type", "application/x-www-form-urlencoded")
			fmt.Fprint(w, "oauth_token=tok&oauth_token_secret=sec")
		case "/v1/accounts/list":
			fmt.Fprint(w, `{"AccountListResponse":{"Accounts":[]}}`)
		case "/v1/accounts/acct-1/orders":
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"OrderResponse":{}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"Error":{"message":"not found"}}`)
		}
	}))
	t.Cleanup(broker.Close)

	endpoints := core.Endpoints{
		BaseURL:         broker.URL,
		RequestTokenURL: broker.URL + "/oauth/request_token",
		AuthorizeURL:    broker.URL + "/authorize",
		AccessTokenURL:  broker.URL + "/oauth/access_token",
	}
	creds := core.Credentials{ConsumerKey: "ck", ConsumerSecret: "cs", Sandbox: true}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	session, err := service.NewSession(context.Background(), creds, endpoints, store.NewMemoryStore(), nil, logger)
	require.NoError(t, err)

	return NewServer(session, login, logger), broker
}

func authenticate(t *testing.T, s *Server) {
	t.Helper()

	result, err := s.handleInitializeOAuth(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	require.False(t, result.IsError)

	request := mcp.CallToolRequest{}
	request.Params.Arguments = map[string]any{"verificationCode": "123456"}
	result, err = s.handleCompleteOAuth(context.Background(), request)
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(result))
}

func resultText(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return ""
	}
	if text, ok := result.Content[0].(mcp.TextContent); ok {
		return text.Text
	}
	return ""
}

func TestInitializeOAuthReturnsAuthorizationURL(t *testing.T) {
	s, _ := newTestServer(t, LoginCredentials{})

	result, err := s.handleInitializeOAuth(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	require.False(t, result.IsError)

	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(resultText(result)), &payload))
	assert.Equal(t, "success", payload["status"])
	assert.Contains(t, payload["authorization_url"], "token=rt")
}

func TestCompleteOAuthOutOfOrder(t *testing.T) {
	s, _ := newTestServer(t, LoginCredentials{})

	request := mcp.CallToolRequest{}
	request.Params.Arguments = map[string]any{"verificationCode": "123456"}

	result, err := s.handleCompleteOAuth(context.Background(), request)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(result), "initialize_oauth")
}

func TestGetRequiresAuthentication(t *testing.T) {
	s, _ := newTestServer(t, LoginCredentials{})

	request := mcp.CallToolRequest{}
	request.Params.Arguments = map[string]any{"endpoint": "/v1/accounts/list"}

	result, err := s.handleGet(context.Background(), request)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(result), "not authenticated")
}

func TestGetPassesThroughResponse(t *testing.T) {
	s, _ := newTestServer(t, LoginCredentials{})
	authenticate(t, s)

	request := mcp.CallToolRequest{}
	request.Params.Arguments = map[string]any{
		"endpoint": "v1/accounts/list",
		"params":   map[string]any{"detailFlag": "ALL"},
	}

	result, err := s.handleGet(context.Background(), request)
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(result))
	assert.Contains(t, resultText(result), "AccountListResponse")
}

func TestGetSurfacesBusinessErrors(t *testing.T) {
	s, _ := newTestServer(t, LoginCredentials{})
	authenticate(t, s)

	request := mcp.CallToolRequest{}
	request.Params.Arguments = map[string]any{"endpoint": "/v1/market/quote/NOPE"}

	result, err := s.handleGet(context.Background(), request)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(result), "404")
}

func TestPostSendsJSONBody(t *testing.T) {
	s, _ := newTestServer(t, LoginCredentials{})
	authenticate(t, s)

	request := mcp.CallToolRequest{}
	request.Params.Arguments = map[string]any{
		"endpoint": "/v1/accounts/acct-1/orders",
		"data":     map[string]any{"orderType": "EQ"},
	}

	result, err := s.handlePost(context.Background(), request)
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(result))
	assert.Contains(t, resultText(result), "OrderResponse")
}

func TestPostRejectsInvalidMethod(t *testing.T) {
	s, _ := newTestServer(t, LoginCredentials{})

	request := mcp.CallToolRequest{}
	request.Params.Arguments = map[string]any{
		"endpoint": "/v1/accounts/acct-1/orders",
		"method":   "TRACE",
	}

	result, err := s.handlePost(context.Background(), request)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(result), "invalid method")
}

func TestGetLoginCredentials(t *testing.T) {
	s, _ := newTestServer(t, LoginCredentials{Username: "user", Password: "pass"})

	result, err := s.handleGetLoginCredentials(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	require.False(t, result.IsError)

	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(resultText(result)), &payload))
	assert.Equal(t, "user", payload["username"])
	assert.Equal(t, "pass", payload["password"])
}

func TestGetLoginCredentialsMissing(t *testing.T) {
	s, _ := newTestServer(t, LoginCredentials{})

	result, err := s.handleGetLoginCredentials(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestAutomateOAuth(t *testing.T) {
	s, _ := newTestServer(t, LoginCredentials{Username: "user", Password: "pass"})

	result, err := s.handleAutomateOAuth(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	require.False(t, result.IsError)

	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(resultText(result)), &payload))
	assert.Equal(t, "ready", payload["status"])
	assert.NotEmpty(t, payload["authorization_url"])
	assert.Contains(t, payload["instructions"], "complete_oauth")
}

func TestSessionStatusTool(t *testing.T) {
	s, _ := newTestServer(t, LoginCredentials{})

	result, err := s.handleStatus(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	require.False(t, result.IsError)

	var status service.Status
	require.NoError(t, json.Unmarshal([]byte(resultText(result)), &status))
	assert.Equal(t, "sandbox", status.Environment)
	assert.False(t, status.Authenticated)
}
