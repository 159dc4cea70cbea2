package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// handleGet handles the etrade_get tool: a signed GET against an arbitrary
// API endpoint with optional query parameters.
func (s *Server) handleGet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	endpoint, err := request.RequireString("endpoint")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	query := queryFromArgs(request.GetArguments()["params"])

	resp, err := s.session.Do(ctx, http.MethodGet, endpoint, query, nil)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return toolResultFromResponse(resp.StatusCode, resp.Body), nil
}

// handlePost handles the etrade_post tool: a signed POST, PUT or DELETE with
// an optional JSON body and query parameters.
func (s *Server) handlePost(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	endpoint, err := request.RequireString("endpoint")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	method := strings.ToUpper(request.GetString("method", http.MethodPost))
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodDelete:
	default:
		return mcp.NewToolResultError(fmt.Sprintf("invalid method %q, use POST, PUT or DELETE", method)), nil
	}

	args := request.GetArguments()
	query := queryFromArgs(args["params"])

	var body []byte
	if data, ok := args["data"].(map[string]any); ok && len(data) > 0 {
		body, err = json.Marshal(data)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid request body: %v", err)), nil
		}
	}

	resp, err := s.session.Do(ctx, method, endpoint, query, body)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return toolResultFromResponse(resp.StatusCode, resp.Body), nil
}

// handleInitializeOAuth handles the initialize_oauth tool
func (s *Server) handleInitializeOAuth(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	authURL, err := s.session.InitializeOAuth(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(map[string]any{
		"authorization_url": authURL,
		"status":            "success",
	}), nil
}

// handleCompleteOAuth handles the complete_oauth tool
func (s *Server) handleCompleteOAuth(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := request.RequireString("verificationCode")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := s.session.CompleteOAuth(ctx, code); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(map[string]any{
		"status":  "success",
		"message": "OAuth authentication completed successfully. You can now use other API functions.",
	}), nil
}

// handleGetLoginCredentials handles the get_login_credentials tool
func (s *Server) handleGetLoginCredentials(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.login.Username == "" || s.login.Password == "" {
		return mcp.NewToolResultError("ETRADE_USERNAME and ETRADE_PASSWORD must be set in the environment"), nil
	}

	return jsonResult(map[string]any{
		"username": s.login.Username,
		"password": s.login.Password,
		"status":   "success",
	}), nil
}

// handleAutomateOAuth handles the automate_oauth tool: it starts the
// handshake and hands a browser automation tool everything it needs to drive
// the authorization page and come back with the verification code.
func (s *Server) handleAutomateOAuth(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	authURL, err := s.session.InitializeOAuth(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if s.login.Username == "" || s.login.Password == "" {
		return jsonResult(map[string]any{
			"error":             "ETRADE_USERNAME and ETRADE_PASSWORD must be set in the environment",
			"authorization_url": authURL,
			"status":            "error",
		}), nil
	}

	return jsonResult(map[string]any{
		"authorization_url": authURL,
		"instructions":      "Use a browser automation tool to: 1) Navigate to authorization_url, 2) Fill username and password, 3) Click login, 4) Click Accept, 5) Extract the verification code from the textbox, 6) Call complete_oauth with the code",
		"username":          s.login.Username,
		"password":          s.login.Password,
		"status":            "ready",
	}), nil
}

// handleStatus handles the session_status tool
func (s *Server) handleStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.session.Status()), nil
}

// queryFromArgs converts a tool params object into query parameters
func queryFromArgs(raw any) url.Values {
	params, ok := raw.(map[string]any)
	if !ok || len(params) == 0 {
		return nil
	}

	query := url.Values{}
	for key, value := range params {
		query.Set(key, fmt.Sprint(value))
	}
	return query
}

// toolResultFromResponse relays a raw broker response. Success bodies pass
// through verbatim when they are JSON; anything non-2xx surfaces the status
// and body untouched as a tool error.
func toolResultFromResponse(status int, body []byte) *mcp.CallToolResult {
	if status == http.StatusOK || status == http.StatusCreated {
		if json.Valid(body) {
			return mcp.NewToolResultText(string(body))
		}
		return jsonResult(map[string]any{
			"response":    string(body),
			"status_code": status,
		})
	}

	return mcp.NewToolResultError(fmt.Sprintf("API request failed: %d - %s", status, string(body)))
}

func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err))
	}
	return mcp.NewToolResultText(string(data))
}
