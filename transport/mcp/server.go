package mcp

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/openquant/etrade-mcp/service"
)

// LoginCredentials feed the browser-automation tools. Empty values disable
// get_login_credentials and automate_oauth responses with stored logins.
type LoginCredentials struct {
	Username string
	Password string
}

// Server exposes the broker session over the MCP stdio protocol: the OAuth
// handshake tools plus the generic signed GET/POST passthrough.
type Server struct {
	session   *service.Session
	login     LoginCredentials
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates the MCP server and registers all tools
func NewServer(session *service.Session, login LoginCredentials, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	mcpServer := server.NewMCPServer(
		"etrade-mcp",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	s := &Server{
		session:   session,
		login:     login,
		logger:    logger,
		mcpServer: mcpServer,
	}
	s.registerTools()

	return s
}

// Start serves the MCP protocol over stdin/stdout and blocks until the
// client closes the connection.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("starting mcp server on stdio")
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) registerTools() {
	getTool := mcp.NewTool("etrade_get",
		mcp.WithDescription("Make a GET request to any E*TRADE API endpoint, e.g. accounts, quotes, orders, positions."),
		mcp.WithString("endpoint",
			mcp.Required(),
			mcp.Description("API endpoint path, e.g. '/v1/accounts/list' or '/v1/market/quote/AAPL'"),
		),
		mcp.WithObject("params",
			mcp.Description("Query parameters as key-value pairs, e.g. {\"detailFlag\": \"ALL\"}"),
		),
	)
	s.mcpServer.AddTool(getTool, s.handleGet)

	postTool := mcp.NewTool("etrade_post",
		mcp.WithDescription("Make a POST, PUT or DELETE request to any E*TRADE API endpoint, e.g. placing or canceling orders."),
		mcp.WithString("method",
			mcp.Description("HTTP method: POST, PUT or DELETE (default POST)"),
			mcp.Enum("POST", "PUT", "DELETE"),
		),
		mcp.WithString("endpoint",
			mcp.Required(),
			mcp.Description("API endpoint path, e.g. '/v1/accounts/{accountId}/orders'"),
		),
		mcp.WithObject("data",
			mcp.Description("Request body as a JSON object"),
		),
		mcp.WithObject("params",
			mcp.Description("Optional query parameters as key-value pairs"),
		),
	)
	s.mcpServer.AddTool(postTool, s.handlePost)

	initTool := mcp.NewTool("initialize_oauth",
		mcp.WithDescription("Initialize the OAuth flow and get the authorization URL to present to the user."),
	)
	s.mcpServer.AddTool(initTool, s.handleInitializeOAuth)

	completeTool := mcp.NewTool("complete_oauth",
		mcp.WithDescription("Complete the OAuth flow with the verification code from the authorization page. Call after visiting the URL from initialize_oauth."),
		mcp.WithString("verificationCode",
			mcp.Required(),
			mcp.Description("The verification code shown after authorizing the application"),
		),
	)
	s.mcpServer.AddTool(completeTool, s.handleCompleteOAuth)

	credsTool := mcp.NewTool("get_login_credentials",
		mcp.WithDescription("Get the stored E*TRADE login credentials for automating the authorization page with a browser tool."),
	)
	s.mcpServer.AddTool(credsTool, s.handleGetLoginCredentials)

	automateTool := mcp.NewTool("automate_oauth",
		mcp.WithDescription("Start the OAuth flow and return the authorization URL, stored logins and step-by-step instructions for a browser automation tool."),
	)
	s.mcpServer.AddTool(automateTool, s.handleAutomateOAuth)

	statusTool := mcp.NewTool("session_status",
		mcp.WithDescription("Report the current session state: environment, authentication and token validation."),
	)
	s.mcpServer.AddTool(statusTool, s.handleStatus)
}
