package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/openquant/etrade-mcp/adapters/events"
	"github.com/openquant/etrade-mcp/adapters/store"
	"github.com/openquant/etrade-mcp/config"
	"github.com/openquant/etrade-mcp/core"
	"github.com/openquant/etrade-mcp/ports"
	"github.com/openquant/etrade-mcp/service"
	transporthttp "github.com/openquant/etrade-mcp/transport/http"
	transportmcp "github.com/openquant/etrade-mcp/transport/mcp"
)

var version = "dev"

var httpAddr string

var rootCmd = &cobra.Command{
	Use:   "etrade-mcp",
	Short: "E*TRADE API MCP server",
	Long: `etrade-mcp manages OAuth 1.0a credentials and sessions for the
E*TRADE brokerage API and exposes them to an automated agent as MCP tools
over stdio. An optional REST gateway mirrors the tool surface over HTTP.

Required environment: ETRADE_CONSUMER_KEY, ETRADE_CONSUMER_SECRET.
Sandbox mode is the default; set ETRADE_SANDBOX=false for production.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func main() {
	rootCmd.Version = version
	rootCmd.Flags().StringVar(&httpAddr, "http", "", "also serve the REST gateway on this address, e.g. :9000 (overrides ETRADE_HTTP_ADDR)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Stdout carries the MCP protocol, so all logging goes to stderr
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration: %w", err)
	}

	wmLogger := watermill.NewSlogLogger(logger)

	tokenStore, publisher, err := buildBackends(ctx, cfg, wmLogger)
	if err != nil {
		return err
	}

	session, err := service.NewSession(
		ctx,
		cfg.Credentials,
		core.EndpointsFor(cfg.Credentials.Sandbox),
		tokenStore,
		events.NewWatermillPublisher(publisher),
		logger,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	addr := httpAddr
	if addr == "" {
		addr = cfg.HTTPAddr
	}
	if addr != "" {
		router := transporthttp.SetupRouter(session)
		go func() {
			logger.Info("starting rest gateway", "addr", addr)
			if err := router.Run(addr); err != nil {
				logger.Error("rest gateway stopped", "error", err)
			}
		}()
	}

	mcpServer := transportmcp.NewServer(session, transportmcp.LoginCredentials{
		Username: cfg.Username,
		Password: cfg.Password,
	}, logger)

	return mcpServer.Start(ctx)
}

// buildBackends selects the token store and event publisher: Redis-backed
// when REDIS_URL is set, file store plus in-process pubsub otherwise.
func buildBackends(ctx context.Context, cfg config.Config, wmLogger watermill.LoggerAdapter) (tokenStore ports.TokenStore, publisher message.Publisher, err error) {
	if cfg.RedisURL == "" {
		return store.NewFileStore(cfg.TokenFile),
			gochannel.NewGoChannel(gochannel.Config{}, wmLogger),
			nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse REDIS_URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	environment := "production"
	if cfg.Credentials.Sandbox {
		environment = "sandbox"
	}

	publisher, err = redisstream.NewPublisher(redisstream.PublisherConfig{
		Client: client,
	}, wmLogger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create redis publisher: %w", err)
	}

	return store.NewRedisStore(client, environment), publisher, nil
}
