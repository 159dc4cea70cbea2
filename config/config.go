package config

import (
	"os"
	"strings"

	"github.com/openquant/etrade-mcp/core"
)

// Config collects everything the process reads from the environment.
type Config struct {
	Credentials core.Credentials

	// TokenFile is the durable token record path (ETRADE_TOKEN_FILE)
	TokenFile string

	// Username and Password feed the get_login_credentials tool for
	// browser-automated authorization. Never persisted.
	Username string
	Password string

	// RedisURL switches the token store and event stream to Redis when set
	RedisURL string

	// HTTPAddr enables the REST gateway when set, e.g. ":9000"
	HTTPAddr string
}

// Load reads the configuration from the environment. Sandbox mode is the
// default; set ETRADE_SANDBOX=false to talk to production.
func Load() Config {
	return Config{
		Credentials: core.Credentials{
			ConsumerKey:    os.Getenv("ETRADE_CONSUMER_KEY"),
			ConsumerSecret: os.Getenv("ETRADE_CONSUMER_SECRET"),
			Sandbox:        sandboxDefaultTrue(os.Getenv("ETRADE_SANDBOX")),
		},
		TokenFile: os.Getenv("ETRADE_TOKEN_FILE"),
		Username:  os.Getenv("ETRADE_USERNAME"),
		Password:  os.Getenv("ETRADE_PASSWORD"),
		RedisURL:  os.Getenv("REDIS_URL"),
		HTTPAddr:  os.Getenv("ETRADE_HTTP_ADDR"),
	}
}

// Validate checks the parts required at startup. Consumer credentials are the
// only fatal requirement; everything else has a default.
func (c Config) Validate() error {
	return c.Credentials.Validate()
}

func sandboxDefaultTrue(v string) bool {
	return !strings.EqualFold(strings.TrimSpace(v), "false")
}
