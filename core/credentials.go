package core

// Credentials holds the consumer key pair issued by E*TRADE.
// Loaded once at startup and read-only afterwards.
type Credentials struct {
	ConsumerKey    string
	ConsumerSecret string
	Sandbox        bool
}

// Validate checks that both consumer credentials are present.
func (c Credentials) Validate() error {
	if c.ConsumerKey == "" || c.ConsumerSecret == "" {
		return ErrMissingCredentials
	}
	return nil
}

// E*TRADE environment base URLs. Sandbox and production credentials are not
// interchangeable, so the whole endpoint set is switched together.
const (
	SandboxBaseURL    = "https://apisb.etrade.com"
	ProductionBaseURL = "https://api.etrade.com"

	// The authorize page is served by the retail site in both environments.
	AuthorizeURL = "https://us.etrade.com/e/t/etws/authorize"
)

// Endpoints is the set of broker URLs a session talks to.
// Kept as data so tests can point a session at a fake broker.
type Endpoints struct {
	BaseURL         string // REST API base, e.g. https://apisb.etrade.com
	RequestTokenURL string // OAuth leg 1
	AuthorizeURL    string // Human-facing authorization page
	AccessTokenURL  string // OAuth leg 3
}

// EndpointsFor returns the endpoint set for the environment selected by
// the sandbox flag.
func EndpointsFor(sandbox bool) Endpoints {
	base := ProductionBaseURL
	if sandbox {
		base = SandboxBaseURL
	}
	return Endpoints{
		BaseURL:         base,
		RequestTokenURL: base + "/oauth/request_token",
		AuthorizeURL:    AuthorizeURL,
		AccessTokenURL:  base + "/oauth/access_token",
	}
}
