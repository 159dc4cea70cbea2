package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gomodule/oauth1/oauth"

	"github.com/openquant/etrade-mcp/core"
	"github.com/openquant/etrade-mcp/ports"
)

// validation is the per-process token validation state. It starts unknown on
// every process start, even when a pair was loaded from the store, and is
// never persisted.
type validation int

const (
	validationUnknown validation = iota
	validationConfirmed
	validationRejected
)

func (v validation) String() string {
	switch v {
	case validationConfirmed:
		return "validated"
	case validationRejected:
		return "invalid"
	default:
		return "unknown"
	}
}

// probePath is the cheap read endpoint used to test whether a stored pair is
// still accepted by the broker.
const probePath = "/v1/accounts/list"

// defaultTimeout bounds every broker call
const defaultTimeout = 30 * time.Second

// Response is the raw outcome of a signed API call. The body is opaque to the
// session, only the status code is interpreted.
type Response struct {
	StatusCode int
	Body       []byte
}

// Session owns the OAuth 1.0a credential lifecycle for one broker
// environment: the three-leg handshake, the persisted access token pair, and
// the once-per-process validation that guards every signed call.
//
// A single mutex guards the request token slot, the access token slot and the
// validation state, so concurrent handshakes and concurrent auth failures
// resolve last-write-wins without corrupting the pair.
type Session struct {
	creds     core.Credentials
	endpoints core.Endpoints
	store     ports.TokenStore
	events    ports.EventPublisher
	logger    *slog.Logger

	httpClient *http.Client
	oauth      oauth.Client

	mu           sync.Mutex
	requestToken *core.RequestToken
	accessToken  *core.AccessToken
	state        validation
	validatedAt  time.Time
}

// Option customizes a Session
type Option func(*Session)

// WithHTTPClient replaces the HTTP client used for all broker calls
func WithHTTPClient(client *http.Client) Option {
	return func(s *Session) {
		s.httpClient = client
	}
}

// NewSession creates a session for the given credentials and endpoints and
// loads any previously persisted access token pair. The loaded pair starts
// unvalidated: the first signed call probes it.
func NewSession(
	ctx context.Context,
	creds core.Credentials,
	endpoints core.Endpoints,
	tokenStore ports.TokenStore,
	eventPub ports.EventPublisher,
	logger *slog.Logger,
	opts ...Option,
) (*Session, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Session{
		creds:     creds,
		endpoints: endpoints,
		store:     tokenStore,
		events:    eventPub,
		logger:    logger,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		oauth: oauth.Client{
			Credentials: oauth.Credentials{
				Token:  creds.ConsumerKey,
				Secret: creds.ConsumerSecret,
			},
			TemporaryCredentialRequestURI: endpoints.RequestTokenURL,
			ResourceOwnerAuthorizationURI: endpoints.AuthorizeURL,
			TokenRequestURI:               endpoints.AccessTokenURL,
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	token, err := tokenStore.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load token record: %w", err)
	}
	if token != nil {
		s.accessToken = token
		logger.Info("loaded persisted access token pair", "environment", s.Environment())
	}

	return s, nil
}

// Environment names the broker environment this session is bound to
func (s *Session) Environment() string {
	if s.creds.Sandbox {
		return "sandbox"
	}
	return "production"
}

// InitializeOAuth requests a temporary token pair from the broker and returns
// the authorization URL to present to the user. Any in-flight handshake is
// overwritten, only one handshake exists at a time.
func (s *Session) InitializeOAuth(ctx context.Context) (string, error) {
	if err := s.creds.Validate(); err != nil {
		return "", err
	}

	// Out-of-band callback: the user reads the verification code off the
	// authorize page instead of being redirected.
	tempCred, err := s.oauth.RequestTemporaryCredentialsContext(context.WithValue(ctx, oauth.HTTPClient, s.httpClient), "oob", nil)
	if err != nil {
		return "", fmt.Errorf("%w: request token leg: %v", core.ErrHandshakeFailed, err)
	}

	s.mu.Lock()
	s.requestToken = &core.RequestToken{
		Token:    tempCred.Token,
		Secret:   tempCred.Secret,
		IssuedAt: time.Now(),
	}
	s.mu.Unlock()

	// E*TRADE's authorize page takes the consumer key and request token as
	// key/token, not the standard oauth_token parameter.
	authorizeURL := fmt.Sprintf("%s?key=%s&token=%s",
		s.endpoints.AuthorizeURL,
		url.QueryEscape(s.creds.ConsumerKey),
		url.QueryEscape(tempCred.Token),
	)

	s.logger.Info("oauth handshake initialized", "environment", s.Environment())
	return authorizeURL, nil
}

// CompleteOAuth exchanges the pending request token and the user's
// verification code for an access token pair, persists the pair and marks the
// session validated (the exchange itself proves the pair is live). The
// request token is single-use: it is consumed whether or not the exchange
// succeeds, so a failed exchange restarts from InitializeOAuth.
func (s *Session) CompleteOAuth(ctx context.Context, verificationCode string) error {
	s.mu.Lock()
	pending := s.requestToken
	s.requestToken = nil
	s.mu.Unlock()

	if pending == nil {
		return core.ErrNoHandshake
	}

	tokenCred, _, err := s.oauth.RequestTokenContext(context.WithValue(ctx, oauth.HTTPClient, s.httpClient), &oauth.Credentials{
		Token:  pending.Token,
		Secret: pending.Secret,
	}, verificationCode)
	if err != nil {
		return fmt.Errorf("%w: access token leg: %v", core.ErrHandshakeFailed, err)
	}

	pair := core.AccessToken{
		Token:  tokenCred.Token,
		Secret: tokenCred.Secret,
	}
	if !pair.Valid() {
		return fmt.Errorf("%w: broker returned an incomplete token pair", core.ErrHandshakeFailed)
	}

	s.mu.Lock()
	s.accessToken = &pair
	s.state = validationConfirmed
	s.validatedAt = time.Now()
	s.mu.Unlock()

	// A save failure leaves this process authenticated but the pair won't
	// survive a restart, so it is reported without failing the handshake.
	if err := s.store.Save(ctx, pair); err != nil {
		s.logger.Warn("failed to persist access token pair", "error", err)
	}

	if s.events != nil {
		if err := s.events.PublishAuthorized(ctx, s.Environment()); err != nil {
			s.logger.Warn("failed to publish authorized event", "error", err)
		}
	}

	s.logger.Info("oauth handshake completed", "environment", s.Environment())
	return nil
}

// EnsureValid checks that a usable access token pair is present. The first
// call of the process issues one signed probe against a cheap read endpoint;
// once the probe succeeds the result is trusted for the rest of the process
// lifetime, until a real call comes back 401/403.
func (s *Session) EnsureValid(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == validationRejected {
		return core.ErrTokenInvalidated
	}
	if s.accessToken == nil || !s.accessToken.Valid() {
		return core.ErrNotAuthenticated
	}
	if s.state == validationConfirmed {
		return nil
	}

	status, err := s.probe(ctx, *s.accessToken)
	if err != nil {
		// Network failure or 5xx: keep the pair and stay unknown so the
		// next call probes again.
		return fmt.Errorf("%w: token validation probe: %v", core.ErrBrokerUnavailable, err)
	}

	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		s.invalidateLocked(ctx, fmt.Sprintf("validation probe returned %d", status))
		return core.ErrTokenInvalidated
	}

	s.state = validationConfirmed
	s.validatedAt = time.Now()
	s.logger.Info("access token pair validated", "environment", s.Environment())
	return nil
}

// probe issues the lightweight validation call. Called with s.mu held, which
// serializes probes from concurrent callers.
func (s *Session) probe(ctx context.Context, token core.AccessToken) (int, error) {
	req, err := s.signedRequest(ctx, http.MethodGet, probePath, nil, nil, token)
	if err != nil {
		return 0, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusInternalServerError {
		return 0, fmt.Errorf("broker returned %d", resp.StatusCode)
	}

	return resp.StatusCode, nil
}

// Do signs and issues one API call against the broker. 401/403 responses are
// treated as mid-session expiry: the persisted pair is cleared and
// ErrTokenInvalidated surfaces in place of the response. Every other status
// passes through untouched with its raw body. Do never retries.
func (s *Session) Do(ctx context.Context, method, endpoint string, query url.Values, body []byte) (*Response, error) {
	method = strings.ToUpper(method)
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
	default:
		return nil, fmt.Errorf("unsupported method %q, use GET, POST, PUT or DELETE", method)
	}

	if err := s.EnsureValid(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.accessToken == nil {
		// A concurrent call invalidated the pair after our EnsureValid
		s.mu.Unlock()
		return nil, core.ErrTokenInvalidated
	}
	token := *s.accessToken
	s.mu.Unlock()

	req, err := s.signedRequest(ctx, method, endpoint, query, body, token)
	if err != nil {
		return nil, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrBrokerUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", core.ErrBrokerUnavailable, err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		s.mu.Lock()
		s.invalidateLocked(ctx, fmt.Sprintf("api call returned %d", resp.StatusCode))
		s.mu.Unlock()
		return nil, core.ErrTokenInvalidated
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       raw,
	}, nil
}

// signedRequest builds a request with a fresh OAuth 1.0a signature over
// method, URL and query parameters.
func (s *Session) signedRequest(ctx context.Context, method, endpoint string, query url.Values, body []byte, token core.AccessToken) (*http.Request, error) {
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}

	u, err := url.Parse(s.endpoints.BaseURL + endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}

	var reader io.Reader
	if len(body) > 0 {
		reader = strings.NewReader(string(body))
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if len(body) > 0 && (method == http.MethodPost || method == http.MethodPut) {
		req.Header.Set("Content-Type", "application/json")
	}

	// The signature covers the query parameters; the JSON body does not
	// participate per OAuth 1.0a for non-form content types.
	cred := &oauth.Credentials{Token: token.Token, Secret: token.Secret}
	if err := s.oauth.SetAuthorizationHeader(req.Header, cred, method, u, query); err != nil {
		return nil, fmt.Errorf("failed to sign request: %w", err)
	}

	if len(query) > 0 {
		req.URL.RawQuery = query.Encode()
	}

	return req, nil
}

// invalidateLocked clears the pair and flips the session to invalid. Called
// with s.mu held. Repeated invalidations are no-ops so concurrent 401s from
// in-flight calls delete the record once.
func (s *Session) invalidateLocked(ctx context.Context, reason string) {
	if s.state == validationRejected && s.accessToken == nil {
		return
	}

	s.accessToken = nil
	s.state = validationRejected

	if err := s.store.Clear(ctx); err != nil {
		s.logger.Warn("failed to clear token record", "error", err)
	}

	if s.events != nil {
		if err := s.events.PublishInvalidated(ctx, s.Environment(), reason); err != nil {
			s.logger.Warn("failed to publish invalidated event", "error", err)
		}
	}

	s.logger.Warn("access token pair invalidated", "environment", s.Environment(), "reason", reason)
}

// Status describes the session for status endpoints and tools
type Status struct {
	Environment   string    `json:"environment"`
	Authenticated bool      `json:"authenticated"`
	Validation    string    `json:"validation"`
	ValidatedAt   time.Time `json:"validated_at,omitzero"`
	HandshakeOpen bool      `json:"handshake_in_progress"`
}

// Status reports the current session state without touching the network
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Status{
		Environment:   s.Environment(),
		Authenticated: s.accessToken != nil,
		Validation:    s.state.String(),
		ValidatedAt:   s.validatedAt,
		HandshakeOpen: s.requestToken != nil,
	}
}

// IsAuthError reports whether err is one of the two conditions that require a
// new handshake.
func IsAuthError(err error) bool {
	return errors.Is(err, core.ErrNotAuthenticated) || errors.Is(err, core.ErrTokenInvalidated)
}
