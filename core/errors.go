package core

import "errors"

var (
	// ErrMissingCredentials is returned when the consumer key or secret is absent
	ErrMissingCredentials = errors.New("consumer key and consumer secret are required")

	// ErrHandshakeFailed is returned when an OAuth leg is rejected by the broker
	ErrHandshakeFailed = errors.New("oauth handshake failed")

	// ErrNoHandshake is returned when complete is called without a pending request token
	ErrNoHandshake = errors.New("no oauth handshake in progress, call initialize_oauth first")

	// ErrNotAuthenticated is returned when no access token pair is present
	ErrNotAuthenticated = errors.New("not authenticated, run initialize_oauth and complete_oauth first")

	// ErrTokenInvalidated is returned when the broker rejected the stored access token pair.
	// The pair has already been cleared when this error surfaces.
	ErrTokenInvalidated = errors.New("access tokens are invalid or expired, re-authenticate with initialize_oauth and complete_oauth")

	// ErrBrokerUnavailable is returned on network failures and 5xx responses.
	// Session state is untouched and the call is safe to retry.
	ErrBrokerUnavailable = errors.New("broker unavailable")
)
