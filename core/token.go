package core

import "time"

// RequestToken is the temporary credential issued by the first OAuth leg.
// It lives in memory only, between initialize and complete, and is consumed
// (or discarded) by the access token exchange.
type RequestToken struct {
	Token    string    // Temporary token returned by the broker
	Secret   string    // Secret used to sign the access token exchange
	IssuedAt time.Time // When the request token was obtained
}

// AccessToken is the durable user-authorized credential that signs every
// API call. It is always persisted and loaded as a complete pair.
type AccessToken struct {
	Token  string `json:"access_token"`
	Secret string `json:"access_token_secret"`
}

// Valid reports whether both halves of the pair are present.
func (t AccessToken) Valid() bool {
	return t.Token != "" && t.Secret != ""
}
