package ports

import (
	"context"

	"github.com/openquant/etrade-mcp/core"
)

// TokenStore persists the access token pair between processes.
type TokenStore interface {
	// Load returns the stored pair, or (nil, nil) when no usable record exists.
	// A corrupt record is treated as absent and removed.
	Load(ctx context.Context) (*core.AccessToken, error)

	// Save writes the pair atomically, replacing any previous record.
	Save(ctx context.Context, token core.AccessToken) error

	// Clear removes the record. Clearing an absent record is not an error.
	Clear(ctx context.Context) error
}
