package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/openquant/etrade-mcp/core"
	"github.com/openquant/etrade-mcp/ports"
)

// DefaultTokenFile is the token record location when ETRADE_TOKEN_FILE is unset
const DefaultTokenFile = ".etrade_tokens.json"

// FileStore is a file-backed implementation of the TokenStore interface.
// The record holds only the access token pair and is owner-readable only.
type FileStore struct {
	path string
}

// NewFileStore creates a new file store. An empty path selects the default
// token file in the working directory.
func NewFileStore(path string) ports.TokenStore {
	if path == "" {
		path = DefaultTokenFile
	}
	return &FileStore{path: path}
}

// Load reads the token record. A missing or unparseable record yields
// (nil, nil); corrupt records are removed so the next handshake starts clean.
func (s *FileStore) Load(ctx context.Context) (*core.AccessToken, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	var token core.AccessToken
	if err := json.Unmarshal(data, &token); err != nil || !token.Valid() {
		// Corrupt or one-sided record: treat as absent and drop it
		_ = os.Remove(s.path)
		return nil, nil
	}

	return &token, nil
}

// Save writes the pair with write-temp-then-rename semantics so a crash
// mid-write never leaves a half-written record.
func (s *FileStore) Save(ctx context.Context, token core.AccessToken) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to encode token record: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp token file: %w", err)
	}
	tmpName := tmp.Name()

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to restrict token file permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close token file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace token file: %w", err)
	}

	return nil
}

// Clear removes the token record. Removing an absent record is a no-op.
func (s *FileStore) Clear(ctx context.Context) error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	return nil
}
