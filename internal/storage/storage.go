package storage

import (
	"context"
)

// Store publishes comparison artifacts (diff images, expected copies) so
// they survive ephemeral CI workspaces.
type Store interface {
	// Save stores data under the given key and returns the artifact URL.
	Save(ctx context.Context, key string, data []byte) (string, error)
	// Load retrieves an artifact from the URL Save returned.
	Load(ctx context.Context, url string) ([]byte, error)
}
