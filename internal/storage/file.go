package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

type fileStore struct {
	config FileConfig
}

type FileConfig struct {
	Directory string
}

// NewFileStore creates a store rooted at a local directory.
func NewFileStore(ctx context.Context, f FileConfig) (Store, error) {
	if f.Directory == "" {
		f.Directory = "."
	}

	return &fileStore{
		config: f,
	}, nil
}

func (s *fileStore) Save(ctx context.Context, key string, data []byte) (string, error) {
	path := filepath.Join(s.config.Directory, key)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create artifact directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}

	return path, nil
}

func (s *fileStore) Load(ctx context.Context, url string) ([]byte, error) {
	data, err := os.ReadFile(url)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}

	return data, nil
}
