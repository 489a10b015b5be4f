// Package storage persists page screenshots on disk.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileStore writes one PNG per page under a directory.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create screenshot directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Put writes png and returns its file name relative to the store directory.
func (s *FileStore) Put(ctx context.Context, pageURL string, png []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := SanitizeFilename(pageURL) + ".png"

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.WriteFile(filepath.Join(s.dir, name), png, 0644); err != nil {
		return "", fmt.Errorf("failed to write screenshot %s: %w", name, err)
	}
	return name, nil
}

// Dir is where screenshots are written.
func (s *FileStore) Dir() string {
	return s.dir
}

var filenameReplacer = strings.NewReplacer(
	"/", "_",
	"\\", "_",
	":", "_",
	"*", "_",
	"?", "_",
	"\"", "_",
	"<", "_",
	">", "_",
	"|", "_",
	"&", "_",
	"=", "_",
	"#", "_",
	" ", "_",
	".", "_",
)

// SanitizeFilename flattens a URL into a safe file name without extension.
func SanitizeFilename(rawURL string) string {
	name := strings.TrimPrefix(rawURL, "http://")
	name = strings.TrimPrefix(name, "https://")
	name = strings.TrimPrefix(name, "www.")
	name = strings.TrimRight(filenameReplacer.Replace(name), "_")

	if len(name) > 200 {
		name = name[:200]
	}
	if name == "" {
		name = "index"
	}
	return name
}
