// Package snapshot implements cache.SnapshotStore on a local file, Redis
// and PostgreSQL.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/wonny/marketgate/internal/cache"
)

// DefaultFilePath is used when no path is configured
const DefaultFilePath = "earning_summary_cache.json"

// document is the on-disk layout shared by every backend
type document struct {
	SavedAt time.Time          `json:"saved_at"`
	Entries []cache.CacheEntry `json:"entries"`
}

// FileStore keeps the snapshot in one JSON file
type FileStore struct {
	path string
}

// NewFileStore stores the snapshot at path
func NewFileStore(path string) *FileStore {
	if path == "" {
		path = DefaultFilePath
	}
	return &FileStore{path: path}
}

// Name identifies the backend in status output
func (s *FileStore) Name() string { return "file:" + s.path }

// Load reads the snapshot. A missing file is an empty snapshot.
func (s *FileStore) Load(ctx context.Context) ([]cache.CacheEntry, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return doc.Entries, nil
}

// Save replaces the file atomically through a temp file in the same directory
func (s *FileStore) Save(ctx context.Context, entries []cache.CacheEntry) error {
	data, err := json.MarshalIndent(document{SavedAt: time.Now().UTC(), Entries: entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*.json")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}
