package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FSStore is the default file-backed store. Entries live under
// <root>/<sanitized workdir>/<operation>/<fingerprint>.json, one file per
// fingerprint.
type FSStore struct {
	root string
}

// NewFSStore creates a store rooted at root. The directory is created on
// first write, not here.
func NewFSStore(root string) *FSStore {
	return &FSStore{root: root}
}

// Root returns the store's root directory.
func (s *FSStore) Root() string {
	return s.root
}

// entryPath derives the entry file path for key.
func (s *FSStore) entryPath(key Key) string {
	return filepath.Join(s.root, sanitizePath(key.WorkDir), key.Op, key.Fingerprint+".json")
}

// Get implements Store.
func (s *FSStore) Get(key Key) ([]byte, bool, error) {
	payload, err := os.ReadFile(s.entryPath(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading cache entry: %w", err)
	}
	return payload, true, nil
}

// Put implements Store.
func (s *FSStore) Put(key Key, payload []byte) error {
	path := s.entryPath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	if err := os.WriteFile(path, payload, 0644); err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}

// sanitizePath flattens an absolute working directory path into a single
// safe path segment.
func sanitizePath(path string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_")
	return strings.Trim(replacer.Replace(path), "_")
}
