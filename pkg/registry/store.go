package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	DefaultStoreFileName = ".x1swap-store.json"
)

// Store is a durable key-value namespace. Values are opaque JSON documents.
type Store interface {
	Get(key string) (json.RawMessage, bool)
	Put(key string, value json.RawMessage) error
}

// FileStore keeps every key in one JSON object on disk
type FileStore struct {
	filePath string
	mu       sync.RWMutex
	entries  map[string]json.RawMessage
}

// NewFileStore opens (or lazily creates) the store at filePath. An empty path
// means DefaultStoreFileName in the user's home directory.
func NewFileStore(filePath string) (*FileStore, error) {
	if filePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		filePath = filepath.Join(home, DefaultStoreFileName)
	}

	s := &FileStore{
		filePath: filePath,
		entries:  make(map[string]json.RawMessage),
	}

	if err := s.load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load store: %w", err)
	}
	return s, nil
}

func (s *FileStore) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	entries := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("failed to unmarshal store: %w", err)
	}
	s.entries = entries
	return nil
}

// Get returns the raw value stored under key
func (s *FileStore) Get(key string) (json.RawMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.entries[key]
	return v, ok
}

// Put replaces key and rewrites the file
func (s *FileStore) Put(key string, value json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.entries[key]
	s.entries[key] = value
	if err := s.saveLocked(); err != nil {
		if had {
			s.entries[key] = prev
		} else {
			delete(s.entries, key)
		}
		return err
	}
	return nil
}

// Path returns the backing file
func (s *FileStore) Path() string {
	return s.filePath
}

func (s *FileStore) saveLocked() error {
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// temp file + rename so readers never see a partial document
	tempFile := s.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write store: %w", err)
	}
	if err := os.Rename(tempFile, s.filePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
