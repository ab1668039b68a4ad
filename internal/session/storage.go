package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Storage persists the current session token so it survives process
// restarts. Absence is reported as an empty token, not an error.
type Storage interface {
	Load() (string, error)
	Save(token string) error
	Clear() error
}

// FileStorage keeps the token in a single file. The Store is the only
// writer; the file is created user-readable only.
type FileStorage struct {
	path string
}

// NewFileStorage returns file-backed Storage rooted at path.
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

// Load reads the persisted token, returning "" when none was stored.
func (f *FileStorage) Load() (string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read session file: %w", err)
	}
	return string(data), nil
}

// Save writes the token, creating the parent directory when needed.
func (f *FileStorage) Save(token string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}
	if err := os.WriteFile(f.path, []byte(token), 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}

// Clear removes the persisted token. Missing files are not an error.
func (f *FileStorage) Clear() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

// NewInMemoryStorage returns Storage backed by a plain variable. Useful for
// tests and for running the client without touching the filesystem.
func NewInMemoryStorage() *InMemoryStorage {
	return &InMemoryStorage{}
}

// InMemoryStorage implements Storage without durability.
type InMemoryStorage struct {
	mu    sync.Mutex
	token string
}

// Load returns the held token.
func (s *InMemoryStorage) Load() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, nil
}

// Save replaces the held token.
func (s *InMemoryStorage) Save(token string) error {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return nil
}

// Clear drops the held token.
func (s *InMemoryStorage) Clear() error {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
	return nil
}
