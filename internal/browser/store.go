package browser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SessionStore persists opaque session blobs keyed by a user-chosen name.
type SessionStore struct {
	dir string
}

func NewSessionStore(dir string) (*SessionStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create sessions dir: %w", err)
	}
	return &SessionStore{dir: dir}, nil
}

func (s *SessionStore) path(name string) string {
	return filepath.Join(s.dir, filepath.Base(name)+".json")
}

// Load returns the saved blob for name, or nil when no such session exists;
// the caller falls back to a fresh session.
func (s *SessionStore) Load(name string) ([]byte, error) {
	data, err := os.ReadFile(s.path(name))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session %q: %w", name, err)
	}
	return data, nil
}

// Exists reports whether a session with the given name was saved.
func (s *SessionStore) Exists(name string) bool {
	_, err := os.Stat(s.path(name))
	return err == nil
}

func (s *SessionStore) Save(name string, blob []byte) error {
	if err := os.WriteFile(s.path(name), blob, 0600); err != nil {
		return fmt.Errorf("failed to save session %q: %w", name, err)
	}
	return nil
}

// List returns the names of all saved sessions.
func (s *SessionStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	return names, nil
}
