// Package localstore is the client's durable key/value storage: a single
// owner-only JSON file in the data directory.
package localstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const fileName = "state.json"

// Well-known keys.
const (
	SessionKey = "session"
	ThemeKey   = "theme"
	CookieKey  = "cookie"
)

// Store is safe for concurrent use within one process.
type Store struct {
	path string

	mu     sync.Mutex
	values map[string]string
}

// DefaultDir returns ~/.todos.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home: %w", err)
	}
	return filepath.Join(home, ".todos"), nil
}

// Open loads dir/state.json, creating dir with 0700 if needed. A missing
// file is an empty store.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	s := &Store{path: filepath.Join(dir, fileName), values: map[string]string{}}
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}
	if len(b) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(b, &s.values); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	if s.values == nil {
		s.values = map[string]string{}
	}
	return s, nil
}

func (s *Store) Path() string { return s.path }

func (s *Store) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

// Set stores v under key and writes the file.
func (s *Store) Set(key, v string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.values[key]; ok && old == v {
		return nil
	}
	s.values[key] = v
	return s.saveLocked()
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; !ok {
		return nil
	}
	delete(s.values, key)
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	b, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// Slot binds one key of the store.
func (s *Store) Slot(key string) *Slot { return &Slot{store: s, key: key} }

// Slot is a single durable string value.
type Slot struct {
	store *Store
	key   string
}

func (s *Slot) Get() (string, bool) { return s.store.Get(s.key) }
func (s *Slot) Set(v string) error  { return s.store.Set(s.key, v) }
func (s *Slot) Clear() error        { return s.store.Delete(s.key) }

// MemorySlot is an in-process Slot.
type MemorySlot struct {
	mu  sync.Mutex
	v   string
	set bool
}

func (m *MemorySlot) Get() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.v, m.set
}

func (m *MemorySlot) Set(v string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.v, m.set = v, true
	return nil
}

func (m *MemorySlot) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.v, m.set = "", false
	return nil
}
