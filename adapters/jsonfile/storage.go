// Package jsonfile persists progress blobs to a single JSON document on
// disk, keyed like a small key-value store.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"wastewise/core"
)

// Store keeps every blob in one file. Suitable for a single device and for
// demos.
type Store struct {
	path string
	key  string
	mu   sync.Mutex
	// in-memory cache of the file
	data map[string]json.RawMessage
}

// Option configures a Store.
type Option func(*Store)

// WithKey stores progress under key instead of core.DefaultProgressKey.
func WithKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

func New(path string, opts ...Option) (*Store, error) {
	s := &Store{path: path, key: core.DefaultProgressKey, data: map[string]json.RawMessage{}}
	for _, o := range opts {
		o(s)
	}
	if err := s.load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	if len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, &s.data); err != nil {
		return fmt.Errorf("decode %s: %w", s.path, err)
	}
	return nil
}

func (s *Store) persist() error {
	b, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *Store) LoadProgress(_ context.Context) (core.UserProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.data[s.key]
	if !ok {
		return core.UserProgress{}, core.ErrNotFound
	}
	var p core.UserProgress
	if err := json.Unmarshal(raw, &p); err != nil {
		return core.UserProgress{}, fmt.Errorf("decode %q: %w", s.key, err)
	}
	return p, nil
}

func (s *Store) SaveProgress(_ context.Context, p core.UserProgress) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.data[s.key]
	s.data[s.key] = b
	if err := s.persist(); err != nil {
		if had {
			s.data[s.key] = prev
		} else {
			delete(s.data, s.key)
		}
		return err
	}
	return nil
}
