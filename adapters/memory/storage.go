// Package memory keeps progress blobs in process memory. It backs tests and
// the demo mode of the server.
package memory

import (
	"context"
	"sync"

	"wastewise/core"
)

// Store is a concurrent in-memory Storage implementation.
type Store struct {
	key   string
	blobs sync.Map // map[string]core.UserProgress

	mu    sync.Mutex
	saves int
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

func New(opts ...Option) *Store {
	s := &Store{key: core.DefaultProgressKey}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) LoadProgress(ctx context.Context) (core.UserProgress, error) {
	if err := ctx.Err(); err != nil {
		return core.UserProgress{}, err
	}
	v, ok := s.blobs.Load(s.key)
	if !ok {
		return core.UserProgress{}, core.ErrNotFound
	}
	return v.(core.UserProgress).Clone(), nil
}

func (s *Store) SaveProgress(ctx context.Context, p core.UserProgress) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.blobs.Store(s.key, p.Clone())
	s.mu.Lock()
	s.saves++
	s.mu.Unlock()
	return nil
}

// Saves counts successful writes.
func (s *Store) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

var _ interface {
	LoadProgress(context.Context) (core.UserProgress, error)
	SaveProgress(context.Context, core.UserProgress) error
} = (*Store)(nil)
