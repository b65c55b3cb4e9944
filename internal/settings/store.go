package settings

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrMissingSettings means a file reached the orchestrator without a bundle.
	ErrMissingSettings = errors.New("missing settings")
	// ErrInvalidSettings is returned by Bundle.Validate.
	ErrInvalidSettings = errors.New("invalid settings")
)

// Store maps input paths to their bundle. It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	bundles map[string]Bundle
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{bundles: make(map[string]Bundle)}
}

// Get returns the bundle for file or ErrMissingSettings.
func (s *Store) Get(file string) (Bundle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bundles[file]
	if !ok {
		return Bundle{}, fmt.Errorf("%w for %s", ErrMissingSettings, file)
	}
	return b, nil
}

// Has reports whether file has a bundle.
func (s *Store) Has(file string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.bundles[file]
	return ok
}

// Put replaces the bundle for file.
func (s *Store) Put(file string, b Bundle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bundles[file] = b
}

// Remove drops the bundle for file.
func (s *Store) Remove(file string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bundles, file)
}

// Clear drops every bundle.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.bundles)
}

// Len returns the number of stored bundles.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bundles)
}
