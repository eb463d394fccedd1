// Package memstore is an in-memory writer backend that keeps committed
// contents in a content.Collection.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/cognicore/canalyzer/pkg/canalyzer/content"
	"github.com/cognicore/canalyzer/pkg/canalyzer/internalerr"
)

// Store is an in-memory implementation of memory.Backend.
type Store struct {
	name string

	mu        sync.RWMutex
	open      bool
	finalized bool
	items     *content.Collection
	index     map[string]int
}

// New creates an empty in-memory store.
func New(name string) *Store {
	if name == "" {
		name = "memory"
	}
	return &Store{name: name, items: content.NewCollection(), index: make(map[string]int)}
}

// Name implements memory.Backend.
func (s *Store) Name() string { return s.name }

// Open implements memory.Backend. Each pass starts from an empty collection.
func (s *Store) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		return fmt.Errorf("%w: %s already open", internalerr.ErrStoreUnavailable, s.name)
	}
	s.open = true
	s.finalized = false
	s.items = content.NewCollection()
	s.index = make(map[string]int)
	return nil
}

// Commit implements memory.Backend.
func (s *Store) Commit(ctx context.Context, c *content.Content) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return fmt.Errorf("%w: %s is closed", internalerr.ErrStoreUnavailable, s.name)
	}
	if _, dup := s.index[c.ID]; dup {
		return fmt.Errorf("content %q: %w", c.ID, internalerr.ErrDuplicate)
	}
	s.index[c.ID] = s.items.Len()
	s.items.Append(c)
	return nil
}

// Finalize implements memory.Backend.
func (s *Store) Finalize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalized = true
	return nil
}

// Close implements memory.Backend.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	return nil
}

// Finalized reports whether the last pass was finalized.
func (s *Store) Finalized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.finalized
}

// Collection returns the committed contents in commit order.
func (s *Store) Collection() *content.Collection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.items
}

// Get returns a committed content by id.
func (s *Store) Get(ctx context.Context, id string) (*content.Content, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return nil, fmt.Errorf("content %q: %w", id, internalerr.ErrNotFound)
	}
	return s.items.At(i), nil
}
