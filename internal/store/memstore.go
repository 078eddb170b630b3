// Package store provides whole-document persistence for the citation
// tree. This file contains the interface and in-memory implementation
// for testing.
package store

import (
	"sync"

	"github.com/kittclouds/citetree/pkg/tree"
)

// SaveOptions is re-exported so store consumers see one surface.
type SaveOptions = tree.SaveOptions

// TreeStore reads and writes the whole tree structure atomically. No
// business logic lives here. This allows swapping between MemStore
// (testing), SQLiteStore and FileStore (production).
type TreeStore interface {
	// LoadTree returns the stored tree, or an empty tree when storage
	// holds nothing.
	LoadTree() (*tree.Tree, error)

	// SaveTree rewrites the whole document. opts.UIOnly flags writes
	// the sync collaborator must not count as content changes.
	SaveTree(t *tree.Tree, opts SaveOptions) error

	// Lifecycle
	Close() error
}

// MemStore is an in-memory implementation of TreeStore for testing.
type MemStore struct {
	mu   sync.RWMutex
	tree *tree.Tree
}

// NewMemStore creates a new in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{}
}

// LoadTree returns a deep copy so callers cannot mutate stored state.
func (s *MemStore) LoadTree() (*tree.Tree, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.tree == nil {
		return tree.NewTree(), nil
	}
	return s.tree.Clone(), nil
}

func (s *MemStore) SaveTree(t *tree.Tree, opts SaveOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tree = t.Clone()
	return nil
}

// Close is a no-op for MemStore.
func (s *MemStore) Close() error {
	return nil
}

// Compile-time interface checks
var (
	_ TreeStore  = (*MemStore)(nil)
	_ tree.Store = (*MemStore)(nil)
)
