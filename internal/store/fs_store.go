package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"github.com/hack-pad/hackpadfs"

	"github.com/kittclouds/citetree/pkg/tree"
)

// FileStore persists the tree as one JSON document on a hackpadfs
// filesystem: a mem FS in tests, an OS dir on desktop, IndexedDB under
// wasm.
type FileStore struct {
	mu   sync.RWMutex
	fs   hackpadfs.FS
	path string
}

// NewFileStore creates a store writing to path on the given FS.
func NewFileStore(fsys hackpadfs.FS, path string) *FileStore {
	return &FileStore{fs: fsys, path: path}
}

// LoadTree reads the document, or returns an empty tree when the file
// does not exist yet.
func (s *FileStore) LoadTree() (*tree.Tree, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	content, err := hackpadfs.ReadFile(s.fs, s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return tree.NewTree(), nil
		}
		return nil, fmt.Errorf("failed to read tree file: %w", err)
	}

	var t tree.Tree
	if err := json.Unmarshal(content, &t); err != nil {
		return nil, fmt.Errorf("failed to decode tree: %w", err)
	}
	if t.Nodes == nil {
		t.Nodes = []*tree.Node{}
	}
	return &t, nil
}

func (s *FileStore) SaveTree(t *tree.Tree, opts SaveOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to encode tree: %w", err)
	}
	if err := hackpadfs.WriteFullFile(s.fs, s.path, doc, 0644); err != nil {
		return fmt.Errorf("failed to write tree file: %w", err)
	}
	return nil
}

// Close is a no-op; the FS lifecycle belongs to the caller.
func (s *FileStore) Close() error {
	return nil
}

// Compile-time interface checks
var (
	_ TreeStore  = (*FileStore)(nil)
	_ tree.Store = (*FileStore)(nil)
)
