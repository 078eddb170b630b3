// SQLite-backed persistence for the citation tree.
// Uses ncruces/go-sqlite3/driver which provides a database/sql interface.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/asg017/sqlite-vec-go-bindings/ncruces"
	_ "github.com/ncruces/go-sqlite3/driver"

	"github.com/kittclouds/citetree/pkg/tree"
)

// DefaultTreeKey is the document key the engine reads and writes. One
// database can hold several trees under different keys.
const DefaultTreeKey = "citation-tree"

// SQLiteStore persists the tree as a single JSON document row. The
// serialization shape is exactly the in-memory shape; there is no
// separate encoding step.
type SQLiteStore struct {
	mu  sync.RWMutex
	db  *sql.DB
	key string
}

const schema = `
-- Whole-document tree storage. One row per tree; the engine rewrites
-- the full document on every mutation.
CREATE TABLE IF NOT EXISTS trees (
    key TEXT PRIMARY KEY,
    doc TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);
`

// NewSQLiteStore creates a new in-memory SQLite store.
func NewSQLiteStore() (*SQLiteStore, error) {
	return NewSQLiteStoreWithDSN(":memory:")
}

// NewSQLiteStoreWithDSN creates a store with a specific data source name.
// Use ":memory:" for in-memory or a file path for persistent storage.
func NewSQLiteStoreWithDSN(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db, key: DefaultTreeKey}, nil
}

// WithKey returns a view of the same database under a different
// document key.
func (s *SQLiteStore) WithKey(key string) *SQLiteStore {
	return &SQLiteStore{db: s.db, key: key}
}

// LoadTree returns the stored document, or an empty tree when the row
// is absent.
func (s *SQLiteStore) LoadTree() (*tree.Tree, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var doc string
	err := s.db.QueryRow(`SELECT doc FROM trees WHERE key = ?`, s.key).Scan(&doc)
	if err == sql.ErrNoRows {
		return tree.NewTree(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load tree: %w", err)
	}

	var t tree.Tree
	if err := json.Unmarshal([]byte(doc), &t); err != nil {
		return nil, fmt.Errorf("failed to decode tree: %w", err)
	}
	if t.Nodes == nil {
		t.Nodes = []*tree.Node{}
	}
	return &t, nil
}

func (s *SQLiteStore) SaveTree(t *tree.Tree, opts SaveOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to encode tree: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO trees (key, doc, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at
	`, s.key, string(doc), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save tree: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Compile-time interface checks
var (
	_ TreeStore  = (*SQLiteStore)(nil)
	_ tree.Store = (*SQLiteStore)(nil)
)
