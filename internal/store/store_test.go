package store

import (
	"testing"

	"github.com/hack-pad/hackpadfs/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/citetree/pkg/tree"
)

// =============================================================================
// Store Factory for Testing All Implementations
// =============================================================================

// storeFactory creates a store for testing.
// We test MemStore, SQLiteStore and FileStore with the same test suite.
type storeFactory func() (TreeStore, error)

func memStoreFactory() (TreeStore, error) {
	return NewMemStore(), nil
}

func sqliteStoreFactory() (TreeStore, error) {
	return NewSQLiteStore()
}

func fileStoreFactory() (TreeStore, error) {
	fs, err := mem.NewFS()
	if err != nil {
		return nil, err
	}
	return NewFileStore(fs, "tree.json"), nil
}

// runTestsForAllStores runs a test function against every store implementation.
func runTestsForAllStores(t *testing.T, testName string, testFn func(t *testing.T, store TreeStore)) {
	factories := map[string]storeFactory{
		"MemStore":    memStoreFactory,
		"SQLiteStore": sqliteStoreFactory,
		"FileStore":   fileStoreFactory,
	}

	for name, factory := range factories {
		t.Run(name+"/"+testName, func(t *testing.T) {
			store, err := factory()
			require.NoError(t, err, "Failed to create store")
			defer store.Close()
			testFn(t, store)
		})
	}
}

func ptr(id int64) *int64 { return &id }

func sampleTree() *tree.Tree {
	return &tree.Tree{
		Nodes: []*tree.Node{
			{
				ID:        1,
				Text:      "the root citation",
				URL:       "https://example.com/a",
				Timestamp: 1700000000000,
				Children:  []int64{2},
				Annotations: []tree.Annotation{
					{ID: 1, Text: "margin note", Timestamp: 1700000000001},
				},
			},
			{
				ID:        2,
				Text:      "a child citation",
				Timestamp: 1700000000002,
				ParentID:  ptr(1),
				Children:  []int64{},
			},
		},
		CurrentNodeID: ptr(2),
	}
}

// =============================================================================
// TreeStore Suite
// =============================================================================

func TestLoadDefaultsToEmptyTree(t *testing.T) {
	runTestsForAllStores(t, "LoadDefault", func(t *testing.T, store TreeStore) {
		got, err := store.LoadTree()
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Empty(t, got.Nodes)
		assert.NotNil(t, got.Nodes, "nodes must be an empty sequence, not absent")
		assert.Nil(t, got.CurrentNodeID)
	})
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	runTestsForAllStores(t, "RoundTrip", func(t *testing.T, store TreeStore) {
		want := sampleTree()
		require.NoError(t, store.SaveTree(want, SaveOptions{}))

		got, err := store.LoadTree()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})
}

func TestSaveOverwritesWholeDocument(t *testing.T) {
	runTestsForAllStores(t, "Overwrite", func(t *testing.T, store TreeStore) {
		require.NoError(t, store.SaveTree(sampleTree(), SaveOptions{}))

		// An external sync source replaces the tree wholesale.
		replacement := &tree.Tree{
			Nodes: []*tree.Node{
				{ID: 7, Text: "from the cloud", Children: []int64{}},
			},
		}
		require.NoError(t, store.SaveTree(replacement, SaveOptions{}))

		got, err := store.LoadTree()
		require.NoError(t, err)
		require.Len(t, got.Nodes, 1)
		assert.Equal(t, int64(7), got.Nodes[0].ID)
		assert.Nil(t, got.CurrentNodeID)
	})
}

func TestUIOnlyFlagDoesNotAffectStorage(t *testing.T) {
	runTestsForAllStores(t, "UIOnly", func(t *testing.T, store TreeStore) {
		want := sampleTree()
		require.NoError(t, store.SaveTree(want, SaveOptions{UIOnly: true}))

		got, err := store.LoadTree()
		require.NoError(t, err)
		assert.Equal(t, want, got, "UIOnly is for the sync collaborator, not the store")
	})
}

func TestLoadedTreeIsACopy(t *testing.T) {
	runTestsForAllStores(t, "Copy", func(t *testing.T, store TreeStore) {
		require.NoError(t, store.SaveTree(sampleTree(), SaveOptions{}))

		first, err := store.LoadTree()
		require.NoError(t, err)
		first.Nodes[0].Text = "mutated by caller"
		first.Nodes[0].Children[0] = 42

		second, err := store.LoadTree()
		require.NoError(t, err)
		assert.Equal(t, "the root citation", second.Nodes[0].Text)
		assert.Equal(t, int64(2), second.Nodes[0].Children[0])
	})
}

func TestTombstonesSurviveRoundTrip(t *testing.T) {
	runTestsForAllStores(t, "Tombstones", func(t *testing.T, store TreeStore) {
		doc := sampleTree()
		doc.Nodes[1].Deleted = true
		doc.Nodes[1].DeletedAt = 1700000000099
		doc.CurrentNodeID = nil
		require.NoError(t, store.SaveTree(doc, SaveOptions{}))

		got, err := store.LoadTree()
		require.NoError(t, err)
		assert.True(t, got.Nodes[1].Deleted)
		assert.Equal(t, int64(1700000000099), got.Nodes[1].DeletedAt)
		assert.Len(t, got.Nodes, 2, "tombstones are stored, not dropped")
	})
}

// =============================================================================
// Implementation-specific behavior
// =============================================================================

func TestSQLiteStoreKeyIsolation(t *testing.T) {
	s, err := NewSQLiteStore()
	require.NoError(t, err)
	defer s.Close()

	other := s.WithKey("scratch-tree")

	require.NoError(t, s.SaveTree(sampleTree(), SaveOptions{}))

	got, err := other.LoadTree()
	require.NoError(t, err)
	assert.Empty(t, got.Nodes, "documents under different keys do not leak")

	require.NoError(t, other.SaveTree(&tree.Tree{Nodes: []*tree.Node{{ID: 9, Children: []int64{}}}}, SaveOptions{}))
	main, err := s.LoadTree()
	require.NoError(t, err)
	assert.Len(t, main.Nodes, 2)
}

func TestFileStorePersistsAcrossInstances(t *testing.T) {
	fs, err := mem.NewFS()
	require.NoError(t, err)

	first := NewFileStore(fs, "tree.json")
	require.NoError(t, first.SaveTree(sampleTree(), SaveOptions{}))
	require.NoError(t, first.Close())

	second := NewFileStore(fs, "tree.json")
	got, err := second.LoadTree()
	require.NoError(t, err)
	assert.Len(t, got.Nodes, 2)
}

func TestDirtyTracker(t *testing.T) {
	d := NewDirtyTracker()
	assert.False(t, d.Dirty())
	assert.Equal(t, 0, d.Count())

	d.MarkDirty()
	d.MarkDirty()
	assert.True(t, d.Dirty())
	assert.Equal(t, 2, d.Count())

	d.Reset()
	assert.False(t, d.Dirty())
}

// =============================================================================
// Interface Compliance
// =============================================================================

func TestTreeStoreInterface(t *testing.T) {
	var _ TreeStore = (*MemStore)(nil)
	var _ TreeStore = (*SQLiteStore)(nil)
	var _ TreeStore = (*FileStore)(nil)
	var _ tree.SyncNotifier = (*DirtyTracker)(nil)
}
