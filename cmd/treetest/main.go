package main

import (
	"fmt"
	"log"

	"github.com/hack-pad/hackpadfs/mem"

	"github.com/kittclouds/citetree/internal/store"
	"github.com/kittclouds/citetree/pkg/search"
	"github.com/kittclouds/citetree/pkg/tree"
)

func main() {
	fmt.Println("Testing MemStore...")
	s := store.NewMemStore()
	exercise(s)
	s.Close()

	fmt.Println("\nTesting SQLiteStore...")
	sq, err := store.NewSQLiteStore()
	if err != nil {
		log.Fatalf("NewSQLiteStore failed: %v", err)
	}
	exercise(sq)
	sq.Close()

	fmt.Println("\nTesting FileStore...")
	fs, err := mem.NewFS()
	if err != nil {
		log.Fatalf("mem.NewFS failed: %v", err)
	}
	fst := store.NewFileStore(fs, "tree.json")
	exercise(fst)
	fst.Close()

	fmt.Println("\n✅ All stores passed!")
}

func exercise(s store.TreeStore) {
	dirty := store.NewDirtyTracker()
	engine := tree.NewEngine(s, dirty)

	rootID, err := engine.CaptureNode("graph theory overview", "https://example.com/graphs", nil)
	if err != nil {
		log.Fatalf("CaptureNode failed: %v", err)
	}
	childID, err := engine.CaptureNode("planar graphs", "", &rootID)
	if err != nil {
		log.Fatalf("CaptureNode (child) failed: %v", err)
	}
	fmt.Println("  ✓ CaptureNode works")

	if err := engine.MoveNodeToRoot(childID); err != nil {
		log.Fatalf("MoveNodeToRoot failed: %v", err)
	}
	if err := engine.MoveNode(childID, rootID); err != nil {
		log.Fatalf("MoveNode failed: %v", err)
	}
	if err := engine.MoveNode(rootID, childID); err == nil {
		log.Fatal("MoveNode accepted a cycle")
	}
	fmt.Println("  ✓ MoveNode + cycle guard work")

	if err := engine.DeleteNode(childID); err != nil {
		log.Fatalf("DeleteNode failed: %v", err)
	}
	fmt.Println("  ✓ DeleteNode works")

	res, err := engine.RepairIntegrity()
	if err != nil {
		log.Fatalf("RepairIntegrity failed: %v", err)
	}
	if res.Repaired {
		log.Fatalf("engine output needed repair: %+v", res.Repairs)
	}
	fmt.Println("  ✓ RepairIntegrity clean")

	snapshot, err := engine.Snapshot()
	if err != nil {
		log.Fatalf("Snapshot failed: %v", err)
	}
	searcher := search.NewSearcher()
	results := searcher.Search("graph", snapshot.VisibleNodes(), search.Options{IncludeAnnotations: true})
	if len(results) != 1 {
		log.Fatalf("expected 1 search result, got %d", len(results))
	}
	fmt.Println("  ✓ Search works (" + searcher.Counter() + ")")

	if !dirty.Dirty() {
		log.Fatal("content changes did not mark data dirty")
	}
	fmt.Println("  ✓ Dirty tracking works")
}
