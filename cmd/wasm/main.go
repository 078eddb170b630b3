//go:build js && wasm

package main

import (
	"context"
	"encoding/json"
	"syscall/js"

	"github.com/hack-pad/hackpadfs/indexeddb"

	"github.com/kittclouds/citetree/internal/store"
	"github.com/kittclouds/citetree/pkg/related"
	"github.com/kittclouds/citetree/pkg/search"
	"github.com/kittclouds/citetree/pkg/tree"
)

// Version info
const Version = "0.1.0"

// Global state
var engine *tree.Engine
var treeStore store.TreeStore
var dirty *store.DirtyTracker
var searcher = search.NewSearcher()
var relatedIndex *related.Index

func main() {
	println("[CiteTree] WASM Ready v" + Version)

	// Register exports
	js.Global().Set("CiteTree", js.ValueOf(map[string]interface{}{
		"version":    js.FuncOf(getVersion),
		"initialize": js.FuncOf(initialize),
		// Mutation API (boolean results)
		"captureNode":       js.FuncOf(captureNode),
		"moveNode":          js.FuncOf(moveNode),
		"moveNodeToRoot":    js.FuncOf(moveNodeToRoot),
		"shiftNodeToParent": js.FuncOf(shiftNodeToParent),
		"deleteNode":        js.FuncOf(deleteNode),
		"setCurrentNode":    js.FuncOf(setCurrentNode),
		"addAnnotation":     js.FuncOf(addAnnotation),
		// Snapshot / repair API
		"getTree":             js.FuncOf(getTree),
		"repairTreeIntegrity": js.FuncOf(repairTreeIntegrity),
		"isDirty":             js.FuncOf(isDirty),
		"clearDirty":          js.FuncOf(clearDirty),
		// Search API
		"performSearch":      js.FuncOf(performSearch),
		"navigateToNext":     js.FuncOf(navigateToNext),
		"navigateToPrevious": js.FuncOf(navigateToPrevious),
		"getSearchCounter":   js.FuncOf(getSearchCounter),
		"clearSearch":        js.FuncOf(clearSearch),
		// Related citations API
		"indexRelated": js.FuncOf(indexRelated),
		"moreLikeThis": js.FuncOf(moreLikeThis),
		"saveRelated":  js.FuncOf(saveRelated),
	}))

	select {}
}

// initialize opens the IndexedDB-backed stores and wires the engine.
// Args: [] (uses the default "citetree" DB)
func initialize(this js.Value, args []js.Value) interface{} {
	fs, err := indexeddb.NewFS(context.Background(), "citetree", indexeddb.Options{})
	if err != nil {
		return errorResult("failed to create idb fs: " + err.Error())
	}

	treeStore = store.NewFileStore(fs, "tree.json")
	dirty = store.NewDirtyTracker()
	engine = tree.NewEngine(treeStore, dirty)

	relatedIndex, err = related.NewIndex(fs, "related.bin")
	if err != nil {
		return errorResult("failed to load related index: " + err.Error())
	}

	// Heal whatever the last session (or a cloud overwrite) left behind.
	res, err := engine.RepairIntegrity()
	if err != nil {
		return errorResult("repair on load: " + err.Error())
	}
	if res.Repaired {
		println("[CiteTree] repaired tree on load:", len(res.Repairs), "fixes")
	}

	return successResult("initialized")
}

// boolOp maps the engine's error results onto the boolean surface the
// host UI expects. Failures are logged, never thrown.
func boolOp(name string, err error) interface{} {
	if err != nil {
		println("[CiteTree] "+name+" failed:", err.Error())
		return false
	}
	return true
}

// captureNode: [text string, url string, parentId int (optional)]
// Returns the new node id, or -1 on failure.
func captureNode(this js.Value, args []js.Value) interface{} {
	if engine == nil || len(args) < 2 {
		return -1
	}
	var parentID *int64
	if len(args) > 2 && args[2].Type() == js.TypeNumber {
		pid := int64(args[2].Int())
		parentID = &pid
	}
	id, err := engine.CaptureNode(args[0].String(), args[1].String(), parentID)
	if err != nil {
		println("[CiteTree] captureNode failed:", err.Error())
		return -1
	}
	return int(id)
}

// moveNode: [draggedId int, targetId int] -> bool
func moveNode(this js.Value, args []js.Value) interface{} {
	if engine == nil || len(args) < 2 {
		return false
	}
	return boolOp("moveNode", engine.MoveNode(int64(args[0].Int()), int64(args[1].Int())))
}

// moveNodeToRoot: [nodeId int] -> bool
func moveNodeToRoot(this js.Value, args []js.Value) interface{} {
	if engine == nil || len(args) < 1 {
		return false
	}
	return boolOp("moveNodeToRoot", engine.MoveNodeToRoot(int64(args[0].Int())))
}

// shiftNodeToParent: [nodeId int] -> bool
func shiftNodeToParent(this js.Value, args []js.Value) interface{} {
	if engine == nil || len(args) < 1 {
		return false
	}
	return boolOp("shiftNodeToParent", engine.ShiftNodeToParent(int64(args[0].Int())))
}

// deleteNode: [nodeId int] -> bool
func deleteNode(this js.Value, args []js.Value) interface{} {
	if engine == nil || len(args) < 1 {
		return false
	}
	return boolOp("deleteNode", engine.DeleteNode(int64(args[0].Int())))
}

// setCurrentNode: [nodeId int] -> bool (UI-only change, skips sync)
func setCurrentNode(this js.Value, args []js.Value) interface{} {
	if engine == nil || len(args) < 1 {
		return false
	}
	return boolOp("setCurrentNode", engine.SetCurrentNode(int64(args[0].Int())))
}

// addAnnotation: [nodeId int, text string]
// Returns the new annotation id, or -1 on failure.
func addAnnotation(this js.Value, args []js.Value) interface{} {
	if engine == nil || len(args) < 2 {
		return -1
	}
	id, err := engine.AddAnnotation(int64(args[0].Int()), args[1].String())
	if err != nil {
		println("[CiteTree] addAnnotation failed:", err.Error())
		return -1
	}
	return int(id)
}

// getTree returns the stored tree as JSON.
func getTree(this js.Value, args []js.Value) interface{} {
	if engine == nil {
		return errorResult("not initialized")
	}
	snapshot, err := engine.Snapshot()
	if err != nil {
		return errorResult("load failed: " + err.Error())
	}
	bytes, err := json.Marshal(snapshot)
	if err != nil {
		return errorResult(err.Error())
	}
	return string(bytes)
}

// repairTreeIntegrity runs the validation pass, persisting repairs.
// Returns: {"repaired": bool, "repairs": [...]} as JSON.
func repairTreeIntegrity(this js.Value, args []js.Value) interface{} {
	if engine == nil {
		return errorResult("not initialized")
	}
	res, err := engine.RepairIntegrity()
	if err != nil {
		return errorResult("repair failed: " + err.Error())
	}
	bytes, _ := json.Marshal(map[string]interface{}{
		"repaired": res.Repaired,
		"repairs":  res.Repairs,
	})
	return string(bytes)
}

// isDirty reports whether content changes are waiting on the sync collaborator.
func isDirty(this js.Value, args []js.Value) interface{} {
	return dirty != nil && dirty.Dirty()
}

// clearDirty resets the flag once the sync collaborator has uploaded.
func clearDirty(this js.Value, args []js.Value) interface{} {
	if dirty != nil {
		dirty.Reset()
	}
	return true
}

// performSearch: [query string, includeAnnotations bool (optional, default true)]
// Returns: JSON array of ranked result entries.
func performSearch(this js.Value, args []js.Value) interface{} {
	if engine == nil || len(args) < 1 {
		return "[]"
	}
	snapshot, err := engine.Snapshot()
	if err != nil {
		return errorResult("load failed: " + err.Error())
	}
	opts := search.Options{IncludeAnnotations: true}
	if len(args) > 1 {
		opts.IncludeAnnotations = args[1].Truthy()
	}
	results := searcher.Search(args[0].String(), snapshot.VisibleNodes(), opts)
	bytes, _ := json.Marshal(results)
	return string(bytes)
}

// navigateToNext advances the search cursor, wrapping past the end.
// Returns the new current entry as JSON, or null without results.
func navigateToNext(this js.Value, args []js.Value) interface{} {
	return entryJSON(searcher.Next())
}

// navigateToPrevious steps the cursor back, wrapping before the start.
func navigateToPrevious(this js.Value, args []js.Value) interface{} {
	return entryJSON(searcher.Previous())
}

// getSearchCounter returns the "i of n" position string ("0 of 0" when empty).
func getSearchCounter(this js.Value, args []js.Value) interface{} {
	return searcher.Counter()
}

// clearSearch drops the results and resets the cursor.
func clearSearch(this js.Value, args []js.Value) interface{} {
	searcher.Clear()
	return true
}

func entryJSON(e *search.Entry) interface{} {
	if e == nil {
		return js.Null()
	}
	bytes, _ := json.Marshal(e)
	return string(bytes)
}

// indexRelated: [nodeId int, text string] -> bool
func indexRelated(this js.Value, args []js.Value) interface{} {
	if relatedIndex == nil || len(args) < 2 {
		return false
	}
	return boolOp("indexRelated", relatedIndex.Add(uint32(args[0].Int()), args[1].String()))
}

// moreLikeThis: [text string, k int]
// Returns: JSON array of node ids.
func moreLikeThis(this js.Value, args []js.Value) interface{} {
	if relatedIndex == nil || len(args) < 2 {
		return "[]"
	}
	ids, err := relatedIndex.MoreLikeThis(args[0].String(), args[1].Int())
	if err != nil {
		return errorResult("search failed: " + err.Error())
	}
	bytes, _ := json.Marshal(ids)
	return string(bytes)
}

// saveRelated persists the similarity index to IndexedDB.
func saveRelated(this js.Value, args []js.Value) interface{} {
	if relatedIndex == nil {
		return errorResult("related index not initialized")
	}
	if err := relatedIndex.Save(); err != nil {
		return errorResult("save failed: " + err.Error())
	}
	return successResult("saved")
}

// getVersion returns the module version
func getVersion(this js.Value, args []js.Value) interface{} {
	return Version
}

// Helper: Create error result
func errorResult(msg string) interface{} {
	result := map[string]interface{}{
		"error": msg,
	}
	jsonBytes, _ := json.Marshal(result)
	return string(jsonBytes)
}

// Helper: Create success result
func successResult(msg string) interface{} {
	result := map[string]interface{}{
		"success": msg,
	}
	jsonBytes, _ := json.Marshal(result)
	return string(jsonBytes)
}
