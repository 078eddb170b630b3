package tree

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Sentinel failures. Operations abort before any mutation when one of
// these applies, so a failed call leaves both memory and storage as
// they were.
var (
	ErrNodeNotFound       = errors.New("tree: node not found")
	ErrNodeDeleted        = errors.New("tree: node is deleted")
	ErrWouldCycle         = errors.New("tree: move would create a cycle")
	ErrNoParent           = errors.New("tree: node has no parent")
	ErrAnnotationNotFound = errors.New("tree: annotation not found")
)

// SaveOptions travels with every write. UIOnly marks cursor-only
// changes so the sync collaborator skips dirty-tracking for them.
type SaveOptions struct {
	UIOnly bool
}

// Store is the persistence surface the engine needs. LoadTree returns
// an empty tree when storage holds nothing; SaveTree rewrites the whole
// document.
type Store interface {
	LoadTree() (*Tree, error)
	SaveTree(t *Tree, opts SaveOptions) error
}

// SyncNotifier is told about genuine (non-UI-only) content changes so
// the external sync collaborator can mark data dirty.
type SyncNotifier interface {
	MarkDirty()
}

// Engine performs structural edits that preserve the tree invariants,
// persisting the whole tree after each edit. A single mutex serializes
// every read-mutate-write span; the storage layer itself offers no
// optimistic concurrency, so lost updates are prevented here.
type Engine struct {
	mu    sync.Mutex
	store Store
	sync  SyncNotifier
	now   func() int64
}

// NewEngine wires an engine to its store. notifier may be nil.
func NewEngine(store Store, notifier SyncNotifier) *Engine {
	return &Engine{
		store: store,
		sync:  notifier,
		now:   func() int64 { return time.Now().UnixMilli() },
	}
}

func (e *Engine) load() (*Tree, map[int64]*Node, error) {
	t, err := e.store.LoadTree()
	if err != nil {
		return nil, nil, fmt.Errorf("tree: load failed: %w", err)
	}
	if t == nil {
		t = NewTree()
	}
	return t, t.Index(), nil
}

func (e *Engine) persist(t *Tree, opts SaveOptions) error {
	if err := e.store.SaveTree(t, opts); err != nil {
		return fmt.Errorf("tree: save failed: %w", err)
	}
	if !opts.UIOnly && e.sync != nil {
		e.sync.MarkDirty()
	}
	return nil
}

// MoveNode attaches draggedID as a child of targetID. The cycle guard
// walks the ancestors of the target; if the dragged node appears among
// them (or the ids are equal) the move is rejected with ErrWouldCycle
// and nothing is persisted.
func (e *Engine) MoveNode(draggedID, targetID int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, idx, err := e.load()
	if err != nil {
		return err
	}
	dragged := idx[draggedID]
	if dragged == nil {
		return fmt.Errorf("%w: %d", ErrNodeNotFound, draggedID)
	}
	target := idx[targetID]
	if target == nil {
		return fmt.Errorf("%w: %d", ErrNodeNotFound, targetID)
	}
	if isAncestor(idx, draggedID, targetID) {
		return fmt.Errorf("%w: %d -> %d", ErrWouldCycle, draggedID, targetID)
	}

	detach(idx, dragged)
	if !containsID(target.Children, draggedID) {
		target.Children = append(target.Children, draggedID)
	}
	pid := targetID
	dragged.ParentID = &pid

	return e.persist(t, SaveOptions{})
}

// MoveNodeToRoot detaches a node from its parent and makes it a root.
// A root has no ancestors, so no cycle check is needed.
func (e *Engine) MoveNodeToRoot(nodeID int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, idx, err := e.load()
	if err != nil {
		return err
	}
	node := idx[nodeID]
	if node == nil {
		return fmt.Errorf("%w: %d", ErrNodeNotFound, nodeID)
	}

	detach(idx, node)
	node.ParentID = nil

	return e.persist(t, SaveOptions{})
}

// ShiftNodeToParent promotes a node to its grandparent's level. With no
// grandparent the node becomes a root. Fails with ErrNoParent when the
// node is already a root.
func (e *Engine) ShiftNodeToParent(nodeID int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, idx, err := e.load()
	if err != nil {
		return err
	}
	node := idx[nodeID]
	if node == nil {
		return fmt.Errorf("%w: %d", ErrNodeNotFound, nodeID)
	}
	if node.ParentID == nil {
		return fmt.Errorf("%w: %d", ErrNoParent, nodeID)
	}
	parent := idx[*node.ParentID]
	if parent == nil {
		return fmt.Errorf("%w: parent %d", ErrNodeNotFound, *node.ParentID)
	}

	parent.Children = removeID(parent.Children, nodeID)
	if parent.ParentID != nil {
		if grand := idx[*parent.ParentID]; grand != nil {
			if !containsID(grand.Children, nodeID) {
				grand.Children = append(grand.Children, nodeID)
			}
			gid := grand.ID
			node.ParentID = &gid
			return e.persist(t, SaveOptions{})
		}
	}
	node.ParentID = nil

	return e.persist(t, SaveOptions{})
}

// DeleteNode tombstones a node and its entire descendant subtree,
// collected over Children links. Children arrays and parent pointers
// are left untouched so the structure stays auditable; the cursor is
// cleared when it pointed into the swept set.
func (e *Engine) DeleteNode(nodeID int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, idx, err := e.load()
	if err != nil {
		return err
	}
	if idx[nodeID] == nil {
		return fmt.Errorf("%w: %d", ErrNodeNotFound, nodeID)
	}

	stamp := e.now()
	swept := map[int64]bool{}
	for _, id := range t.Descendants(nodeID) {
		swept[id] = true
		n := idx[id]
		n.Deleted = true
		n.DeletedAt = stamp
	}
	if t.CurrentNodeID != nil && swept[*t.CurrentNodeID] {
		t.CurrentNodeID = nil
	}

	return e.persist(t, SaveOptions{})
}

// SetCurrentNode moves the cursor. This is a UI-only change: it is
// persisted but must not trigger the sync collaborator's
// dirty-tracking.
func (e *Engine) SetCurrentNode(nodeID int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, idx, err := e.load()
	if err != nil {
		return err
	}
	node := idx[nodeID]
	if node == nil {
		return fmt.Errorf("%w: %d", ErrNodeNotFound, nodeID)
	}
	if node.Deleted {
		return fmt.Errorf("%w: %d", ErrNodeDeleted, nodeID)
	}

	id := nodeID
	t.CurrentNodeID = &id

	return e.persist(t, SaveOptions{UIOnly: true})
}

// ClearCurrentNode drops the cursor. UI-only, like SetCurrentNode.
func (e *Engine) ClearCurrentNode() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, _, err := e.load()
	if err != nil {
		return err
	}
	t.CurrentNodeID = nil

	return e.persist(t, SaveOptions{UIOnly: true})
}

// CaptureNode creates a node from captured text with the next monotonic
// id and attaches it under parentID (nil for a root). Returns the new id.
func (e *Engine) CaptureNode(text, url string, parentID *int64) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, idx, err := e.load()
	if err != nil {
		return 0, err
	}

	var parent *Node
	if parentID != nil {
		parent = idx[*parentID]
		if parent == nil {
			return 0, fmt.Errorf("%w: %d", ErrNodeNotFound, *parentID)
		}
	}

	var maxID int64
	for id := range idx {
		if id > maxID {
			maxID = id
		}
	}
	node := &Node{
		ID:        maxID + 1,
		Text:      text,
		URL:       url,
		Timestamp: e.now(),
		Children:  []int64{},
	}
	if parent != nil {
		pid := parent.ID
		node.ParentID = &pid
		parent.Children = append(parent.Children, node.ID)
	}
	t.Nodes = append(t.Nodes, node)

	if err := e.persist(t, SaveOptions{}); err != nil {
		return 0, err
	}
	return node.ID, nil
}

// AddAnnotation appends an annotation to a node and returns its id.
// Annotation ids are monotonic within their node.
func (e *Engine) AddAnnotation(nodeID int64, text string) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, idx, err := e.load()
	if err != nil {
		return 0, err
	}
	node := idx[nodeID]
	if node == nil {
		return 0, fmt.Errorf("%w: %d", ErrNodeNotFound, nodeID)
	}

	var maxID int64
	for _, a := range node.Annotations {
		if a.ID > maxID {
			maxID = a.ID
		}
	}
	ann := Annotation{ID: maxID + 1, Text: text, Timestamp: e.now()}
	node.Annotations = append(node.Annotations, ann)

	if err := e.persist(t, SaveOptions{}); err != nil {
		return 0, err
	}
	return ann.ID, nil
}

// UpdateAnnotation replaces the text of an existing annotation.
func (e *Engine) UpdateAnnotation(nodeID, annotationID int64, text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, idx, err := e.load()
	if err != nil {
		return err
	}
	node := idx[nodeID]
	if node == nil {
		return fmt.Errorf("%w: %d", ErrNodeNotFound, nodeID)
	}
	for i := range node.Annotations {
		if node.Annotations[i].ID == annotationID {
			node.Annotations[i].Text = text
			node.Annotations[i].Timestamp = e.now()
			return e.persist(t, SaveOptions{})
		}
	}
	return fmt.Errorf("%w: %d on node %d", ErrAnnotationNotFound, annotationID, nodeID)
}

// RemoveAnnotation deletes an annotation outright. Annotations are not
// tombstoned; only nodes are.
func (e *Engine) RemoveAnnotation(nodeID, annotationID int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, idx, err := e.load()
	if err != nil {
		return err
	}
	node := idx[nodeID]
	if node == nil {
		return fmt.Errorf("%w: %d", ErrNodeNotFound, nodeID)
	}
	for i := range node.Annotations {
		if node.Annotations[i].ID == annotationID {
			node.Annotations = append(node.Annotations[:i], node.Annotations[i+1:]...)
			return e.persist(t, SaveOptions{})
		}
	}
	return fmt.Errorf("%w: %d on node %d", ErrAnnotationNotFound, annotationID, nodeID)
}

// RepairIntegrity loads the current snapshot, runs the validation pass,
// and writes the healed tree back when anything changed so corruption
// does not reappear on the next load. The sync collaborator is notified
// only for genuine repairs. Run this after any load that may originate
// from an external overwrite.
func (e *Engine) RepairIntegrity() (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, _, err := e.load()
	if err != nil {
		return Result{}, err
	}
	res := ValidateAndRepair(t)
	if res.Repaired {
		if err := e.persist(res.Tree, SaveOptions{}); err != nil {
			return Result{}, err
		}
	}
	return res, nil
}

// Snapshot returns the stored tree after a validation pass, without
// writing anything back. Consumers that only render should use this.
func (e *Engine) Snapshot() (*Tree, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, _, err := e.load()
	if err != nil {
		return nil, err
	}
	return ValidateAndRepair(t).Tree, nil
}

// detach removes n from its parent's children. The parent pointer is
// left to the caller, which always rewrites it.
func detach(idx map[int64]*Node, n *Node) {
	if n.ParentID == nil {
		return
	}
	if p := idx[*n.ParentID]; p != nil {
		p.Children = removeID(p.Children, n.ID)
	}
}
