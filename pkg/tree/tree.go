// Package tree implements the citation tree: a flat, id-indexed node set
// with parent/children links, tombstone deletion, and the structural
// operations and repair pass that keep the links consistent.
//
// ParentID is the single source of truth for hierarchy. Children is a
// derived index that the mutation engine keeps in sync and the repair
// pass rebuilds from ParentID back-references.
package tree

import "encoding/json"

// Annotation is a user note attached to a citation node.
// Annotations are independently mutable and take no part in
// tree-shape invariants.
type Annotation struct {
	ID        int64  `json:"id"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// Node is one captured citation. IDs are caller-assigned monotonic
// integers and are never reused after deletion.
type Node struct {
	ID          int64        `json:"id"`
	Text        string       `json:"text"`
	URL         string       `json:"url,omitempty"`
	Timestamp   int64        `json:"timestamp"`
	ParentID    *int64       `json:"parentId"`
	Children    []int64      `json:"children"`
	Deleted     bool         `json:"deleted,omitempty"`
	DeletedAt   int64        `json:"deletedAt,omitempty"`
	Annotations []Annotation `json:"annotations,omitempty"`
}

// Tree is the aggregate. It is persisted verbatim as a single JSON
// document, so this shape is also the serialization shape.
type Tree struct {
	Nodes         []*Node `json:"nodes"`
	CurrentNodeID *int64  `json:"currentNodeId"`
}

// NewTree returns an empty tree, the default when storage has nothing.
func NewTree() *Tree {
	return &Tree{Nodes: []*Node{}}
}

// Index builds the id -> node map used by all traversals.
func (t *Tree) Index() map[int64]*Node {
	idx := make(map[int64]*Node, len(t.Nodes))
	for _, n := range t.Nodes {
		if n != nil {
			idx[n.ID] = n
		}
	}
	return idx
}

// Get returns the node with the given id, or nil.
func (t *Tree) Get(id int64) *Node {
	for _, n := range t.Nodes {
		if n != nil && n.ID == id {
			return n
		}
	}
	return nil
}

// Roots returns non-deleted nodes with no parent, in stored order.
func (t *Tree) Roots() []*Node {
	var roots []*Node
	for _, n := range t.Nodes {
		if n != nil && !n.Deleted && n.ParentID == nil {
			roots = append(roots, n)
		}
	}
	return roots
}

// VisibleNodes returns all non-tombstoned nodes in stored order.
// Tombstones stay in Nodes for audit and repair but are excluded from
// every visible view.
func (t *Tree) VisibleNodes() []*Node {
	visible := make([]*Node, 0, len(t.Nodes))
	for _, n := range t.Nodes {
		if n != nil && !n.Deleted {
			visible = append(visible, n)
		}
	}
	return visible
}

// Descendants collects id and every transitive descendant by following
// Children links. The seen set guards against corrupt self-referential
// input; traversal order is breadth-first.
func (t *Tree) Descendants(id int64) []int64 {
	idx := t.Index()
	if idx[id] == nil {
		return nil
	}
	seen := map[int64]bool{id: true}
	collected := []int64{id}
	queue := []int64{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		n := idx[cur]
		if n == nil {
			continue
		}
		for _, child := range n.Children {
			if seen[child] || idx[child] == nil {
				continue
			}
			seen[child] = true
			collected = append(collected, child)
			queue = append(queue, child)
		}
	}
	return collected
}

// isAncestor reports whether candidate is id itself or one of its
// ancestors via ParentID links. Equal ids count as an immediate cycle
// so a self-move is rejected by the same guard.
func isAncestor(idx map[int64]*Node, candidate, id int64) bool {
	if candidate == id {
		return true
	}
	seen := map[int64]bool{id: true}
	cur := idx[id]
	for cur != nil && cur.ParentID != nil {
		pid := *cur.ParentID
		if pid == candidate {
			return true
		}
		if seen[pid] {
			break
		}
		seen[pid] = true
		cur = idx[pid]
	}
	return false
}

// Clone deep-copies the tree through a JSON round trip, the same shape
// the store persists.
func (t *Tree) Clone() *Tree {
	if t == nil {
		return nil
	}
	data, err := json.Marshal(t)
	if err != nil {
		return NewTree()
	}
	var out Tree
	if err := json.Unmarshal(data, &out); err != nil {
		return NewTree()
	}
	if out.Nodes == nil {
		out.Nodes = []*Node{}
	}
	return &out
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func removeID(ids []int64, id int64) []int64 {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
