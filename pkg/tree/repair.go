package tree

import "sort"

// RepairType tags one entry in the repair ledger.
type RepairType string

const (
	RepairPromotedToRoot            RepairType = "promoted_to_root"
	RepairRemovedInvalidChildren    RepairType = "removed_invalid_children"
	RepairAddedMissingChildren      RepairType = "added_missing_children"
	RepairClearedInvalidCurrentNode RepairType = "cleared_invalid_current_node"
	RepairClearedDeletedCurrentNode RepairType = "cleared_deleted_current_node"
)

// Repair is one ledger entry describing a structural fix.
type Repair struct {
	Type             RepairType `json:"type"`
	NodeID           int64      `json:"nodeId"`
	OriginalParentID *int64     `json:"originalParentId,omitempty"`
	ChainLength      int        `json:"chainLength,omitempty"`
	ChildIDs         []int64    `json:"childIds,omitempty"`
}

// Result is the outcome of a validation pass: the healed tree, whether
// anything changed, and the ordered ledger of repairs performed.
type Result struct {
	Tree     *Tree    `json:"tree"`
	Repaired bool     `json:"repaired"`
	Repairs  []Repair `json:"repairs"`
}

// ValidateAndRepair takes a possibly corrupt snapshot, typically one
// just overwritten by an external sync source, and returns a
// structurally valid tree plus the repair ledger. No node is ever lost:
// the only destructive recovery is for input with no usable node
// sequence at all, which yields a fresh empty tree.
//
// The pass is idempotent: running it again on its own output reports
// Repaired == false.
func ValidateAndRepair(t *Tree) Result {
	if t == nil || t.Nodes == nil {
		return Result{Tree: NewTree(), Repaired: true}
	}

	repaired := false

	// Compact nil entries so the remaining steps see real nodes only.
	nodes := t.Nodes[:0]
	for _, n := range t.Nodes {
		if n == nil {
			repaired = true
			continue
		}
		nodes = append(nodes, n)
	}
	t.Nodes = nodes

	idx := t.Index()
	var repairs []Repair

	// Orphan chain repair. An orphan's whole downward chain is usually
	// internally consistent; promoting only the head keeps the rest of
	// the chain valid without redundant fixes.
	processed := map[int64]bool{}
	for _, n := range t.Nodes {
		if n.ParentID == nil || processed[n.ID] {
			continue
		}
		if _, ok := idx[*n.ParentID]; ok {
			continue
		}
		chain := collectChain(t, n)
		for _, id := range chain {
			processed[id] = true
		}
		original := *n.ParentID
		n.ParentID = nil
		repairs = append(repairs, Repair{
			Type:             RepairPromotedToRoot,
			NodeID:           n.ID,
			OriginalParentID: &original,
			ChainLength:      len(chain),
		})
	}

	// Cycle breaking: nodes citing each other as parents have no missing
	// parent to trip the orphan step, yet none of them can reach a root,
	// so the whole cycle drops out of every visible view. Walk each
	// ancestor chain; a chain that closes on itself gets one member
	// promoted to root, which re-grounds the rest.
	grounded := map[int64]bool{}
	for _, n := range t.Nodes {
		if grounded[n.ID] {
			continue
		}
		onPath := map[int64]bool{}
		path := []int64{}
		cur := n
		for cur != nil && !grounded[cur.ID] && !onPath[cur.ID] {
			onPath[cur.ID] = true
			path = append(path, cur.ID)
			if cur.ParentID == nil {
				cur = nil
			} else {
				cur = idx[*cur.ParentID]
			}
		}
		if cur != nil && !grounded[cur.ID] {
			original := *cur.ParentID
			cur.ParentID = nil
			repairs = append(repairs, Repair{
				Type:             RepairPromotedToRoot,
				NodeID:           cur.ID,
				OriginalParentID: &original,
			})
		}
		for _, id := range path {
			grounded[id] = true
		}
	}

	// Children reconciliation: recompute each node's expected children
	// from ParentID back-references. Existing valid order is kept,
	// duplicates drop, missing ids append in ascending order so
	// re-derivation is stable.
	expected := map[int64]map[int64]bool{}
	for _, n := range t.Nodes {
		if n.ParentID != nil {
			if expected[*n.ParentID] == nil {
				expected[*n.ParentID] = map[int64]bool{}
			}
			expected[*n.ParentID][n.ID] = true
		}
	}
	for _, n := range t.Nodes {
		exp := expected[n.ID]
		kept := make([]int64, 0, len(n.Children))
		seen := map[int64]bool{}
		var removed []int64
		for _, c := range n.Children {
			if exp[c] && !seen[c] {
				kept = append(kept, c)
				seen[c] = true
			} else {
				removed = append(removed, c)
			}
		}
		var added []int64
		for c := range exp {
			if !seen[c] {
				added = append(added, c)
			}
		}
		sort.Slice(added, func(i, j int) bool { return added[i] < added[j] })
		kept = append(kept, added...)

		if len(removed) > 0 {
			repairs = append(repairs, Repair{
				Type:     RepairRemovedInvalidChildren,
				NodeID:   n.ID,
				ChildIDs: removed,
			})
		}
		if len(added) > 0 {
			repairs = append(repairs, Repair{
				Type:     RepairAddedMissingChildren,
				NodeID:   n.ID,
				ChildIDs: added,
			})
		}
		if len(removed) > 0 || len(added) > 0 {
			n.Children = kept
		}
		if n.Children == nil {
			n.Children = []int64{}
		}
	}

	// Current-node validation: the cursor must point at an existing,
	// non-deleted node or be null.
	if t.CurrentNodeID != nil {
		cur := idx[*t.CurrentNodeID]
		switch {
		case cur == nil:
			repairs = append(repairs, Repair{
				Type:   RepairClearedInvalidCurrentNode,
				NodeID: *t.CurrentNodeID,
			})
			t.CurrentNodeID = nil
		case cur.Deleted:
			repairs = append(repairs, Repair{
				Type:   RepairClearedDeletedCurrentNode,
				NodeID: *t.CurrentNodeID,
			})
			t.CurrentNodeID = nil
		}
	}

	return Result{
		Tree:     t,
		Repaired: repaired || len(repairs) > 0,
		Repairs:  repairs,
	}
}

// collectChain gathers the strictly linear run of nodes hanging below
// an orphan head: at each level, the walk continues only while exactly
// one node claims the current node as parent. Branching ends the chain;
// each orphan is the head of its own chain.
func collectChain(t *Tree, head *Node) []int64 {
	chain := []int64{head.ID}
	seen := map[int64]bool{head.ID: true}
	cur := head.ID
	for {
		var next *Node
		count := 0
		for _, n := range t.Nodes {
			if n.ParentID != nil && *n.ParentID == cur {
				count++
				next = n
			}
		}
		if count != 1 || seen[next.ID] {
			break
		}
		seen[next.ID] = true
		chain = append(chain, next.ID)
		cur = next.ID
	}
	return chain
}
