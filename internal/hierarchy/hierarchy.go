// Package hierarchy resolves parent/child relationships from a flat item
// list. The index is ephemeral: rebuilt in O(n) from a group's items
// whenever needed, never persisted, so it cannot go stale if rebuilt
// before use.
package hierarchy

import "github.com/mjelva/tavle/internal/models"

// Index maps item ids to items and parent ids to ordered child ids.
type Index struct {
	byID     map[string]models.Item
	children map[string][]string
	order    []string // ids in source-list order
}

// Build scans items once and produces the lookup maps. Pure function: the
// input slice is not modified and may be reused.
//
// A ParentID that references a nonexistent id is treated as a root so the
// item stays reachable instead of being orphaned.
func Build(items []models.Item) Index {
	idx := Index{
		byID:     make(map[string]models.Item, len(items)),
		children: make(map[string][]string),
		order:    make([]string, 0, len(items)),
	}
	for _, it := range items {
		idx.byID[it.ID] = it
		idx.order = append(idx.order, it.ID)
	}
	for _, it := range items {
		pid := ""
		if it.ParentID != nil {
			if _, ok := idx.byID[*it.ParentID]; ok {
				pid = *it.ParentID
			}
		}
		idx.children[pid] = append(idx.children[pid], it.ID)
	}
	return idx
}

// Item returns the indexed item with the given id.
func (idx Index) Item(id string) (models.Item, bool) {
	it, ok := idx.byID[id]
	return it, ok
}

// Has reports whether id is present in the index.
func (idx Index) Has(id string) bool {
	_, ok := idx.byID[id]
	return ok
}

// Children returns the items whose ParentID equals id, in source-list order.
func (idx Index) Children(id string) []models.Item {
	ids := idx.children[id]
	out := make([]models.Item, 0, len(ids))
	for _, cid := range ids {
		out = append(out, idx.byID[cid])
	}
	return out
}

// Roots returns the items with no (resolvable) parent, in source-list order.
func (idx Index) Roots() []models.Item {
	return idx.Children("")
}

// Descendants returns the transitive children of id in pre-order. The id
// itself is not included. Each item appears at most once even if the
// parent links form a cycle, so the walk always terminates.
func (idx Index) Descendants(id string) []string {
	var out []string
	seen := map[string]bool{id: true}
	var walk func(string)
	walk = func(cur string) {
		for _, cid := range idx.children[cur] {
			if seen[cid] {
				continue
			}
			seen[cid] = true
			out = append(out, cid)
			walk(cid)
		}
	}
	walk(id)
	return out
}

// Depth returns how many resolvable ancestors id has. Roots are depth 0.
func (idx Index) Depth(id string) int {
	depth := 0
	for {
		it, ok := idx.byID[id]
		if !ok || it.ParentID == nil {
			return depth
		}
		parent, ok := idx.byID[*it.ParentID]
		if !ok {
			return depth
		}
		depth++
		id = parent.ID
		// Defensive bound: the operation layer rejects cycles at write
		// time, but a corrupted file must not hang the renderer.
		if depth > len(idx.byID) {
			return depth
		}
	}
}

// FindCycle returns the id of an item whose parent chain loops back on
// itself, or "" when the parent links form a forest. Unresolvable parent
// references count as roots, matching Build.
func FindCycle(items []models.Item) string {
	byID := make(map[string]*models.Item, len(items))
	for i := range items {
		byID[items[i].ID] = &items[i]
	}
	// 0 unvisited, 1 on the current chain, 2 known cycle-free.
	state := make(map[string]int, len(items))
	for i := range items {
		id := items[i].ID
		var chain []string
		for id != "" && state[id] == 0 {
			state[id] = 1
			chain = append(chain, id)
			it := byID[id]
			id = ""
			if it.ParentID != nil {
				if _, ok := byID[*it.ParentID]; ok {
					id = *it.ParentID
				}
			}
		}
		if id != "" && state[id] == 1 {
			return id
		}
		for _, cid := range chain {
			state[cid] = 2
		}
	}
	return ""
}

// Roots returns the items in the list with a nil or unresolvable ParentID,
// without building a full index.
func Roots(items []models.Item) []models.Item {
	ids := make(map[string]struct{}, len(items))
	for _, it := range items {
		ids[it.ID] = struct{}{}
	}
	var out []models.Item
	for _, it := range items {
		if it.ParentID == nil {
			out = append(out, it)
			continue
		}
		if _, ok := ids[*it.ParentID]; !ok {
			out = append(out, it)
		}
	}
	return out
}
