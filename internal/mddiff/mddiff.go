// Package mddiff turns a freeform markdown edit into semantic operations.
//
// When a markdown-authoritative view is edited we cannot see the user's
// intent, only the before and after text. ParseDiff aligns the two texts
// block by block (longest-common-subsequence on block identity, not raw
// string diff), classifies each block as unchanged, changed, inserted,
// deleted, or reordered, and emits the operation sequence that reconstructs
// the edit against the canonical tree.
//
// The alignment is best-effort: when several old blocks could match a new
// block (duplicate text), positional proximity wins over pure text
// equality. An ambiguous match can therefore surface as delete+create
// rather than setText; that costs undo granularity, never correctness of
// the resulting tree.
package mddiff

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/mjelva/tavle/internal/apperr"
	"github.com/mjelva/tavle/internal/markdown"
	"github.com/mjelva/tavle/internal/ops"
)

// pairWindow is the positional proximity window for matching edited blocks
// across the diff: a changed block only pairs with an old block of the same
// kind within this many positions of its own. Beyond the window an edit
// degrades to delete+create.
const pairWindow = 3

// ParseDiff diffs oldMD against newMD and returns the operations that
// transform the document oldMD was rendered from into newMD's shape.
//
// refs must be the Ref slice produced when oldMD was rendered (one per
// block); it is how edited blocks resolve back to item ids. A refs slice
// that does not align with oldMD's blocks yields apperr.ErrDiffAmbiguous,
// and callers fall back to storing the raw markdown.
func ParseDiff(oldMD, newMD, pageID string, refs []markdown.Ref) ([]*ops.Operation, error) {
	if oldMD == newMD {
		return nil, nil
	}

	oldBlocks := markdown.Split(oldMD)
	newBlocks := markdown.Split(newMD)
	if len(refs) != len(oldBlocks) {
		return nil, fmt.Errorf("mddiff: %d refs for %d blocks: %w", len(refs), len(oldBlocks), apperr.ErrDiffAmbiguous)
	}

	oldMatch, newMatch := align(oldBlocks, newBlocks)
	gapPaired := pairGaps(oldBlocks, newBlocks, oldMatch, newMatch)

	d := differ{
		pageID:    pageID,
		oldBlocks: oldBlocks,
		newBlocks: newBlocks,
		refs:      refs,
		oldMatch:  oldMatch,
		newMatch:  newMatch,
		gapPaired: gapPaired,
	}
	return d.emit(), nil
}

// align runs an LCS over block identities and returns, for each side, the
// matched index on the other side (-1 for unmatched).
func align(prev, next []markdown.Block) (oldMatch, newMatch []int) {
	n, m := len(prev), len(next)
	oldMatch = make([]int, n)
	newMatch = make([]int, m)
	for i := range oldMatch {
		oldMatch[i] = -1
	}
	for j := range newMatch {
		newMatch[j] = -1
	}

	// Classic DP table; documents are small enough that O(n*m) is fine.
	dp := make([][]int, n+1)
	for i := range dp {
		dp[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if prev[i].Identity() == next[j].Identity() {
				dp[i][j] = dp[i+1][j+1] + 1
			} else if dp[i+1][j] >= dp[i][j+1] {
				dp[i][j] = dp[i+1][j]
			} else {
				dp[i][j] = dp[i][j+1]
			}
		}
	}
	for i, j := 0, 0; i < n && j < m; {
		switch {
		case prev[i].Identity() == next[j].Identity():
			oldMatch[i] = j
			newMatch[j] = i
			i++
			j++
		case dp[i+1][j] >= dp[i][j+1]:
			i++
		default:
			j++
		}
	}
	return oldMatch, newMatch
}

// pairGaps matches leftover blocks the LCS skipped: a new block pairs with
// an unmatched old block of the same kind whose position is within
// pairWindow. Closest position wins; each old block pairs at most once.
func pairGaps(prev, next []markdown.Block, oldMatch, newMatch []int) []bool {
	paired := make([]bool, len(next))
	for j := range next {
		if newMatch[j] != -1 {
			continue
		}
		best, bestDist := -1, pairWindow+1
		for i := range prev {
			if oldMatch[i] != -1 || prev[i].Kind != next[j].Kind {
				continue
			}
			dist := i - j
			if dist < 0 {
				dist = -dist
			}
			if dist < bestDist {
				best, bestDist = i, dist
			}
		}
		if best != -1 {
			oldMatch[best] = j
			newMatch[j] = best
			paired[j] = true
		}
	}
	return paired
}

type differ struct {
	pageID    string
	oldBlocks []markdown.Block
	newBlocks []markdown.Block
	refs      []markdown.Ref
	oldMatch  []int
	newMatch  []int
	gapPaired []bool

	// per new-block resolution, filled by resolve().
	newItemID  []string
	newGroupID []string
	newParent  []*string
	newIndex   []int
	created    []bool
}

func (d *differ) emit() []*ops.Operation {
	d.resolve()

	var out []*ops.Operation
	out = append(out, d.deletes()...)
	out = append(out, d.createsAndEdits()...)
	return out
}

// resolve walks the new blocks assigning each content block an item id
// (existing or freshly minted), its group, its inferred parent, and its
// flat index within the group.
func (d *differ) resolve() {
	n := len(d.newBlocks)
	d.newItemID = make([]string, n)
	d.newGroupID = make([]string, n)
	d.newParent = make([]*string, n)
	d.newIndex = make([]int, n)
	d.created = make([]bool, n)

	groupID := ""
	flat := 0
	// lastAtDepth[d] holds the item id of the latest block seen at depth d
	// in the current group; a block at depth d+1 hangs off it.
	var lastAtDepth []string

	for j, b := range d.newBlocks {
		switch b.Kind {
		case markdown.BlockTitle:
			continue
		case markdown.BlockGroup:
			if i := d.newMatch[j]; i != -1 {
				groupID = d.refs[i].GroupID
			} else {
				// A brand-new section has no group id; its items fall
				// through to the document's first group.
				groupID = ""
			}
			flat = 0
			lastAtDepth = lastAtDepth[:0]
			continue
		}

		if i := d.newMatch[j]; i != -1 {
			d.newItemID[j] = d.refs[i].ItemID
		} else {
			d.newItemID[j] = uuid.NewString()
			d.created[j] = true
		}
		d.newGroupID[j] = groupID
		d.newIndex[j] = flat
		flat++

		depth := b.Depth
		if depth > len(lastAtDepth) {
			depth = len(lastAtDepth)
		}
		if depth > 0 {
			pid := lastAtDepth[depth-1]
			d.newParent[j] = &pid
		}
		lastAtDepth = append(lastAtDepth[:depth], d.newItemID[j])
	}
}

// deletes emits one delete per vanished old block, skipping blocks whose
// ancestor is also vanishing: delete cascades, so removing the parent
// already removes the subtree.
func (d *differ) deletes() []*ops.Operation {
	deleted := make(map[string]bool)
	for i := range d.oldBlocks {
		if d.oldMatch[i] == -1 && d.refs[i].ItemID != "" {
			deleted[d.refs[i].ItemID] = true
		}
	}

	oldParent := d.oldParents()

	var out []*ops.Operation
	for i := range d.oldBlocks {
		id := d.refs[i].ItemID
		if d.oldMatch[i] != -1 || id == "" {
			continue
		}
		covered := false
		for p := oldParent[i]; p != nil; {
			if deleted[*p] {
				covered = true
				break
			}
			p = d.parentOf(*p, oldParent)
		}
		if covered {
			continue
		}
		op, err := ops.New(ops.KindDelete, id, ops.Params{})
		if err != nil {
			continue
		}
		op.PageID = d.pageID
		out = append(out, op)
	}
	return out
}

// oldParents infers each old block's parent item id from depth nesting,
// mirroring resolve() on the old side.
func (d *differ) oldParents() []*string {
	out := make([]*string, len(d.oldBlocks))
	var lastAtDepth []string
	for i, b := range d.oldBlocks {
		switch b.Kind {
		case markdown.BlockTitle:
			continue
		case markdown.BlockGroup:
			lastAtDepth = lastAtDepth[:0]
			continue
		}
		depth := b.Depth
		if depth > len(lastAtDepth) {
			depth = len(lastAtDepth)
		}
		if depth > 0 {
			pid := lastAtDepth[depth-1]
			out[i] = &pid
		}
		lastAtDepth = append(lastAtDepth[:depth], d.refs[i].ItemID)
	}
	return out
}

func (d *differ) parentOf(itemID string, oldParent []*string) *string {
	for i := range d.oldBlocks {
		if d.refs[i].ItemID == itemID {
			return oldParent[i]
		}
	}
	return nil
}

// createsAndEdits walks the new blocks in order emitting creates for new
// content, setText/setProperty for edited pairs, and moves for blocks
// whose group or parent changed.
func (d *differ) createsAndEdits() []*ops.Operation {
	oldParent := d.oldParents()

	var out []*ops.Operation
	add := func(op *ops.Operation, err error) {
		if err == nil {
			op.PageID = d.pageID
			out = append(out, op)
		}
	}

	for j, b := range d.newBlocks {
		switch b.Kind {
		case markdown.BlockTitle, markdown.BlockGroup:
			continue
		}

		if d.created[j] {
			item := markdown.ItemForBlock(b)
			item.ID = d.newItemID[j]
			add(ops.New(ops.KindCreate, "", ops.Params{
				Type:     item.Type,
				Item:     &item,
				GroupID:  d.newGroupID[j],
				ParentID: d.newParent[j],
				Index:    d.newIndex[j],
			}))
			continue
		}

		i := d.newMatch[j]
		id := d.newItemID[j]
		old := d.oldBlocks[i]

		// A gap pair with identical identity is a reordered block: the LCS
		// skipped it because it crossed another match. Reproduce the
		// reorder as a move rather than delete+create.
		reordered := d.gapPaired[j] && old.Identity() == b.Identity()

		if reordered || !sameParent(oldParent[i], d.newParent[j]) || d.refs[i].GroupID != d.newGroupID[j] {
			add(ops.New(ops.KindMove, id, ops.Params{
				GroupID:  d.newGroupID[j],
				ParentID: d.newParent[j],
				Index:    d.newIndex[j],
			}))
		}

		if old.Text != b.Text {
			add(ops.New(ops.KindSetText, id, ops.Params{Text: b.Text}))
		}
		if old.Kind == markdown.BlockCheckbox && b.Kind == markdown.BlockCheckbox && old.Completed != b.Completed {
			add(ops.New(ops.KindSetProperty, id, ops.Params{Property: "completed", Value: b.Completed}))
		}
	}
	return out
}

func sameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
