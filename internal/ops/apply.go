package ops

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/mjelva/tavle/internal/apperr"
	"github.com/mjelva/tavle/internal/hierarchy"
	"github.com/mjelva/tavle/internal/models"
)

// RemovedItem is a snapshot of one deleted item: enough to restore it at
// its former position on undo.
type RemovedItem struct {
	Item    models.Item
	GroupID string
	Index   int
}

// PropertyDelta records the previous value of one item's property.
type PropertyDelta struct {
	ItemID  string
	Old     any
	Existed bool
}

// MovedPos records where one moved item sat before a move.
type MovedPos struct {
	ID    string
	Index int
}

// MoveInverse holds everything needed to put a moved subtree back.
type MoveInverse struct {
	GroupID   string
	ParentID  *string
	Positions []MovedPos // ascending former index order
}

// Result describes a successfully applied operation, carrying the inverse
// data the undo ledger needs. Op is the operation as applied: create gets
// its generated id, group, and clamped index filled in so re-applying it
// is deterministic.
type Result struct {
	Op        *Operation
	CreatedID string
	Removed   []RemovedItem   // delete
	PrevText  string          // setText
	Deltas    []PropertyDelta // setProperty (target first, then cascade)
	Moved     *MoveInverse    // move
}

// Apply executes op against doc synchronously and atomically: every
// precondition is checked before the first mutation, so on error the tree
// is unchanged. Apply never panics; failures come back as sentinel errors
// from apperr wrapped with context.
func Apply(doc *models.Document, op *Operation) (*Result, error) {
	if doc == nil || op == nil {
		return nil, apperr.ErrInvalidOperation
	}
	switch op.Kind {
	case KindCreate:
		return applyCreate(doc, op)
	case KindDelete:
		return applyDelete(doc, op)
	case KindMove:
		return applyMove(doc, op)
	case KindSetText:
		return applySetText(doc, op)
	case KindSetProperty:
		return applySetProperty(doc, op)
	default:
		return nil, apperr.ErrInvalidOperation
	}
}

func targetGroup(doc *models.Document, groupID string) *models.Group {
	if groupID == "" {
		if len(doc.Groups) == 0 {
			return nil
		}
		return &doc.Groups[0]
	}
	return doc.FindGroup(groupID)
}

func clampIndex(idx, n int) int {
	if idx < 0 || idx > n {
		return n
	}
	return idx
}

func insertItem(g *models.Group, it models.Item, idx int) {
	g.Items = append(g.Items, models.Item{})
	copy(g.Items[idx+1:], g.Items[idx:])
	g.Items[idx] = it
}

func removeItemAt(g *models.Group, idx int) {
	g.Items = append(g.Items[:idx], g.Items[idx+1:]...)
	if len(g.Items) == 0 {
		g.Items = nil
	}
}

func applyCreate(doc *models.Document, op *Operation) (*Result, error) {
	g := targetGroup(doc, op.Params.GroupID)
	if g == nil {
		return nil, fmt.Errorf("create: group %q: %w", op.Params.GroupID, apperr.ErrInvalidParent)
	}

	var it models.Item
	if op.Params.Item != nil {
		it = op.Params.Item.Clone()
	}
	if it.Type == "" {
		it.Type = op.Params.Type
	}
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	if g.FindItem(it.ID) != nil {
		return nil, fmt.Errorf("create: id %q: %w", it.ID, apperr.ErrAlreadyExists)
	}

	it.ParentID = op.Params.ParentID
	if it.ParentID != nil {
		if *it.ParentID == it.ID {
			return nil, fmt.Errorf("create: self-parent %q: %w", it.ID, apperr.ErrInvalidParent)
		}
		if g.FindItem(*it.ParentID) == nil {
			return nil, fmt.Errorf("create: parent %q not in group %q: %w", *it.ParentID, g.ID, apperr.ErrInvalidParent)
		}
	}

	idx := clampIndex(op.Params.Index, len(g.Items))
	insertItem(g, it, idx)

	applied := *op
	applied.Params.GroupID = g.ID
	applied.Params.Index = idx
	snap := it.Clone()
	applied.Params.Item = &snap
	applied.ItemID = it.ID

	return &Result{Op: &applied, CreatedID: it.ID}, nil
}

func applyDelete(doc *models.Document, op *Operation) (*Result, error) {
	g := doc.GroupOf(op.ItemID)
	if g == nil {
		return nil, fmt.Errorf("delete: %q: %w", op.ItemID, apperr.ErrItemNotFound)
	}

	idx := hierarchy.Build(g.Items)
	victims := append([]string{op.ItemID}, idx.Descendants(op.ItemID)...)
	victimSet := make(map[string]struct{}, len(victims))
	for _, id := range victims {
		victimSet[id] = struct{}{}
	}

	// Snapshot in ascending index order so undo can reinsert left to right.
	var removed []RemovedItem
	for i, it := range g.Items {
		if _, dead := victimSet[it.ID]; dead {
			removed = append(removed, RemovedItem{Item: it.Clone(), GroupID: g.ID, Index: i})
		}
	}
	// Remove right to left so earlier indices stay valid.
	for i := len(g.Items) - 1; i >= 0; i-- {
		if _, dead := victimSet[g.Items[i].ID]; dead {
			removeItemAt(g, i)
		}
	}

	applied := *op
	return &Result{Op: &applied, Removed: removed}, nil
}

func applyMove(doc *models.Document, op *Operation) (*Result, error) {
	src := doc.GroupOf(op.ItemID)
	if src == nil {
		return nil, fmt.Errorf("move: %q: %w", op.ItemID, apperr.ErrItemNotFound)
	}
	dst := src
	if op.Params.GroupID != "" && op.Params.GroupID != src.ID {
		dst = doc.FindGroup(op.Params.GroupID)
		if dst == nil {
			return nil, fmt.Errorf("move: group %q: %w", op.Params.GroupID, apperr.ErrInvalidParent)
		}
	}

	srcIdx := hierarchy.Build(src.Items)
	moving := append([]string{op.ItemID}, srcIdx.Descendants(op.ItemID)...)
	movingSet := make(map[string]struct{}, len(moving))
	for _, id := range moving {
		movingSet[id] = struct{}{}
	}

	if op.Params.ParentID != nil {
		pid := *op.Params.ParentID
		if _, cyclic := movingSet[pid]; cyclic {
			return nil, fmt.Errorf("move: %q under its own subtree: %w", op.ItemID, apperr.ErrCycleDetected)
		}
		parent := dst.FindItem(pid)
		if parent == nil {
			return nil, fmt.Errorf("move: parent %q not in group %q: %w", pid, dst.ID, apperr.ErrInvalidParent)
		}
		// Walk the new ancestor chain to the root; the moved item must not
		// appear in it. The step bound keeps a corrupted cyclic chain from
		// hanging the walk.
		dstIdx := hierarchy.Build(dst.Items)
		steps := 0
		for cur := parent; cur != nil && cur.ParentID != nil && steps <= len(dst.Items); steps++ {
			if _, cyclic := movingSet[*cur.ParentID]; cyclic {
				return nil, fmt.Errorf("move: %q in ancestor chain: %w", op.ItemID, apperr.ErrCycleDetected)
			}
			next, ok := dstIdx.Item(*cur.ParentID)
			if !ok {
				break
			}
			cur = &next
		}
	}

	inverse := &MoveInverse{GroupID: src.ID}
	head := src.FindItem(op.ItemID)
	inverse.ParentID = head.ParentID

	var subtree []models.Item
	for i, it := range src.Items {
		if _, moved := movingSet[it.ID]; moved {
			inverse.Positions = append(inverse.Positions, MovedPos{ID: it.ID, Index: i})
			subtree = append(subtree, it.Clone())
		}
	}
	for i := len(src.Items) - 1; i >= 0; i-- {
		if _, moved := movingSet[src.Items[i].ID]; moved {
			removeItemAt(src, i)
		}
	}

	for i := range subtree {
		if subtree[i].ID == op.ItemID {
			subtree[i].ParentID = op.Params.ParentID
		}
	}
	idx := clampIndex(op.Params.Index, len(dst.Items))
	for i := len(subtree) - 1; i >= 0; i-- {
		insertItem(dst, subtree[i], idx)
	}

	applied := *op
	applied.Params.GroupID = dst.ID
	applied.Params.Index = idx
	return &Result{Op: &applied, Moved: inverse}, nil
}

func applySetText(doc *models.Document, op *Operation) (*Result, error) {
	it := doc.FindItem(op.ItemID)
	if it == nil {
		return nil, fmt.Errorf("setText: %q: %w", op.ItemID, apperr.ErrItemNotFound)
	}
	res := &Result{PrevText: it.Text}
	it.Text = op.Params.Text
	applied := *op
	res.Op = &applied
	return res, nil
}

func applySetProperty(doc *models.Document, op *Operation) (*Result, error) {
	g := doc.GroupOf(op.ItemID)
	if g == nil {
		return nil, fmt.Errorf("setProperty: %q: %w", op.ItemID, apperr.ErrItemNotFound)
	}

	targets := []string{op.ItemID}
	if op.Params.Cascade {
		targets = append(targets, hierarchy.Build(g.Items).Descendants(op.ItemID)...)
	}

	if op.Params.Property == "completed" {
		if _, ok := op.Params.Value.(bool); !ok {
			return nil, fmt.Errorf("setProperty: completed wants bool, got %T: %w", op.Params.Value, apperr.ErrInvalidOperation)
		}
	}

	res := &Result{}
	for _, id := range targets {
		it := g.FindItem(id)
		switch op.Params.Property {
		case "completed":
			res.Deltas = append(res.Deltas, PropertyDelta{ItemID: id, Old: it.Completed, Existed: true})
			it.Completed = op.Params.Value.(bool)
		default:
			old, existed := it.Props[op.Params.Property]
			res.Deltas = append(res.Deltas, PropertyDelta{ItemID: id, Old: old, Existed: existed})
			if it.Props == nil {
				it.Props = make(map[string]any)
			}
			it.Props[op.Params.Property] = op.Params.Value
		}
	}

	applied := *op
	res.Op = &applied
	return res, nil
}

// Invert rolls back a previously applied result. It is the ledger's undo
// primitive; errors mean the entry no longer applies (the item vanished
// through an unrelated later operation) and are non-fatal to callers.
func Invert(doc *models.Document, res *Result) error {
	if doc == nil || res == nil || res.Op == nil {
		return apperr.ErrInvalidOperation
	}
	switch res.Op.Kind {
	case KindCreate:
		g := doc.GroupOf(res.CreatedID)
		if g == nil {
			return fmt.Errorf("undo create: %q: %w", res.CreatedID, apperr.ErrItemNotFound)
		}
		removeItemAt(g, g.ItemIndex(res.CreatedID))
		return nil

	case KindDelete:
		for _, rm := range res.Removed {
			g := doc.FindGroup(rm.GroupID)
			if g == nil {
				return fmt.Errorf("undo delete: group %q: %w", rm.GroupID, apperr.ErrNotFound)
			}
			insertItem(g, rm.Item.Clone(), clampIndex(rm.Index, len(g.Items)))
		}
		return nil

	case KindMove:
		inv := res.Moved
		back := doc.FindGroup(inv.GroupID)
		if back == nil {
			return fmt.Errorf("undo move: group %q: %w", inv.GroupID, apperr.ErrNotFound)
		}
		// Pull the moved items out of wherever they live now.
		snapshots := make(map[string]models.Item, len(inv.Positions))
		for _, pos := range inv.Positions {
			g := doc.GroupOf(pos.ID)
			if g == nil {
				return fmt.Errorf("undo move: %q: %w", pos.ID, apperr.ErrItemNotFound)
			}
			i := g.ItemIndex(pos.ID)
			snapshots[pos.ID] = g.Items[i].Clone()
			removeItemAt(g, i)
		}
		for _, pos := range inv.Positions {
			it := snapshots[pos.ID]
			if pos.ID == res.Op.ItemID {
				it.ParentID = inv.ParentID
			}
			insertItem(back, it, clampIndex(pos.Index, len(back.Items)))
		}
		return nil

	case KindSetText:
		it := doc.FindItem(res.Op.ItemID)
		if it == nil {
			return fmt.Errorf("undo setText: %q: %w", res.Op.ItemID, apperr.ErrItemNotFound)
		}
		it.Text = res.PrevText
		return nil

	case KindSetProperty:
		for i := len(res.Deltas) - 1; i >= 0; i-- {
			d := res.Deltas[i]
			it := doc.FindItem(d.ItemID)
			if it == nil {
				return fmt.Errorf("undo setProperty: %q: %w", d.ItemID, apperr.ErrItemNotFound)
			}
			if res.Op.Params.Property == "completed" {
				it.Completed = d.Old.(bool)
				continue
			}
			if d.Existed {
				it.Props[res.Op.Params.Property] = d.Old
			} else if it.Props != nil {
				delete(it.Props, res.Op.Params.Property)
			}
		}
		return nil
	}
	return apperr.ErrInvalidOperation
}
