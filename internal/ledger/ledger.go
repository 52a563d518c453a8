// Package ledger records applied operations as invertible entries and
// replays them for undo/redo.
//
// History is linear: recording a new operation after an undo discards the
// redo stack. A cascade (delete subtree, header-checkbox toggle) is one
// entry, so a single undo reverts it atomically.
package ledger

import (
	"log/slog"

	"github.com/mjelva/tavle/internal/models"
	"github.com/mjelva/tavle/internal/ops"
)

// Entry is one recorded, invertible operation.
type Entry struct {
	Result *ops.Result
}

// Ledger holds the undo and redo stacks for a single document.
// Not safe for concurrent use; the owning document context serialises
// access (single-writer model).
type Ledger struct {
	undo []Entry
	redo []Entry
	max  int
}

// New creates a ledger that keeps at most max entries (0 means unbounded).
func New(max int) *Ledger {
	return &Ledger{max: max}
}

// Record pushes an applied operation onto the undo stack and clears the
// redo stack. Operations that failed to apply must never be recorded.
func (l *Ledger) Record(res *ops.Result) {
	if res == nil || res.Op == nil {
		return
	}
	l.undo = append(l.undo, Entry{Result: res})
	if l.max > 0 && len(l.undo) > l.max {
		l.undo = l.undo[len(l.undo)-l.max:]
	}
	l.redo = nil
}

// CanUndo reports whether an undo entry is available.
func (l *Ledger) CanUndo() bool { return len(l.undo) > 0 }

// CanRedo reports whether a redo entry is available.
func (l *Ledger) CanRedo() bool { return len(l.redo) > 0 }

// Undo pops the most recent entry and applies its inverse to doc. An entry
// that no longer applies (its item was removed by a later unrelated
// operation) is skipped with a warning and the next entry is tried. Returns
// the operation that was undone, or nil when the stack is exhausted.
func (l *Ledger) Undo(doc *models.Document) *ops.Operation {
	for len(l.undo) > 0 {
		entry := l.undo[len(l.undo)-1]
		l.undo = l.undo[:len(l.undo)-1]

		if err := ops.Invert(doc, entry.Result); err != nil {
			slog.Warn("undo: entry skipped",
				slog.String("op", string(entry.Result.Op.Kind)),
				slog.String("item_id", entry.Result.Op.ItemID),
				slog.String("error", err.Error()))
			continue
		}
		l.redo = append(l.redo, entry)
		return entry.Result.Op
	}
	return nil
}

// Redo reapplies the most recently undone entry. Returns the operation that
// was reapplied, or nil when the redo stack is empty.
func (l *Ledger) Redo(doc *models.Document) *ops.Operation {
	for len(l.redo) > 0 {
		entry := l.redo[len(l.redo)-1]
		l.redo = l.redo[:len(l.redo)-1]

		res, err := ops.Apply(doc, entry.Result.Op)
		if err != nil {
			slog.Warn("redo: entry skipped",
				slog.String("op", string(entry.Result.Op.Kind)),
				slog.String("item_id", entry.Result.Op.ItemID),
				slog.String("error", err.Error()))
			continue
		}
		// Keep the fresh result: inverse data may differ after replay.
		l.undo = append(l.undo, Entry{Result: res})
		return res.Op
	}
	return nil
}
