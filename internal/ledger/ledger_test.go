package ledger

import (
	"reflect"
	"testing"

	"github.com/mjelva/tavle/internal/models"
	"github.com/mjelva/tavle/internal/ops"
)

func strptr(s string) *string { return &s }

func testDoc() *models.Document {
	return &models.Document{
		ID: "page1",
		Groups: []models.Group{
			{ID: "g1", Title: "G1", Items: []models.Item{
				{ID: "a", Type: models.TypeHeaderCheckbox, Text: "Chores"},
				{ID: "b", Type: models.TypeTask, Text: "dishes", ParentID: strptr("a")},
				{ID: "c", Type: models.TypeTask, Text: "laundry", ParentID: strptr("a")},
			}},
		},
	}
}

func apply(t *testing.T, doc *models.Document, l *Ledger, kind ops.Kind, itemID string, params ops.Params) {
	t.Helper()
	op, err := ops.New(kind, itemID, params)
	if err != nil {
		t.Fatalf("New(%s): %v", kind, err)
	}
	res, err := ops.Apply(doc, op)
	if err != nil {
		t.Fatalf("Apply(%s): %v", kind, err)
	}
	l.Record(res)
}

func TestUndoRedoSingleOp(t *testing.T) {
	doc := testDoc()
	before := doc.Clone()
	l := New(0)

	apply(t, doc, l, ops.KindSetText, "b", ops.Params{Text: "wash dishes"})
	after := doc.Clone()

	if op := l.Undo(doc); op == nil {
		t.Fatal("Undo returned nil")
	}
	if !reflect.DeepEqual(doc, before) {
		t.Error("undo did not restore pre-op state")
	}

	if op := l.Redo(doc); op == nil {
		t.Fatal("Redo returned nil")
	}
	if !reflect.DeepEqual(doc, after) {
		t.Error("redo did not restore post-op state")
	}
}

func TestUndoCascadeDeleteRestoresSubtree(t *testing.T) {
	doc := testDoc()
	before := doc.Clone()
	l := New(0)

	apply(t, doc, l, ops.KindDelete, "a", ops.Params{})
	if n := len(doc.Groups[0].Items); n != 0 {
		t.Fatalf("after delete items = %d, want 0", n)
	}

	l.Undo(doc)
	if !reflect.DeepEqual(doc, before) {
		t.Errorf("one undo should restore all N+1 items with parent links:\n%+v", doc.Groups[0].Items)
	}
}

func TestCascadeToggleIsOneUndoStep(t *testing.T) {
	doc := testDoc()
	l := New(0)

	apply(t, doc, l, ops.KindSetProperty, "a", ops.Params{Property: "completed", Value: true, Cascade: true})
	l.Undo(doc)

	for _, id := range []string{"a", "b", "c"} {
		if doc.FindItem(id).Completed {
			t.Errorf("%s still completed after single undo", id)
		}
	}
}

func TestNewOperationClearsRedo(t *testing.T) {
	doc := testDoc()
	l := New(0)

	apply(t, doc, l, ops.KindSetText, "b", ops.Params{Text: "one"})
	l.Undo(doc)
	if !l.CanRedo() {
		t.Fatal("expected redo entry after undo")
	}

	apply(t, doc, l, ops.KindSetText, "b", ops.Params{Text: "two"})
	if l.CanRedo() {
		t.Error("recording a new operation must clear the redo stack")
	}
	if l.Redo(doc) != nil {
		t.Error("Redo should return nil with an empty stack")
	}
}

func TestUndoSkipsStaleEntry(t *testing.T) {
	doc := testDoc()
	l := New(0)

	apply(t, doc, l, ops.KindSetText, "c", ops.Params{Text: "fold laundry"})

	// Remove c outside the ledger's knowledge; its entry is now stale.
	op, _ := ops.New(ops.KindDelete, "c", ops.Params{})
	if _, err := ops.Apply(doc, op); err != nil {
		t.Fatalf("delete: %v", err)
	}

	apply(t, doc, l, ops.KindSetText, "b", ops.Params{Text: "scrub dishes"})

	// First undo reverts b's text.
	l.Undo(doc)
	if doc.FindItem("b").Text != "dishes" {
		t.Fatalf("b = %q, want %q", doc.FindItem("b").Text, "dishes")
	}

	// Next undo hits the stale c entry, skips it, and exhausts the stack
	// without aborting.
	if op := l.Undo(doc); op != nil {
		t.Errorf("stale entry should be skipped, got %v", op)
	}
	if l.CanUndo() {
		t.Error("stack should be exhausted")
	}
}

func TestMaxEntriesBound(t *testing.T) {
	doc := testDoc()
	l := New(2)

	for _, text := range []string{"one", "two", "three"} {
		apply(t, doc, l, ops.KindSetText, "b", ops.Params{Text: text})
	}

	l.Undo(doc)
	l.Undo(doc)
	if l.CanUndo() {
		t.Error("ledger should retain only 2 entries")
	}
	if doc.FindItem("b").Text != "one" {
		t.Errorf("b = %q, want %q (oldest entry evicted)", doc.FindItem("b").Text, "one")
	}
}
