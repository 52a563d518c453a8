package projection

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/mjelva/tavle/internal/models"
	"github.com/mjelva/tavle/internal/ops"
)

func testDoc() *models.Document {
	parent := func(id string) *string { return &id }
	return &models.Document{
		ID:    "page1",
		Title: "Groceries",
		Groups: []models.Group{
			{
				ID:    "g1",
				Title: "Today",
				Items: []models.Item{
					{ID: "a", Type: models.TypeHeaderCheckbox, Text: "Shopping"},
					{ID: "b", Type: models.TypeTask, Text: "Buy milk", ParentID: parent("a")},
					{ID: "c", Type: models.TypeTask, Text: "Buy eggs", ParentID: parent("a")},
				},
			},
			{
				ID:    "g2",
				Title: "Later",
				Items: []models.Item{
					{ID: "d", Type: models.TypeNote, Text: "call plumber"},
				},
			},
		},
	}
}

func mustApply(t *testing.T, doc *models.Document, kind ops.Kind, itemID string, params ops.Params) *ops.Operation {
	t.Helper()
	op, err := ops.New(kind, itemID, params)
	if err != nil {
		t.Fatalf("New(%s): %v", kind, err)
	}
	op.PageID = doc.ID
	if _, err := ops.Apply(doc, op); err != nil {
		t.Fatalf("Apply(%s): %v", kind, err)
	}
	return op
}

// fresh recomputes a projection's shape from scratch for comparison with
// the incrementally maintained one.
func fresh(t *testing.T, p *Projection, doc *models.Document) any {
	t.Helper()
	data, err := p.cfg.Project(doc)
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	return data
}

func TestRegisterComputesInitialData(t *testing.T) {
	doc := testDoc()
	reg := NewRegistry()
	p := NewFlatListView("v1", "page1", nil)

	if p.State() != StateUninitialized {
		t.Fatalf("state before register = %v", p.State())
	}
	if err := reg.Register(p, doc); err != nil {
		t.Fatalf("register: %v", err)
	}
	if p.State() != StateActive {
		t.Fatalf("state after register = %v", p.State())
	}

	rows := p.Data().([]Row)
	var ids []string
	for _, r := range rows {
		ids = append(ids, fmt.Sprintf("%s@%d", r.ID, r.Indent))
	}
	want := []string{"a@0", "b@1", "c@1", "d@0"}
	if !reflect.DeepEqual(ids, want) {
		t.Fatalf("rows = %v, want %v", ids, want)
	}
}

func TestIncrementalMatchesFullProjection(t *testing.T) {
	doc := testDoc()
	reg := NewRegistry()
	list := NewFlatListView("list", "page1", nil)
	board := NewBoardView("board", "page1", nil)
	for _, p := range []*Projection{list, board} {
		if err := reg.Register(p, doc); err != nil {
			t.Fatalf("register %s: %v", p.ViewID(), err)
		}
	}

	steps := []func() *ops.Operation{
		func() *ops.Operation {
			return mustApply(t, doc, ops.KindSetText, "b", ops.Params{Text: "Buy oat milk"})
		},
		func() *ops.Operation {
			return mustApply(t, doc, ops.KindSetProperty, "c",
				ops.Params{Property: "completed", Value: true})
		},
		func() *ops.Operation {
			return mustApply(t, doc, ops.KindCreate, "",
				ops.Params{Type: models.TypeTask, GroupID: "g2", Index: -1,
					Item: &models.Item{Text: "call electrician"}})
		},
		func() *ops.Operation {
			return mustApply(t, doc, ops.KindMove, "c",
				ops.Params{GroupID: "g1", Index: 0})
		},
		func() *ops.Operation {
			return mustApply(t, doc, ops.KindDelete, "b", ops.Params{})
		},
		func() *ops.Operation {
			return mustApply(t, doc, ops.KindSetProperty, "a",
				ops.Params{Property: "completed", Value: true, Cascade: true})
		},
	}
	for i, step := range steps {
		op := step()
		reg.Broadcast(doc, op)
		for _, p := range []*Projection{list, board} {
			if got, want := p.Data(), fresh(t, p, doc); !reflect.DeepEqual(got, want) {
				t.Fatalf("step %d (%s): %s diverged from full projection:\ngot  %#v\nwant %#v",
					i, op.Kind, p.ViewID(), got, want)
			}
		}
	}
}

func TestIncrementalErrorFallsBackToRefresh(t *testing.T) {
	doc := testDoc()
	reg := NewRegistry()
	projects := 0
	p := New(Config{
		ViewID: "v1",
		PageID: "page1",
		Project: func(doc *models.Document) (any, error) {
			projects++
			return len(doc.Groups[0].Items), nil
		},
		Apply: func(*models.Document, *ops.Operation, any) (any, error) {
			return nil, fmt.Errorf("stale cache")
		},
	})
	if err := reg.Register(p, doc); err != nil {
		t.Fatalf("register: %v", err)
	}

	op := mustApply(t, doc, ops.KindSetText, "b", ops.Params{Text: "x"})
	reg.Broadcast(doc, op)

	if projects != 2 {
		t.Fatalf("Project called %d times, want 2 (initial + fallback)", projects)
	}
	if p.Data() != 3 {
		t.Fatalf("data = %v, want 3", p.Data())
	}
}

func TestIncrementalPanicDowngradesToRefresh(t *testing.T) {
	doc := testDoc()
	reg := NewRegistry()
	p := New(Config{
		ViewID:  "v1",
		PageID:  "page1",
		Project: func(doc *models.Document) (any, error) { return doc.Groups[0].Items[1].Text, nil },
		Apply: func(*models.Document, *ops.Operation, any) (any, error) {
			panic("renderer bug")
		},
	})
	if err := reg.Register(p, doc); err != nil {
		t.Fatalf("register: %v", err)
	}

	op := mustApply(t, doc, ops.KindSetText, "b", ops.Params{Text: "Buy oat milk"})
	reg.Broadcast(doc, op) // must not panic through

	if p.Data() != "Buy oat milk" {
		t.Fatalf("data = %v after panic fallback", p.Data())
	}
}

func TestOperationsOnOtherPagesIgnored(t *testing.T) {
	doc := testDoc()
	other := testDoc()
	other.ID = "page2"

	reg := NewRegistry()
	projects := 0
	p := New(Config{
		ViewID: "v1",
		PageID: "page1",
		Project: func(*models.Document) (any, error) {
			projects++
			return projects, nil
		},
	})
	if err := reg.Register(p, doc); err != nil {
		t.Fatalf("register: %v", err)
	}

	op := mustApply(t, other, ops.KindSetText, "b", ops.Params{Text: "x"})
	reg.Broadcast(other, op)

	if projects != 1 {
		t.Fatalf("Project called %d times for foreign-page op, want 1", projects)
	}
}

func TestFilterNarrowsRelevance(t *testing.T) {
	doc := testDoc()
	reg := NewRegistry()
	var seen []ops.Kind
	p := New(Config{
		ViewID:  "v1",
		PageID:  "page1",
		Project: func(*models.Document) (any, error) { return nil, nil },
		Filter:  func(op *ops.Operation) bool { return op.Kind == ops.KindSetText },
		Apply: func(_ *models.Document, op *ops.Operation, current any) (any, error) {
			seen = append(seen, op.Kind)
			return current, nil
		},
	})
	if err := reg.Register(p, doc); err != nil {
		t.Fatalf("register: %v", err)
	}

	reg.Broadcast(doc, mustApply(t, doc, ops.KindSetText, "b", ops.Params{Text: "x"}))
	reg.Broadcast(doc, mustApply(t, doc, ops.KindSetProperty, "c",
		ops.Params{Property: "completed", Value: true}))

	if !reflect.DeepEqual(seen, []ops.Kind{ops.KindSetText}) {
		t.Fatalf("seen = %v", seen)
	}
}

func TestDestroyedProjectionIgnoresBroadcasts(t *testing.T) {
	doc := testDoc()
	reg := NewRegistry()
	p := NewFlatListView("v1", "page1", nil)
	if err := reg.Register(p, doc); err != nil {
		t.Fatalf("register: %v", err)
	}
	reg.Unregister(p)

	if p.State() != StateDestroyed {
		t.Fatalf("state = %v after unregister", p.State())
	}
	op := mustApply(t, doc, ops.KindSetText, "b", ops.Params{Text: "x"})
	reg.Broadcast(doc, op)
	if p.Data() != nil {
		t.Fatalf("destroyed projection retained data: %v", p.Data())
	}
	if err := reg.Register(p, doc); err == nil {
		t.Fatal("re-registering a destroyed projection succeeded")
	}
}

func TestBroadcastDeliversInRegistrationOrder(t *testing.T) {
	doc := testDoc()
	reg := NewRegistry()
	var order []string
	for _, id := range []string{"first", "second", "third"} {
		id := id
		p := New(Config{
			ViewID:  id,
			PageID:  "page1",
			Project: func(*models.Document) (any, error) { return nil, nil },
			Apply: func(_ *models.Document, _ *ops.Operation, current any) (any, error) {
				order = append(order, id)
				return current, nil
			},
		})
		if err := reg.Register(p, doc); err != nil {
			t.Fatalf("register %s: %v", id, err)
		}
	}

	reg.Broadcast(doc, mustApply(t, doc, ops.KindSetText, "b", ops.Params{Text: "x"}))

	if !reflect.DeepEqual(order, []string{"first", "second", "third"}) {
		t.Fatalf("delivery order = %v", order)
	}
}

func TestOnUpdateObservesEveryNewValue(t *testing.T) {
	doc := testDoc()
	reg := NewRegistry()
	var updates []any
	p := NewMarkdownView("md", "page1", func(data any) { updates = append(updates, data) })
	if err := reg.Register(p, doc); err != nil {
		t.Fatalf("register: %v", err)
	}

	reg.Broadcast(doc, mustApply(t, doc, ops.KindSetText, "b", ops.Params{Text: "Buy oat milk"}))

	if len(updates) != 2 {
		t.Fatalf("got %d updates, want initial + broadcast", len(updates))
	}
	md := updates[1].(string)
	if want := "  - [ ] Buy oat milk\n"; !strings.Contains(md, want) {
		t.Fatalf("markdown missing %q:\n%s", want, md)
	}
}

func TestDropPageDestroysItsProjections(t *testing.T) {
	doc := testDoc()
	other := testDoc()
	other.ID = "page2"

	reg := NewRegistry()
	p1 := NewFlatListView("v1", "page1", nil)
	p2 := NewFlatListView("v2", "page2", nil)
	if err := reg.Register(p1, doc); err != nil {
		t.Fatalf("register p1: %v", err)
	}
	if err := reg.Register(p2, other); err != nil {
		t.Fatalf("register p2: %v", err)
	}

	reg.DropPage("page1")

	if p1.State() != StateDestroyed {
		t.Fatal("page1 projection survived DropPage")
	}
	if p2.State() != StateActive {
		t.Fatal("page2 projection destroyed by unrelated DropPage")
	}
}
