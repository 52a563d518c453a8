package models

import (
	"reflect"
	"testing"
)

func strptr(s string) *string { return &s }

func TestItemCloneIsDeep(t *testing.T) {
	it := Item{
		ID:       "a",
		Type:     TypeTask,
		Text:     "Buy milk",
		ParentID: strptr("p"),
		Props:    map[string]any{"color": "blue"},
	}
	c := it.Clone()
	*c.ParentID = "q"
	c.Props["color"] = "red"

	if *it.ParentID != "p" || it.Props["color"] != "blue" {
		t.Errorf("mutating the clone leaked into the original: %+v", it)
	}
}

func TestDocumentCloneDeepEqual(t *testing.T) {
	docs := []*Document{
		{ID: "empty"},
		{ID: "bare-group", Groups: []Group{{ID: "g1", Title: "G1"}}},
		{ID: "full", Groups: []Group{{ID: "g1", Items: []Item{
			{ID: "a", Type: TypeHeaderCheckbox, Text: "Shopping"},
			{ID: "b", Type: TypeTask, Text: "Buy milk", ParentID: strptr("a")},
		}}}},
	}
	for _, d := range docs {
		if c := d.Clone(); !reflect.DeepEqual(d, c) {
			t.Errorf("%s: clone differs from source:\n got %+v\nwant %+v", d.ID, c, d)
		}
	}
}

func TestDocumentCloneIndependence(t *testing.T) {
	d := &Document{ID: "p", Groups: []Group{{ID: "g1", Items: []Item{
		{ID: "a", Type: TypeTask, Text: "original"},
	}}}}
	c := d.Clone()
	c.Groups[0].Items[0].Text = "changed"

	if d.Groups[0].Items[0].Text != "original" {
		t.Error("mutating the clone leaked into the original")
	}
}
