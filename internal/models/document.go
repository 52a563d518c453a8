// Package models defines the domain types for Tavle.
package models

import "time"

// ItemType identifies the content variant of an Item.
type ItemType string

const (
	TypeTask           ItemType = "task"
	TypeHeaderCheckbox ItemType = "header-checkbox"
	TypeMultiCheckbox  ItemType = "multi-checkbox"
	TypeNote           ItemType = "note"
	TypeCode           ItemType = "code"
	TypeTracker        ItemType = "tracker"
	TypeTimer          ItemType = "timer"
	TypeCounter        ItemType = "counter"
	TypeRating         ItemType = "rating"
	TypeImage          ItemType = "image"
	TypeAudio          ItemType = "audio"
	TypeTimeLog        ItemType = "time-log"
	TypeCalendar       ItemType = "calendar"
	TypeTable          ItemType = "table"
	TypeMood           ItemType = "mood"
)

// Item is the atomic content unit of a document.
//
// Hierarchy is expressed through ParentID only: children are derived from
// the flat item list, never stored on the parent. Re-parenting is therefore
// a single field update.
type Item struct {
	ID        string   `json:"id"`
	Type      ItemType `json:"type"`
	Text      string   `json:"text,omitempty"`
	Completed bool     `json:"completed,omitempty"`

	// ParentID, when set, must reference another item in the same group.
	ParentID *string `json:"parentId,omitempty"`

	// Props holds type-specific payload fields (timer duration, counter
	// value, table cells, audio path, ...). Opaque to the operation layer
	// except for named setProperty targets.
	Props map[string]any `json:"props,omitempty"`
}

// Clone returns a deep copy of the item.
func (it Item) Clone() Item {
	out := it
	if it.ParentID != nil {
		pid := *it.ParentID
		out.ParentID = &pid
	}
	if it.Props != nil {
		props := make(map[string]any, len(it.Props))
		for k, v := range it.Props {
			props[k] = v
		}
		out.Props = props
	}
	return out
}

// Group is an ordered collection of items within a document.
// The item list is flat; nesting lives in Item.ParentID.
type Group struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Items []Item `json:"items"`
}

// FindItem returns a pointer to the item with the given id, or nil.
func (g *Group) FindItem(id string) *Item {
	for i := range g.Items {
		if g.Items[i].ID == id {
			return &g.Items[i]
		}
	}
	return nil
}

// ItemIndex returns the position of the item with the given id, or -1.
func (g *Group) ItemIndex(id string) int {
	for i := range g.Items {
		if g.Items[i].ID == id {
			return i
		}
	}
	return -1
}

// Document is the canonical tree: the single source of truth that view
// projections are derived from.
type Document struct {
	ID     string  `json:"id"`
	Title  string  `json:"title"`
	Groups []Group `json:"groups"`

	// ViewMode records the last format renderer used (kanban, document,
	// grid, ...). Cosmetic; carried through persistence untouched.
	ViewMode string `json:"viewMode,omitempty"`

	// MarkdownSnapshot caches the last markdown text seen by a
	// markdown-authoritative view, and doubles as the opaque fallback when
	// a diff could not be translated into operations.
	MarkdownSnapshot string `json:"markdownSnapshot,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FindGroup returns a pointer to the group with the given id, or nil.
func (d *Document) FindGroup(id string) *Group {
	for i := range d.Groups {
		if d.Groups[i].ID == id {
			return &d.Groups[i]
		}
	}
	return nil
}

// GroupOf returns the group containing the item with the given id, or nil.
func (d *Document) GroupOf(itemID string) *Group {
	for i := range d.Groups {
		if d.Groups[i].FindItem(itemID) != nil {
			return &d.Groups[i]
		}
	}
	return nil
}

// FindItem searches every group for the item with the given id.
func (d *Document) FindItem(itemID string) *Item {
	for i := range d.Groups {
		if it := d.Groups[i].FindItem(itemID); it != nil {
			return it
		}
	}
	return nil
}

// Clone returns a deep copy of the document. Nil slices stay nil so a
// clone compares equal to its source under reflect.DeepEqual.
func (d *Document) Clone() *Document {
	out := *d
	if d.Groups != nil {
		out.Groups = make([]Group, len(d.Groups))
		for i, g := range d.Groups {
			cg := g
			if g.Items != nil {
				cg.Items = make([]Item, len(g.Items))
				for j, it := range g.Items {
					cg.Items[j] = it.Clone()
				}
			}
			out.Groups[i] = cg
		}
	}
	return &out
}

// DocumentMetadata is a lightweight representation returned by list operations.
type DocumentMetadata struct {
	ID        string    `json:"id"`
	Title     string    `json:"title,omitempty"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
