package projection

import (
	"github.com/mjelva/tavle/internal/hierarchy"
	"github.com/mjelva/tavle/internal/markdown"
	"github.com/mjelva/tavle/internal/models"
	"github.com/mjelva/tavle/internal/ops"
)

// Row is one entry of the flat list view: depth-first item order with
// indentation levels, the shape a plain list renderer consumes.
type Row struct {
	ID        string          `json:"id"`
	GroupID   string          `json:"groupId"`
	Type      models.ItemType `json:"type"`
	Text      string          `json:"text"`
	Completed bool            `json:"completed"`
	Indent    int             `json:"indent"`
}

// Card is one entry of a board column.
type Card struct {
	ID        string          `json:"id"`
	Type      models.ItemType `json:"type"`
	Text      string          `json:"text"`
	Completed bool            `json:"completed"`
	Indent    int             `json:"indent"`
}

// Column is one board lane, mirroring a canonical group.
type Column struct {
	GroupID string `json:"groupId"`
	Title   string `json:"title"`
	Cards   []Card `json:"cards"`
}

// NewMarkdownView projects the document as its markdown rendering. The
// markdown text is a whole-document artifact, so this view carries no
// incremental strategy and re-renders on every relevant operation.
func NewMarkdownView(viewID, pageID string, onUpdate func(data any)) *Projection {
	return New(Config{
		ViewID: viewID,
		PageID: pageID,
		Project: func(doc *models.Document) (any, error) {
			return markdown.Render(doc), nil
		},
		OnUpdate: onUpdate,
	})
}

// NewFlatListView projects the document as a flat, depth-first row list.
// Text edits and completion toggles patch the affected rows in place;
// structural operations re-project.
func NewFlatListView(viewID, pageID string, onUpdate func(data any)) *Projection {
	return New(Config{
		ViewID: viewID,
		PageID: pageID,
		Project: func(doc *models.Document) (any, error) {
			var rows []Row
			for gi := range doc.Groups {
				g := &doc.Groups[gi]
				idx := hierarchy.Build(g.Items)
				var walk func(parentID string, indent int)
				walk = func(parentID string, indent int) {
					for _, it := range idx.Children(parentID) {
						rows = append(rows, Row{
							ID:        it.ID,
							GroupID:   g.ID,
							Type:      it.Type,
							Text:      it.Text,
							Completed: it.Completed,
							Indent:    indent,
						})
						walk(it.ID, indent+1)
					}
				}
				walk("", 0)
			}
			return rows, nil
		},
		Apply: func(doc *models.Document, op *ops.Operation, current any) (any, error) {
			rows, ok := current.([]Row)
			if !ok {
				return nil, errFullRefresh
			}
			patch, err := textPatch(doc, op)
			if err != nil {
				return nil, err
			}
			for i := range rows {
				if p, ok := patch[rows[i].ID]; ok {
					rows[i].Text = p.text
					rows[i].Completed = p.completed
				}
			}
			return rows, nil
		},
		OnUpdate: onUpdate,
	})
}

// NewBoardView projects the document as board columns, one per group.
// Like the flat list, only content edits are patched incrementally.
func NewBoardView(viewID, pageID string, onUpdate func(data any)) *Projection {
	return New(Config{
		ViewID: viewID,
		PageID: pageID,
		Project: func(doc *models.Document) (any, error) {
			cols := make([]Column, 0, len(doc.Groups))
			for gi := range doc.Groups {
				g := &doc.Groups[gi]
				col := Column{GroupID: g.ID, Title: g.Title}
				idx := hierarchy.Build(g.Items)
				var walk func(parentID string, indent int)
				walk = func(parentID string, indent int) {
					for _, it := range idx.Children(parentID) {
						col.Cards = append(col.Cards, Card{
							ID:        it.ID,
							Type:      it.Type,
							Text:      it.Text,
							Completed: it.Completed,
							Indent:    indent,
						})
						walk(it.ID, indent+1)
					}
				}
				walk("", 0)
				cols = append(cols, col)
			}
			return cols, nil
		},
		Apply: func(doc *models.Document, op *ops.Operation, current any) (any, error) {
			cols, ok := current.([]Column)
			if !ok {
				return nil, errFullRefresh
			}
			patch, err := textPatch(doc, op)
			if err != nil {
				return nil, err
			}
			for ci := range cols {
				for i := range cols[ci].Cards {
					if p, ok := patch[cols[ci].Cards[i].ID]; ok {
						cols[ci].Cards[i].Text = p.text
						cols[ci].Cards[i].Completed = p.completed
					}
				}
			}
			return cols, nil
		},
		OnUpdate: onUpdate,
	})
}

type contentPatch struct {
	text      string
	completed bool
}

// textPatch maps item ids to their post-operation content for the
// operations the structured views can patch without re-projecting. Any
// structural change requests a full refresh.
func textPatch(doc *models.Document, op *ops.Operation) (map[string]contentPatch, error) {
	switch op.Kind {
	case ops.KindSetText:
	case ops.KindSetProperty:
		// Cascaded toggles touch a subtree the patch would have to
		// re-derive; re-project instead.
		if op.Params.Cascade {
			return nil, errFullRefresh
		}
	default:
		return nil, errFullRefresh
	}
	it := doc.FindItem(op.ItemID)
	if it == nil {
		return nil, errFullRefresh
	}
	return map[string]contentPatch{
		it.ID: {text: it.Text, completed: it.Completed},
	}, nil
}
