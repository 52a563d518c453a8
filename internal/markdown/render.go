package markdown

import (
	"strings"

	"github.com/mjelva/tavle/internal/hierarchy"
	"github.com/mjelva/tavle/internal/models"
)

// Ref ties one rendered block back to its source: the item (or group) the
// block was generated from. The diff parser uses refs to resolve edited
// blocks to item ids ("prior original-line tracking").
type Ref struct {
	ItemID  string // empty for title/group blocks
	GroupID string
}

// Render returns the document's markdown projection.
func Render(doc *models.Document) string {
	md, _ := RenderWithRefs(doc)
	return md
}

// RenderWithRefs renders the document and returns, in parallel, one Ref
// per logical block in the output. Items are emitted root-first with
// children nested beneath their parent at two spaces per level.
func RenderWithRefs(doc *models.Document) (string, []Ref) {
	var sb strings.Builder
	var refs []Ref

	sb.WriteString("# " + doc.Title + "\n")
	refs = append(refs, Ref{})

	for gi := range doc.Groups {
		g := &doc.Groups[gi]
		sb.WriteString("\n## " + g.Title + "\n")
		refs = append(refs, Ref{GroupID: g.ID})

		if len(g.Items) == 0 {
			continue
		}
		sb.WriteString("\n")

		idx := hierarchy.Build(g.Items)
		var emit func(items []models.Item, depth int)
		emit = func(items []models.Item, depth int) {
			for _, it := range items {
				sb.WriteString(HandlerFor(it.Type).Line(it, depth) + "\n")
				refs = append(refs, Ref{ItemID: it.ID, GroupID: g.ID})
				emit(idx.Children(it.ID), depth+1)
			}
		}
		emit(idx.Roots(), 0)
	}

	return sb.String(), refs
}
