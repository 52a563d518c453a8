package markdown

import (
	"fmt"
	"strings"

	"github.com/mjelva/tavle/internal/models"
)

// Handler converts one item variant to and from its markdown form. A
// registry keyed by item type replaces the ever-growing type switch the
// converters would otherwise become.
type Handler interface {
	// Line renders the item as one markdown block at the given depth.
	Line(it models.Item, depth int) string
	// Item builds an item payload (no id) from a parsed block.
	Item(b Block) models.Item
}

var registry = map[models.ItemType]Handler{}

// Register installs a handler for an item type. Later registrations
// replace earlier ones.
func Register(t models.ItemType, h Handler) {
	registry[t] = h
}

// HandlerFor returns the handler for t, falling back to the plain list
// handler for unregistered types so an unknown variant still renders.
func HandlerFor(t models.ItemType) Handler {
	if h, ok := registry[t]; ok {
		return h
	}
	return plainHandler{itemType: models.TypeNote}
}

// ItemForBlock maps a parsed block to an item payload using the checkbox
// and plain handlers.
func ItemForBlock(b Block) models.Item {
	switch b.Kind {
	case BlockCheckbox:
		return HandlerFor(models.TypeTask).Item(b)
	case BlockCode:
		return HandlerFor(models.TypeCode).Item(b)
	default:
		return HandlerFor(models.TypeNote).Item(b)
	}
}

func indent(depth int) string {
	return strings.Repeat("  ", depth)
}

// checkboxHandler renders "- [ ]"/"- [x]" lines. Shared by task,
// header-checkbox, and multi-checkbox variants.
type checkboxHandler struct {
	itemType models.ItemType
}

func (h checkboxHandler) Line(it models.Item, depth int) string {
	mark := " "
	if it.Completed {
		mark = "x"
	}
	return fmt.Sprintf("%s- [%s] %s", indent(depth), mark, it.Text)
}

func (h checkboxHandler) Item(b Block) models.Item {
	return models.Item{Type: h.itemType, Text: b.Text, Completed: b.Completed}
}

// plainHandler renders "- text" lines. Default for note-like variants and
// the fallback for payload types whose detail lives in Props (tracker,
// timer, counter, rating, calendar, mood, ...).
type plainHandler struct {
	itemType models.ItemType
}

func (h plainHandler) Line(it models.Item, depth int) string {
	return fmt.Sprintf("%s- %s", indent(depth), it.Text)
}

func (h plainHandler) Item(b Block) models.Item {
	return models.Item{Type: h.itemType, Text: b.Text}
}

// codeHandler renders fenced code blocks. The language tag rides in
// Props["lang"].
type codeHandler struct{}

func (codeHandler) Line(it models.Item, _ int) string {
	lang := ""
	if l, ok := it.Props["lang"].(string); ok {
		lang = l
	}
	return fmt.Sprintf("```%s\n%s\n```", lang, it.Text)
}

func (codeHandler) Item(b Block) models.Item {
	return models.Item{Type: models.TypeCode, Text: b.Text}
}

// valueHandler renders "- text: value" for counter/rating/tracker style
// items that carry a scalar in Props.
type valueHandler struct {
	itemType models.ItemType
	propKey  string
}

func (h valueHandler) Line(it models.Item, depth int) string {
	if v, ok := it.Props[h.propKey]; ok {
		return fmt.Sprintf("%s- %s: %v", indent(depth), it.Text, v)
	}
	return fmt.Sprintf("%s- %s", indent(depth), it.Text)
}

func (h valueHandler) Item(b Block) models.Item {
	return models.Item{Type: h.itemType, Text: b.Text}
}

func init() {
	Register(models.TypeTask, checkboxHandler{itemType: models.TypeTask})
	Register(models.TypeHeaderCheckbox, checkboxHandler{itemType: models.TypeHeaderCheckbox})
	Register(models.TypeMultiCheckbox, checkboxHandler{itemType: models.TypeMultiCheckbox})
	Register(models.TypeNote, plainHandler{itemType: models.TypeNote})
	Register(models.TypeImage, plainHandler{itemType: models.TypeImage})
	Register(models.TypeAudio, plainHandler{itemType: models.TypeAudio})
	Register(models.TypeTimeLog, plainHandler{itemType: models.TypeTimeLog})
	Register(models.TypeCalendar, plainHandler{itemType: models.TypeCalendar})
	Register(models.TypeTable, plainHandler{itemType: models.TypeTable})
	Register(models.TypeMood, plainHandler{itemType: models.TypeMood})
	Register(models.TypeCode, codeHandler{})
	Register(models.TypeCounter, valueHandler{itemType: models.TypeCounter, propKey: "count"})
	Register(models.TypeRating, valueHandler{itemType: models.TypeRating, propKey: "rating"})
	Register(models.TypeTracker, valueHandler{itemType: models.TypeTracker, propKey: "value"})
	Register(models.TypeTimer, valueHandler{itemType: models.TypeTimer, propKey: "elapsed"})
}
