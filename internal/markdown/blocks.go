// Package markdown renders the canonical document tree to markdown and
// splits markdown text into logical blocks for diffing.
package markdown

import (
	"regexp"
	"strings"
)

// BlockKind classifies one logical block of a markdown document.
type BlockKind string

const (
	BlockTitle    BlockKind = "title"    // "# ..."
	BlockGroup    BlockKind = "group"    // "## ..."
	BlockCheckbox BlockKind = "checkbox" // "- [ ] ..." / "- [x] ..."
	BlockListItem BlockKind = "listitem" // "- ..."
	BlockCode     BlockKind = "code"     // fenced block, kept whole
	BlockText     BlockKind = "text"     // anything else, non-blank
)

var checkboxRe = regexp.MustCompile(`^(\s*)- \[([ xX])\] ?(.*)$`)
var listItemRe = regexp.MustCompile(`^(\s*)- (.*)$`)

// Block is one logical unit of a markdown document: a structural marker
// (title, group header), a content line (checkbox, list item), or a fenced
// code block kept as a single unit.
type Block struct {
	Kind      BlockKind
	Text      string // content without markers
	Completed bool   // checkbox state, when Kind is BlockCheckbox
	Depth     int    // nesting level from indentation (2 spaces per level)
	Raw       string // original text of the block
}

// Identity is the equality key used by the diff alignment: blocks with the
// same identity are considered the same logical content.
func (b Block) Identity() string {
	marker := ""
	if b.Kind == BlockCheckbox && b.Completed {
		marker = "x"
	}
	return string(b.Kind) + "\x00" + marker + "\x00" + b.Text
}

// Split breaks markdown text into logical blocks. Blank lines separate
// blocks but produce none themselves. Fenced code blocks (```...```)
// become a single BlockCode.
func Split(md string) []Block {
	var out []Block
	lines := strings.Split(md, "\n")

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		switch {
		case strings.HasPrefix(trimmed, "```"):
			// Collect until the closing fence (or end of input).
			var body []string
			raw := []string{line}
			for i++; i < len(lines); i++ {
				raw = append(raw, lines[i])
				if strings.HasPrefix(strings.TrimSpace(lines[i]), "```") {
					break
				}
				body = append(body, lines[i])
			}
			out = append(out, Block{
				Kind: BlockCode,
				Text: strings.Join(body, "\n"),
				Raw:  strings.Join(raw, "\n"),
			})

		case strings.HasPrefix(trimmed, "## "):
			out = append(out, Block{Kind: BlockGroup, Text: strings.TrimSpace(trimmed[3:]), Raw: line})

		case strings.HasPrefix(trimmed, "# "):
			out = append(out, Block{Kind: BlockTitle, Text: strings.TrimSpace(trimmed[2:]), Raw: line})

		default:
			if m := checkboxRe.FindStringSubmatch(line); m != nil {
				out = append(out, Block{
					Kind:      BlockCheckbox,
					Text:      m[3],
					Completed: m[2] == "x" || m[2] == "X",
					Depth:     indentDepth(m[1]),
					Raw:       line,
				})
				continue
			}
			if m := listItemRe.FindStringSubmatch(line); m != nil {
				out = append(out, Block{
					Kind:  BlockListItem,
					Text:  m[2],
					Depth: indentDepth(m[1]),
					Raw:   line,
				})
				continue
			}
			out = append(out, Block{Kind: BlockText, Text: trimmed, Raw: line})
		}
	}
	return out
}

func indentDepth(indent string) int {
	// Tabs count as one level, otherwise two spaces per level.
	tabs := strings.Count(indent, "\t")
	if tabs > 0 {
		return tabs
	}
	return len(indent) / 2
}
