// Package ops defines the semantic operation vocabulary and applies
// operations to the canonical document tree.
//
// Operations are the only sanctioned mutation path: UI actions and the
// markdown diff parser both construct Operation values and hand them to
// Apply. An operation either commits fully or leaves the tree unchanged.
package ops

import (
	"strings"

	"github.com/mjelva/tavle/internal/apperr"
	"github.com/mjelva/tavle/internal/models"
)

// Kind enumerates the operation vocabulary.
type Kind string

const (
	KindCreate      Kind = "create"
	KindDelete      Kind = "delete"
	KindMove        Kind = "move"
	KindSetText     Kind = "setText"
	KindSetProperty Kind = "setProperty"
)

// Params carries the kind-specific payload of an operation. Unused fields
// are ignored by Apply.
type Params struct {
	// create: item variant and initial payload. Item, when non-nil,
	// seeds text/completed/props; a missing ID is generated at apply time.
	Type models.ItemType `json:"type,omitempty"`
	Item *models.Item    `json:"item,omitempty"`

	// create/move: target position. An empty GroupID targets the
	// document's first group. Index -1 appends.
	GroupID  string  `json:"groupId,omitempty"`
	ParentID *string `json:"parentId,omitempty"`
	Index    int     `json:"index"`

	// setText.
	Text string `json:"text,omitempty"`

	// setProperty.
	Property string `json:"property,omitempty"`
	Value    any    `json:"value,omitempty"`

	// Cascade makes setProperty("completed") flow to every descendant in
	// the same logical step (header-checkbox toggle semantics).
	Cascade bool `json:"cascade,omitempty"`
}

// Operation is an immutable record describing one intended mutation.
type Operation struct {
	Kind   Kind   `json:"op"`
	ItemID string `json:"itemId,omitempty"`
	PageID string `json:"pageId,omitempty"`
	Params Params `json:"params"`
}

// New validates the structural shape of an operation and returns it, or nil
// with apperr.ErrInvalidOperation. Semantic validation (does the item
// exist, would the move cycle) happens in Apply against a concrete tree.
func New(kind Kind, itemID string, params Params) (*Operation, error) {
	switch kind {
	case KindCreate:
		if params.Type == "" && (params.Item == nil || params.Item.Type == "") {
			return nil, apperr.ErrInvalidOperation
		}
	case KindDelete, KindMove:
		if strings.TrimSpace(itemID) == "" {
			return nil, apperr.ErrInvalidOperation
		}
	case KindSetText:
		if strings.TrimSpace(itemID) == "" {
			return nil, apperr.ErrInvalidOperation
		}
	case KindSetProperty:
		if strings.TrimSpace(itemID) == "" || strings.TrimSpace(params.Property) == "" {
			return nil, apperr.ErrInvalidOperation
		}
	default:
		return nil, apperr.ErrInvalidOperation
	}
	return &Operation{Kind: kind, ItemID: itemID, Params: params}, nil
}
