// Package apperr defines the sentinel errors shared across layers.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")

	// Operation-layer errors. Apply never partially commits: when one of
	// these is returned the document tree is unchanged.
	ErrInvalidOperation = errors.New("invalid operation")
	ErrInvalidParent    = errors.New("invalid parent")
	ErrCycleDetected    = errors.New("cycle detected")
	ErrItemNotFound     = errors.New("item not found")

	// ErrDiffAmbiguous reports that the markdown diff could not confidently
	// match old and new blocks; callers fall back to delete+create.
	ErrDiffAmbiguous = errors.New("diff ambiguous")

	// ErrNotAuthoritative reports a markdown write-back from a view that
	// does not hold markdown authority for the document.
	ErrNotAuthoritative = errors.New("view is not markdown-authoritative")
)
