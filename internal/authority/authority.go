// Package authority tracks which view, if any, is the write source for a
// document, and guards write-backs against re-entrant update loops.
package authority

import "sync"

// Mode says which representation is treated as truth for a view.
type Mode string

const (
	// Canonical: the structured tree is truth; the view is a read-only
	// projection. This is the default for every (page, view) pair.
	Canonical Mode = "CANONICAL"
	// MarkdownSource: the view's freeform markdown is truth; edits are
	// diffed back into canonical operations. At most one view per page.
	MarkdownSource Mode = "MARKDOWN_SOURCE"
)

type key struct {
	pageID string
	viewID string
}

// Manager is the process-wide registry of view authority. Safe for
// concurrent use.
type Manager struct {
	mu     sync.Mutex
	modes  map[key]Mode
	guards map[key]bool
}

// NewManager creates an empty authority registry.
func NewManager() *Manager {
	return &Manager{
		modes:  make(map[key]Mode),
		guards: make(map[key]bool),
	}
}

// Get returns the mode for (pageID, viewID), defaulting to Canonical.
func (m *Manager) Get(pageID, viewID string) Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mode, ok := m.modes[key{pageID, viewID}]; ok {
		return mode
	}
	return Canonical
}

// Set assigns mode to (pageID, viewID). Granting MarkdownSource revokes any
// prior markdown-authoritative view on the same page, keeping the at most
// one markdown source invariant. Other views' modes are untouched.
func (m *Manager) Set(pageID, viewID string, mode Mode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mode == MarkdownSource {
		for k, v := range m.modes {
			if k.pageID == pageID && v == MarkdownSource {
				delete(m.modes, k)
			}
		}
	}
	if mode == Canonical {
		// Canonical is the default; store nothing.
		delete(m.modes, key{pageID, viewID})
		return
	}
	m.modes[key{pageID, viewID}] = mode
}

// IsAuthoritative reports whether (pageID, viewID) currently holds mode.
func (m *Manager) IsAuthoritative(pageID, viewID string, mode Mode) bool {
	return m.Get(pageID, viewID) == mode
}

// MarkdownSourceView returns the view holding markdown authority for the
// page, if any.
func (m *Manager) MarkdownSourceView(pageID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range m.modes {
		if k.pageID == pageID && v == MarkdownSource {
			return k.viewID, true
		}
	}
	return "", false
}

// Drop removes every record for the page. Called on document close.
func (m *Manager) Drop(pageID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.modes {
		if k.pageID == pageID {
			delete(m.modes, k)
		}
	}
	for k := range m.guards {
		if k.pageID == pageID {
			delete(m.guards, k)
		}
	}
}

// Guard acquires the circular-update guard for (pageID, viewID) and returns
// a release func, or ok=false when the guard is already held (a re-entrant
// update is in flight and must be suppressed).
//
// The release func must run on every exit path, including errors; callers
// defer it immediately:
//
//	release, ok := mgr.Guard(pageID, viewID)
//	if !ok {
//		return nil // suppressed re-entrant update
//	}
//	defer release()
func (m *Manager) Guard(pageID, viewID string) (release func(), ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key{pageID, viewID}
	if m.guards[k] {
		return nil, false
	}
	m.guards[k] = true
	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.guards, k)
			m.mu.Unlock()
		})
	}, true
}

// Guarded reports whether the circular-update guard is held.
func (m *Manager) Guarded(pageID, viewID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.guards[key{pageID, viewID}]
}
