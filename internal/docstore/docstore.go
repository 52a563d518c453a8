// Package docstore owns the in-memory working set of open documents.
//
// It is the explicit context object that ties a document to its undo
// ledger, the projection registry, and the authority manager. Every
// mutation of an open document routes through Apply/Undo/Redo here, which
// serialises writers and broadcasts the applied operation to projections
// before returning (single-writer, synchronous fan-out).
package docstore

import (
	"fmt"
	"sync"

	"github.com/mjelva/tavle/internal/apperr"
	"github.com/mjelva/tavle/internal/authority"
	"github.com/mjelva/tavle/internal/ledger"
	"github.com/mjelva/tavle/internal/models"
	"github.com/mjelva/tavle/internal/ops"
	"github.com/mjelva/tavle/internal/projection"
)

// Page is one open document together with its mutation history.
type Page struct {
	Doc    *models.Document
	Ledger *ledger.Ledger
}

// Store holds all open documents.
type Store struct {
	mu    sync.Mutex
	pages map[string]*Page

	projections *projection.Registry
	auth        *authority.Manager
	historyMax  int
}

// New creates an empty store. historyMax bounds each document's undo
// stack (0 means unbounded).
func New(historyMax int) *Store {
	return &Store{
		pages:       make(map[string]*Page),
		projections: projection.NewRegistry(),
		auth:        authority.NewManager(),
		historyMax:  historyMax,
	}
}

// Projections returns the store's projection registry.
func (s *Store) Projections() *projection.Registry { return s.projections }

// Authority returns the store's authority manager.
func (s *Store) Authority() *authority.Manager { return s.auth }

// Open registers doc as an open page. Opening an already-open document
// returns the existing page; history survives a re-open.
func (s *Store) Open(doc *models.Document) *Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.pages[doc.ID]; ok {
		return p
	}
	p := &Page{Doc: doc, Ledger: ledger.New(s.historyMax)}
	s.pages[doc.ID] = p
	return p
}

// Get returns the open page for id.
func (s *Store) Get(id string) (*Page, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pages[id]
	return p, ok
}

// Snapshot returns a deep copy of an open document, safe to read without
// racing the single-writer path.
func (s *Store) Snapshot(id string) (*models.Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pages[id]
	if !ok {
		return nil, false
	}
	return p.Doc.Clone(), true
}

// Close drops the page and everything attached to it: projections are
// destroyed and authority grants for the document are cleared.
func (s *Store) Close(id string) {
	s.mu.Lock()
	delete(s.pages, id)
	s.mu.Unlock()

	s.projections.DropPage(id)
	s.auth.Drop(id)
}

// Replace swaps the canonical tree of an open page, keeping its ledger.
// Used when a document is rewritten wholesale (PUT with full body,
// external file change). The history is cleared: old inverse data no
// longer matches the new tree.
func (s *Store) Replace(doc *models.Document) *Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pages[doc.ID]
	if !ok {
		p = &Page{Ledger: ledger.New(s.historyMax)}
		s.pages[doc.ID] = p
	} else {
		p.Ledger = ledger.New(s.historyMax)
	}
	p.Doc = doc
	// Registered projections were derived from the old tree.
	s.projections.RefreshPage(doc)
	return p
}

// RegisterView activates p against its page's canonical tree. The
// initial projection is computed under the store mutex so registration
// cannot race a writer's fan-out.
func (s *Store) RegisterView(p *projection.Projection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	page, ok := s.pages[p.PageID()]
	if !ok {
		return fmt.Errorf("docstore: page %s: %w", p.PageID(), apperr.ErrNotFound)
	}
	return s.projections.Register(p, page.Doc)
}

// ViewData reads the projection's cached value under the store mutex,
// serialised against the writers that update it.
func (s *Store) ViewData(p *projection.Projection) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return p.Data()
}

// Apply runs one semantic operation against its document, records it in
// the ledger, and broadcasts it to projections. The operation's PageID
// selects the document.
func (s *Store) Apply(op *ops.Operation) (*ops.Result, error) {
	if op == nil {
		return nil, apperr.ErrInvalidOperation
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pages[op.PageID]
	if !ok {
		return nil, fmt.Errorf("docstore: page %s: %w", op.PageID, apperr.ErrNotFound)
	}
	res, err := ops.Apply(p.Doc, op)
	if err != nil {
		return nil, err
	}
	p.Ledger.Record(res)

	// Fan out under the lock: projections read the tree the writer just
	// mutated, and holding the mutex keeps broadcasts in apply order.
	s.projections.Broadcast(p.Doc, res.Op)
	return res, nil
}

// Undo reverts the most recent operation on the page. Returns the undone
// operation, or nil when there is nothing to undo.
func (s *Store) Undo(pageID string) (*ops.Operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pages[pageID]
	if !ok {
		return nil, fmt.Errorf("docstore: page %s: %w", pageID, apperr.ErrNotFound)
	}
	op := p.Ledger.Undo(p.Doc)
	if op != nil {
		// Projections cannot patch an inverse they never saw; a full
		// refresh keeps them honest.
		s.projections.RefreshPage(p.Doc)
	}
	return op, nil
}

// Redo reapplies the most recently undone operation.
func (s *Store) Redo(pageID string) (*ops.Operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pages[pageID]
	if !ok {
		return nil, fmt.Errorf("docstore: page %s: %w", pageID, apperr.ErrNotFound)
	}
	op := p.Ledger.Redo(p.Doc)
	if op != nil {
		s.projections.RefreshPage(p.Doc)
	}
	return op, nil
}
