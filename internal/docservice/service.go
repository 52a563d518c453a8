// Package docservice coordinates storage, the search index, and the
// in-memory document store behind one service surface.
//
// Writes follow a fixed pipeline: apply to the canonical tree, record in
// the ledger, broadcast to projections, stream over SSE, then persist on a
// debounce timer. The markdown round-trip enters the same pipeline through
// ApplyMarkdown.
package docservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mjelva/tavle/internal/apperr"
	"github.com/mjelva/tavle/internal/authority"
	"github.com/mjelva/tavle/internal/checksum"
	"github.com/mjelva/tavle/internal/docstore"
	"github.com/mjelva/tavle/internal/hierarchy"
	"github.com/mjelva/tavle/internal/index"
	"github.com/mjelva/tavle/internal/markdown"
	"github.com/mjelva/tavle/internal/mddiff"
	"github.com/mjelva/tavle/internal/models"
	"github.com/mjelva/tavle/internal/ops"
	"github.com/mjelva/tavle/internal/projection"
	"github.com/mjelva/tavle/internal/sse"
	"github.com/mjelva/tavle/internal/storage"
)

// DocumentDetail is the full representation of a document.
type DocumentDetail struct {
	Document *models.Document `json:"document"`
	Checksum string           `json:"checksum"`
	CanUndo  bool             `json:"canUndo"`
	CanRedo  bool             `json:"canRedo"`
}

// Service coordinates storage, index, and docstore operations.
type Service struct {
	store  storage.Provider
	db     index.DocumentIndex
	docs   *docstore.Store
	broker *sse.Broker
	logger *slog.Logger

	saveDelay time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
	views  map[string]*projection.Projection
}

// NewService creates a new document service. broker may be nil when no SSE
// fan-out is wanted (MCP-only mode, tests).
func NewService(store storage.Provider, db index.DocumentIndex, docs *docstore.Store, broker *sse.Broker, logger *slog.Logger, saveDelay time.Duration) *Service {
	if saveDelay <= 0 {
		saveDelay = 500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		db:        db,
		docs:      docs,
		broker:    broker,
		logger:    logger,
		saveDelay: saveDelay,
		timers:    make(map[string]*time.Timer),
		views:     make(map[string]*projection.Projection),
	}
}

// Docs exposes the underlying document store (projection registry,
// authority manager).
func (s *Service) Docs() *docstore.Store { return s.docs }

// GetDocument loads a document, opening it if needed.
func (s *Service) GetDocument(_ context.Context, id string) (*DocumentDetail, error) {
	p, err := s.open(id)
	if err != nil {
		return nil, err
	}
	return s.detail(id, p)
}

// CreateDocument persists a new document and indexes it. A missing id is
// generated; a document without groups gets one empty group so create
// operations have a target.
func (s *Service) CreateDocument(_ context.Context, doc *models.Document) (*DocumentDetail, error) {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if err := validateTree(doc); err != nil {
		return nil, err
	}
	if _, err := s.store.Read(storage.DocPath(doc.ID)); err == nil {
		return nil, apperr.ErrAlreadyExists
	}
	if len(doc.Groups) == 0 {
		doc.Groups = []models.Group{{ID: uuid.NewString(), Title: doc.Title}}
	}
	now := time.Now()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	if err := s.persist(doc); err != nil {
		return nil, err
	}
	p := s.docs.Open(doc)
	if s.broker != nil {
		s.broker.PublishDocEvent("created", doc.ID)
	}
	return s.detail(doc.ID, p)
}

// UpdateDocument replaces a document wholesale with optimistic
// concurrency. The undo history is cleared: inverse data recorded against
// the old tree no longer applies.
func (s *Service) UpdateDocument(_ context.Context, id string, doc *models.Document, ifMatch string) (*DocumentDetail, error) {
	// Settle any pending debounced save so If-Match compares against the
	// state the client actually saw.
	if _, ok := s.docs.Get(id); ok {
		if err := s.Flush(id); err != nil {
			return nil, err
		}
	}
	existing, err := s.store.Read(storage.DocPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	if ifMatch != "" && ifMatch != checksum.Sum(existing) {
		return nil, apperr.ErrConflict
	}
	if err := validateTree(doc); err != nil {
		return nil, err
	}
	doc.ID = id
	doc.UpdatedAt = time.Now()

	if err := s.persist(doc); err != nil {
		return nil, err
	}
	p := s.docs.Replace(doc)
	if s.broker != nil {
		s.broker.PublishDocEvent("updated", id)
	}
	return s.detail(id, p)
}

// DeleteDocument removes a document from storage, index, and the open set.
func (s *Service) DeleteDocument(_ context.Context, id string) error {
	s.cancelSave(id)
	s.docs.Close(id)
	if err := s.store.Delete(storage.DocPath(id)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperr.ErrNotFound
		}
		return err
	}
	if err := s.db.DeleteDocument(id); err != nil {
		return err
	}
	if s.broker != nil {
		s.broker.PublishDocEvent("deleted", id)
	}
	return nil
}

// ListDocuments returns paginated document metadata from the index.
func (s *Service) ListDocuments(_ context.Context, limit, offset int, sort string) ([]models.DocumentMetadata, int, error) {
	rows, total, err := s.db.ListDocuments(limit, offset, sort)
	if err != nil {
		return nil, 0, err
	}
	out := make([]models.DocumentMetadata, len(rows))
	for i, r := range rows {
		out[i] = models.DocumentMetadata{
			ID:        r.ID,
			Title:     r.Title,
			Checksum:  r.Checksum,
			UpdatedAt: r.UpdatedAt,
		}
	}
	return out, total, nil
}

// Search delegates full-text search over item text to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// ApplyOperation runs one semantic operation through the write pipeline.
func (s *Service) ApplyOperation(_ context.Context, op *ops.Operation) (*ops.Result, error) {
	if op == nil || op.PageID == "" {
		return nil, apperr.ErrInvalidOperation
	}
	if _, err := s.open(op.PageID); err != nil {
		return nil, err
	}
	res, err := s.docs.Apply(op)
	if err != nil {
		return nil, err
	}
	if s.broker != nil {
		s.broker.PublishOperation(op.PageID, res.Op)
	}
	s.scheduleSave(op.PageID)
	return res, nil
}

// Undo reverts the page's most recent operation. Returns nil when there
// is nothing to undo.
func (s *Service) Undo(_ context.Context, pageID string) (*ops.Operation, error) {
	if _, err := s.open(pageID); err != nil {
		return nil, err
	}
	op, err := s.docs.Undo(pageID)
	if err != nil || op == nil {
		return op, err
	}
	if s.broker != nil {
		s.broker.Publish(sse.Event{Type: "op.undone", Data: map[string]any{
			"pageId": pageID,
			"op":     op,
		}})
	}
	s.scheduleSave(pageID)
	return op, nil
}

// Redo reapplies the page's most recently undone operation.
func (s *Service) Redo(_ context.Context, pageID string) (*ops.Operation, error) {
	if _, err := s.open(pageID); err != nil {
		return nil, err
	}
	op, err := s.docs.Redo(pageID)
	if err != nil || op == nil {
		return op, err
	}
	if s.broker != nil {
		s.broker.PublishOperation(pageID, op)
	}
	s.scheduleSave(pageID)
	return op, nil
}

// View returns the projected data of one built-in view. The projection
// is registered on first use and kept live from then on, patched or
// refreshed by every subsequent operation on the page.
func (s *Service) View(_ context.Context, pageID, name string) (any, error) {
	if _, err := s.open(pageID); err != nil {
		return nil, err
	}
	p, err := s.viewProjection(pageID, name)
	if err != nil {
		return nil, err
	}
	return s.docs.ViewData(p), nil
}

// ViewNames lists the built-in views served by View.
func ViewNames() []string { return []string{"markdown", "list", "board"} }

func (s *Service) viewProjection(pageID, name string) (*projection.Projection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pageID + "\x00" + name
	// A close or wholesale replace destroys registered projections; a
	// destroyed entry is re-registered fresh.
	if p, ok := s.views[key]; ok && p.State() == projection.StateActive {
		return p, nil
	}
	viewID := "view:" + name
	var p *projection.Projection
	switch name {
	case "markdown":
		p = projection.NewMarkdownView(viewID, pageID, nil)
	case "list":
		p = projection.NewFlatListView(viewID, pageID, nil)
	case "board":
		p = projection.NewBoardView(viewID, pageID, nil)
	default:
		return nil, fmt.Errorf("docservice: view %q: %w", name, apperr.ErrNotFound)
	}
	if err := s.docs.RegisterView(p); err != nil {
		return nil, err
	}
	s.views[key] = p
	return p, nil
}

// Markdown renders the document's markdown projection.
func (s *Service) Markdown(_ context.Context, id string) (string, error) {
	if _, err := s.open(id); err != nil {
		return "", err
	}
	doc, _ := s.docs.Snapshot(id)
	return markdown.Render(doc), nil
}

// SetAuthority grants or revokes a view's markdown authority over a page.
func (s *Service) SetAuthority(_ context.Context, pageID, viewID string, mode authority.Mode) error {
	if mode != authority.Canonical && mode != authority.MarkdownSource {
		return apperr.ErrInvalidOperation
	}
	if _, err := s.open(pageID); err != nil {
		return err
	}
	s.docs.Authority().Set(pageID, viewID, mode)
	return nil
}

// ApplyMarkdown translates an edited markdown text into semantic
// operations and applies them. Only the page's markdown-authoritative
// view may write; a re-entrant call (a view echoing its own update) is
// silently suppressed by the circular-update guard.
//
// When the diff cannot be translated confidently, the raw markdown is
// stored as the document's snapshot instead of guessing at operations;
// fallback reports when that happened, including after a mid-sequence
// apply failure that left some operations already committed.
func (s *Service) ApplyMarkdown(_ context.Context, pageID, viewID, newMD string) (applied []*ops.Operation, fallback bool, err error) {
	if _, err := s.open(pageID); err != nil {
		return nil, false, err
	}
	auth := s.docs.Authority()
	if !auth.IsAuthoritative(pageID, viewID, authority.MarkdownSource) {
		return nil, false, fmt.Errorf("docservice: view %s on page %s: %w", viewID, pageID, apperr.ErrNotAuthoritative)
	}
	release, ok := auth.Guard(pageID, viewID)
	if !ok {
		return nil, false, nil
	}
	defer release()

	doc, _ := s.docs.Snapshot(pageID)
	oldMD, refs := markdown.RenderWithRefs(doc)

	parsed, err := mddiff.ParseDiff(oldMD, newMD, pageID, refs)
	if err != nil {
		if errors.Is(err, apperr.ErrDiffAmbiguous) {
			s.snapshotFallback(pageID, newMD, err)
			return nil, true, nil
		}
		return nil, false, err
	}

	applied = make([]*ops.Operation, 0, len(parsed))
	for _, op := range parsed {
		res, err := s.docs.Apply(op)
		if err != nil {
			// A mid-sequence failure leaves the tree in a state the
			// remaining operations were not computed against.
			s.snapshotFallback(pageID, newMD, err)
			return applied, true, nil
		}
		applied = append(applied, res.Op)
		if s.broker != nil {
			s.broker.PublishOperation(pageID, res.Op)
		}
	}

	s.setSnapshot(pageID, newMD)
	s.scheduleSave(pageID)
	return applied, false, nil
}

// validateTree rejects documents whose parent references form a cycle,
// before they can enter the store.
func validateTree(doc *models.Document) error {
	for gi := range doc.Groups {
		if id := hierarchy.FindCycle(doc.Groups[gi].Items); id != "" {
			return fmt.Errorf("docservice: item %s: parent chain is cyclic: %w", id, apperr.ErrInvalidParent)
		}
	}
	return nil
}

// snapshotFallback records the raw markdown when it could not be
// translated into operations, so the text survives a reload.
func (s *Service) snapshotFallback(pageID, md string, cause error) {
	s.logger.Warn("markdown diff fallback: storing raw snapshot",
		slog.String("page_id", pageID),
		slog.String("error", cause.Error()))
	s.setSnapshot(pageID, md)
	s.scheduleSave(pageID)
}

func (s *Service) setSnapshot(pageID, md string) {
	if p, ok := s.docs.Get(pageID); ok {
		p.Doc.MarkdownSnapshot = md
		p.Doc.UpdatedAt = time.Now()
	}
}

// Flush persists a document immediately, cancelling any pending timer.
func (s *Service) Flush(id string) error {
	s.cancelSave(id)
	return s.flush(id)
}

// FlushAll persists every document with a pending save. Called on
// shutdown.
func (s *Service) FlushAll() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.timers))
	for id, t := range s.timers {
		t.Stop()
		ids = append(ids, id)
	}
	s.timers = make(map[string]*time.Timer)
	s.mu.Unlock()

	for _, id := range ids {
		if err := s.flush(id); err != nil {
			s.logger.Error("flush failed", slog.String("doc_id", id), slog.String("error", err.Error()))
		}
	}
}

// open returns the page for id, loading it from disk on first access.
func (s *Service) open(id string) (*docstore.Page, error) {
	if p, ok := s.docs.Get(id); ok {
		return p, nil
	}
	data, err := s.store.Read(storage.DocPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	var doc models.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("docservice: decode %s: %w", id, err)
	}
	doc.ID = id
	return s.docs.Open(&doc), nil
}

// scheduleSave arms (or re-arms) the debounce timer for id. Rapid
// operation bursts collapse into one disk write after a quiet interval.
func (s *Service) scheduleSave(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[id]; ok {
		t.Reset(s.saveDelay)
		return
	}
	s.timers[id] = time.AfterFunc(s.saveDelay, func() {
		s.mu.Lock()
		delete(s.timers, id)
		s.mu.Unlock()
		if err := s.flush(id); err != nil {
			s.logger.Error("debounced save failed", slog.String("doc_id", id), slog.String("error", err.Error()))
		}
	})
}

func (s *Service) cancelSave(id string) {
	s.mu.Lock()
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()
}

// flush writes the current tree to disk and re-indexes it.
func (s *Service) flush(id string) error {
	doc, ok := s.docs.Snapshot(id)
	if !ok {
		return nil
	}
	return s.persist(doc)
}

// persist encodes doc, writes it atomically, and upserts the index row.
func (s *Service) persist(doc *models.Document) error {
	data, err := encode(doc)
	if err != nil {
		return err
	}
	if err := s.store.Write(storage.DocPath(doc.ID), data); err != nil {
		return err
	}
	return s.db.UpsertDocument(doc, checksum.Sum(data))
}

// detail builds the full representation for an open page.
func (s *Service) detail(id string, p *docstore.Page) (*DocumentDetail, error) {
	doc, ok := s.docs.Snapshot(id)
	if !ok {
		return nil, apperr.ErrNotFound
	}
	data, err := encode(doc)
	if err != nil {
		return nil, err
	}
	return &DocumentDetail{
		Document: doc,
		Checksum: checksum.Sum(data),
		CanUndo:  p.Ledger.CanUndo(),
		CanRedo:  p.Ledger.CanRedo(),
	}, nil
}

func encode(doc *models.Document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("docservice: encode %s: %w", doc.ID, err)
	}
	return append(data, '\n'), nil
}
