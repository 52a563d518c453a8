// Package projection keeps per-view representations of a document in sync
// with the canonical tree.
//
// A projection derives its view shape from the canonical model (Project)
// and patches it in place for single operations (ApplyOperation). Both
// paths must land on the same output: incremental updates are an
// optimization, never an alternative truth. When a view has no incremental
// strategy for an operation kind, or its incremental update fails, the
// projection falls back to a full re-projection.
package projection

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/mjelva/tavle/internal/models"
	"github.com/mjelva/tavle/internal/ops"
)

// State is the projection lifecycle: uninitialized until registered,
// active while receiving broadcasts, destroyed after teardown.
type State int

const (
	StateUninitialized State = iota
	StateActive
	StateDestroyed
)

// errFullRefresh is returned by incremental appliers that have no strategy
// for an operation kind.
var errFullRefresh = fmt.Errorf("projection: no incremental strategy")

// Config describes one view's projection behavior. Project is required;
// Apply and Filter are optional.
type Config struct {
	ViewID string
	PageID string

	// Project derives the full view shape from the canonical model.
	Project func(doc *models.Document) (any, error)

	// Apply patches the cached shape for one operation and returns the
	// updated shape. Return an error to request a full refresh instead.
	Apply func(doc *models.Document, op *ops.Operation, current any) (any, error)

	// Filter is an extra relevance check on top of the page match. A nil
	// filter accepts every operation on the projection's page.
	Filter func(op *ops.Operation) bool

	// OnUpdate, when set, observes every new projected value.
	OnUpdate func(data any)
}

// Projection is one live view subscription.
type Projection struct {
	cfg    Config
	state  State
	cached any
}

// New creates an uninitialized projection. It starts receiving operations
// once registered with a Registry.
func New(cfg Config) *Projection {
	return &Projection{cfg: cfg}
}

// ViewID returns the view identifier.
func (p *Projection) ViewID() string { return p.cfg.ViewID }

// PageID returns the document this projection tracks.
func (p *Projection) PageID() string { return p.cfg.PageID }

// State returns the lifecycle state.
func (p *Projection) State() State { return p.state }

// Data returns the cached projected value.
func (p *Projection) Data() any { return p.cached }

// Refresh recomputes the projection from scratch.
func (p *Projection) Refresh(doc *models.Document) error {
	if p.state == StateDestroyed {
		return nil
	}
	data, err := p.cfg.Project(doc)
	if err != nil {
		return fmt.Errorf("projection %s: project: %w", p.cfg.ViewID, err)
	}
	p.cached = data
	if p.cfg.OnUpdate != nil {
		p.cfg.OnUpdate(data)
	}
	return nil
}

// relevant reports whether the projection should react to op.
func (p *Projection) relevant(op *ops.Operation) bool {
	if p.state != StateActive {
		return false
	}
	if op.PageID != "" && op.PageID != p.cfg.PageID {
		return false
	}
	if p.cfg.Filter != nil && !p.cfg.Filter(op) {
		return false
	}
	return true
}

// apply performs the incremental update, downgrading to a full refresh on
// any error or panic. A view's rendering bug must not break the broadcast
// or leave half-patched output visible.
func (p *Projection) apply(doc *models.Document, op *ops.Operation) {
	incremental := func() (data any, err error) {
		if p.cfg.Apply == nil {
			return nil, errFullRefresh
		}
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("projection %s: apply panic: %v", p.cfg.ViewID, r)
			}
		}()
		return p.cfg.Apply(doc, op, p.cached)
	}

	data, err := incremental()
	if err != nil {
		if err != errFullRefresh {
			slog.Warn("projection: incremental update failed, full refresh",
				slog.String("view_id", p.cfg.ViewID),
				slog.String("op", string(op.Kind)),
				slog.String("error", err.Error()))
		}
		if rerr := p.Refresh(doc); rerr != nil {
			slog.Error("projection: full refresh failed",
				slog.String("view_id", p.cfg.ViewID),
				slog.String("error", rerr.Error()))
		}
		return
	}
	p.cached = data
	if p.cfg.OnUpdate != nil {
		p.cfg.OnUpdate(data)
	}
}

// Destroy tears the projection down. A destroyed projection ignores all
// further broadcasts; this is a hard check in the broadcast path, not a
// best-effort convention.
func (p *Projection) Destroy() {
	p.state = StateDestroyed
	p.cached = nil
}

// Registry fans applied operations out to registered projections.
//
// Broadcast is synchronous and ordered: every active, relevant projection
// handles the operation, in registration order, before Broadcast returns.
// There is no queue and no goroutine per subscriber.
type Registry struct {
	mu          sync.Mutex
	projections []*Projection
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register activates the projection (computing its initial data from doc)
// and adds it to the broadcast list.
func (r *Registry) Register(p *Projection, doc *models.Document) error {
	if p.state == StateDestroyed {
		return fmt.Errorf("projection %s: register after destroy", p.cfg.ViewID)
	}
	p.state = StateActive
	if err := p.Refresh(doc); err != nil {
		p.state = StateUninitialized
		return err
	}
	r.mu.Lock()
	r.projections = append(r.projections, p)
	r.mu.Unlock()
	return nil
}

// Unregister destroys the projection and removes it from the broadcast
// list.
func (r *Registry) Unregister(p *Projection) {
	p.Destroy()
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, q := range r.projections {
		if q == p {
			r.projections = append(r.projections[:i], r.projections[i+1:]...)
			return
		}
	}
}

// DropPage destroys every projection tied to pageID. Called on document
// close.
func (r *Registry) DropPage(pageID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.projections[:0]
	for _, p := range r.projections {
		if p.cfg.PageID == pageID {
			p.Destroy()
			continue
		}
		kept = append(kept, p)
	}
	r.projections = kept
}

// RefreshPage re-projects every active projection tied to doc. Used after
// history replays, where no single operation describes the delta.
func (r *Registry) RefreshPage(doc *models.Document) {
	r.mu.Lock()
	snapshot := make([]*Projection, len(r.projections))
	copy(snapshot, r.projections)
	r.mu.Unlock()

	for _, p := range snapshot {
		if p.state != StateActive || p.cfg.PageID != doc.ID {
			continue
		}
		if err := p.Refresh(doc); err != nil {
			slog.Error("projection: refresh failed",
				slog.String("view_id", p.cfg.ViewID),
				slog.String("error", err.Error()))
		}
	}
}

// Broadcast delivers one applied operation to every relevant projection.
// Projections destroyed during the walk are skipped between operations,
// never interrupted inside one.
func (r *Registry) Broadcast(doc *models.Document, op *ops.Operation) {
	r.mu.Lock()
	snapshot := make([]*Projection, len(r.projections))
	copy(snapshot, r.projections)
	r.mu.Unlock()

	for _, p := range snapshot {
		if !p.relevant(op) {
			continue
		}
		p.apply(doc, op)
	}
}
