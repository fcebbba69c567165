// Package collection keeps a local copy of a remote product collection (cart
// or wishlist). Mutations apply locally first; a failed remote call is
// repaired by refetching the whole list.
package collection

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/baghaven/storefront/internal/bus"
	"github.com/baghaven/storefront/internal/logger"
	"github.com/baghaven/storefront/internal/model"
)

// Kind selects collection semantics.
type Kind string

const (
	// KindCart lines carry quantities.
	KindCart Kind = "cart"
	// KindWishlist entries are present or absent.
	KindWishlist Kind = "wishlist"
)

// Snapshot is a consistent view of the reconciler.
type Snapshot struct {
	Kind  Kind
	Load  LoadState
	Phase Phase
	// Pending is the number of mutations awaiting the server.
	Pending int
	Items   []model.Item
}

type mutation struct {
	op    string
	phase Phase
}

// Reconciler keeps one collection in step with the storefront API.
type Reconciler struct {
	kind   Kind
	api    model.CollectionAPI
	bus    *bus.Bus
	logger *logger.Logger

	mu        sync.Mutex
	items     []model.Item
	load      LoadState
	gen       uint64
	inflight  map[*mutation]struct{}
	nextObs   uint64
	observers map[uint64]func(Snapshot)
}

// NewReconciler creates a Reconciler of kind backed by api.
func NewReconciler(kind Kind, api model.CollectionAPI, signals *bus.Bus, logger *logger.Logger) *Reconciler {
	return &Reconciler{
		kind:      kind,
		api:       api,
		bus:       signals,
		logger:    logger.With("collection", string(kind)),
		inflight:  make(map[*mutation]struct{}),
		observers: make(map[uint64]func(Snapshot)),
	}
}

// Kind returns the collection kind.
func (r *Reconciler) Kind() Kind {
	return r.kind
}

// Mount refreshes now and on every auth or storage signal.
func (r *Reconciler) Mount(ctx context.Context) func() {
	off := r.bus.OnAny(func(string) { _ = r.Refresh(ctx) }, bus.AuthStateChanged, bus.StorageChanged)
	_ = r.Refresh(ctx)
	return off
}

// Subscribe registers fn to receive a snapshot after every change.
func (r *Reconciler) Subscribe(fn func(Snapshot)) func() {
	r.mu.Lock()
	r.nextObs++
	id := r.nextObs
	r.observers[id] = fn
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.observers, id)
			r.mu.Unlock()
		})
	}
}

// Refresh replaces the local items with the server's list. A failed fetch
// leaves the collection empty; the error is returned for callers that care.
// A refresh overtaken by a newer one is discarded.
func (r *Reconciler) Refresh(ctx context.Context) error {
	r.mu.Lock()
	r.gen++
	gen := r.gen
	r.load = LoadLoading
	r.mu.Unlock()
	r.publish()

	items, err := r.api.List(ctx)

	r.mu.Lock()
	if gen != r.gen {
		r.mu.Unlock()
		r.logger.Debug("Collection: discarding stale list response", "generation", gen)
		return err
	}
	if err != nil {
		r.logger.Debug("Collection: list failed, showing empty collection", "error", err.Error())
		r.items = nil
	} else {
		r.items = r.dedupe(items)
	}
	r.load = LoadLoaded
	r.mu.Unlock()
	r.publish()

	return err
}

func (r *Reconciler) dedupe(items []model.Item) []model.Item {
	out := make([]model.Item, 0, len(items))
	index := make(map[string]int, len(items))
	for _, it := range items {
		if it.ProductID == "" {
			continue
		}
		if i, ok := index[it.ProductID]; ok {
			if r.kind == KindCart {
				out[i].Quantity += it.Quantity
			}
			continue
		}
		if r.kind == KindCart && it.Quantity <= 0 {
			it.Quantity = 1
		}
		index[it.ProductID] = len(out)
		out = append(out, it)
	}
	return out
}

func (r *Reconciler) indexOf(productID string) int {
	return slices.IndexFunc(r.items, func(it model.Item) bool { return it.ProductID == productID })
}

// Add puts product into the collection. The cart adds qty to an existing
// line; the wishlist ignores products it already holds.
func (r *Reconciler) Add(ctx context.Context, product model.Product, qty int) error {
	if product.ID == "" {
		return errors.New("product id is empty")
	}
	if qty <= 0 {
		qty = 1
	}

	m := r.begin("add")
	r.mu.Lock()
	i := r.indexOf(product.ID)
	present := i >= 0
	switch {
	case present && r.kind == KindCart:
		r.items[i].Quantity += qty
	case present:
	default:
		p := product
		item := model.Item{ProductID: product.ID, Product: &p}
		if r.kind == KindCart {
			item.Quantity = qty
		}
		r.items = append(r.items, item)
	}
	r.mu.Unlock()
	r.publish()

	if present && r.kind == KindWishlist {
		return r.finish(ctx, m, nil)
	}
	return r.finish(ctx, m, r.api.Add(ctx, product.ID, qty))
}

// Remove drops productID from the collection.
func (r *Reconciler) Remove(ctx context.Context, productID string) error {
	m := r.begin("remove")
	r.mu.Lock()
	r.items = slices.DeleteFunc(r.items, func(it model.Item) bool { return it.ProductID == productID })
	r.mu.Unlock()
	r.publish()

	return r.finish(ctx, m, r.api.Remove(ctx, productID))
}

// UpdateQuantity sets the cart quantity of productID; qty <= 0 removes the line.
func (r *Reconciler) UpdateQuantity(ctx context.Context, productID string, qty int) error {
	if r.kind != KindCart {
		return model.ErrQuantityUnsupported
	}
	if qty <= 0 {
		return r.Remove(ctx, productID)
	}

	m := r.begin("update_quantity")
	r.mu.Lock()
	if i := r.indexOf(productID); i >= 0 {
		r.items[i].Quantity = qty
	}
	r.mu.Unlock()
	r.publish()

	return r.finish(ctx, m, r.api.UpdateQuantity(ctx, productID, qty))
}

// begin registers a mutation in the optimistic phase.
func (r *Reconciler) begin(op string) *mutation {
	m := &mutation{op: op, phase: PhaseIdle}
	r.mu.Lock()
	r.advance(m, PhaseOptimistic)
	r.inflight[m] = struct{}{}
	r.mu.Unlock()
	return m
}

// finish settles m after the remote call returned remoteErr.
func (r *Reconciler) finish(ctx context.Context, m *mutation, remoteErr error) error {
	if remoteErr == nil {
		r.mu.Lock()
		r.advance(m, PhaseConfirmed)
		r.advance(m, PhaseIdle)
		delete(r.inflight, m)
		r.mu.Unlock()
		r.publish()
		return nil
	}

	r.logger.Warn("Collection: mutation failed, refetching",
		"op", m.op,
		"error", remoteErr.Error())

	r.mu.Lock()
	r.advance(m, PhaseReconciling)
	r.mu.Unlock()
	r.publish()

	_ = r.Refresh(ctx)

	r.mu.Lock()
	r.advance(m, PhaseIdle)
	delete(r.inflight, m)
	r.mu.Unlock()
	r.publish()

	return remoteErr
}

// advance moves m to phase to. Callers hold r.mu.
func (r *Reconciler) advance(m *mutation, to Phase) {
	if !m.phase.CanTransition(to) {
		r.logger.Error("Collection: invalid phase transition",
			"op", m.op,
			"from", m.phase.String(),
			"to", to.String())
		return
	}
	m.phase = to
}

// phase aggregates in-flight mutations. Callers hold r.mu.
func (r *Reconciler) phase() Phase {
	out := PhaseIdle
	for m := range r.inflight {
		switch m.phase {
		case PhaseReconciling:
			return PhaseReconciling
		case PhaseOptimistic, PhaseConfirmed:
			out = m.phase
		}
	}
	return out
}

func (r *Reconciler) snapshotLocked() Snapshot {
	return Snapshot{
		Kind:    r.kind,
		Load:    r.load,
		Phase:   r.phase(),
		Pending: len(r.inflight),
		Items:   slices.Clone(r.items),
	}
}

func (r *Reconciler) publish() {
	r.mu.Lock()
	snap := r.snapshotLocked()
	fns := make([]func(Snapshot), 0, len(r.observers))
	for _, fn := range r.observers {
		fns = append(fns, fn)
	}
	r.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

// Snapshot returns the current state.
func (r *Reconciler) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Items returns a copy of the current items.
func (r *Reconciler) Items() []model.Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.items)
}

// Count is the number of units in the cart, or of entries in the wishlist.
func (r *Reconciler) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.kind == KindWishlist {
		return len(r.items)
	}
	n := 0
	for _, it := range r.items {
		n += it.Quantity
	}
	return n
}

// Contains reports whether productID is in the collection.
func (r *Reconciler) Contains(productID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.indexOf(productID) >= 0
}
