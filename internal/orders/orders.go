// Package orders merges the server's order list with orders cached on the
// client and routes status changes to whichever side owns each order.
package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/baghaven/storefront/internal/bus"
	"github.com/baghaven/storefront/internal/logger"
	"github.com/baghaven/storefront/internal/model"
)

// Reconciler maintains the merged order list of one scope.
type Reconciler struct {
	scope  model.Scope
	api    model.OrderAPI
	store  model.Store
	bus    *bus.Bus
	logger *logger.Logger
	now    func() time.Time

	mu        sync.Mutex
	orders    []model.Order
	nextObs   uint64
	observers map[uint64]func([]model.Order)
}

// NewReconciler creates a Reconciler for scope. The cache lives under scope.OrdersKey.
func NewReconciler(scope model.Scope, api model.OrderAPI, store model.Store, signals *bus.Bus, logger *logger.Logger) *Reconciler {
	return &Reconciler{
		scope:     scope,
		api:       api,
		store:     store,
		bus:       signals,
		logger:    logger.With("orders", scope.Name),
		now:       time.Now,
		observers: make(map[uint64]func([]model.Order)),
	}
}

// Mount lists now and again on every auth or storage signal.
func (r *Reconciler) Mount(ctx context.Context) func() {
	off := r.bus.OnAny(func(string) {
		if _, err := r.List(ctx); err != nil {
			r.logger.Error("Orders: failed to reload", "error", err)
		}
	}, bus.AuthStateChanged, bus.StorageChanged)
	if _, err := r.List(ctx); err != nil {
		r.logger.Error("Orders: failed to load", "error", err)
	}
	return off
}

// Subscribe registers fn to receive the merged list after every change.
func (r *Reconciler) Subscribe(fn func([]model.Order)) func() {
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

// Orders returns the current merged list.
func (r *Reconciler) Orders() []model.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.orders)
}

func (r *Reconciler) set(orders []model.Order) {
	r.mu.Lock()
	r.orders = orders
	fns := make([]func([]model.Order), 0, len(r.observers))
	for _, fn := range r.observers {
		fns = append(fns, fn)
	}
	r.mu.Unlock()

	for _, fn := range fns {
		fn(slices.Clone(orders))
	}
}

// List fetches remote orders and reads the cache concurrently, merges them
// and keeps the result. A failed remote fetch counts as an empty list.
func (r *Reconciler) List(ctx context.Context) ([]model.Order, error) {
	var remote, cached []model.Order

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		list, err := r.api.List(gctx)
		if err != nil {
			r.logger.Debug("Orders: remote list failed, using cache only", "error", err.Error())
			return nil
		}
		remote = list
		return nil
	})
	g.Go(func() error {
		list, err := r.readCache(gctx)
		if err != nil {
			return err
		}
		cached = list
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := Merge(cached, remote)
	r.set(merged)
	return slices.Clone(merged), nil
}

// UpdateStatus changes the status of order id. Local orders are rewritten in
// the cache; remote orders go through the API.
func (r *Reconciler) UpdateStatus(ctx context.Context, id string, status model.OrderStatus) (model.Order, error) {
	if _, err := model.ParseOrderStatus(string(status)); err != nil {
		return model.Order{}, err
	}

	current, ok := r.find(id)
	if !ok {
		if _, err := r.List(ctx); err != nil {
			return model.Order{}, err
		}
		if current, ok = r.find(id); !ok {
			return model.Order{}, fmt.Errorf("order %s: %w", id, model.ErrNotFound)
		}
	}

	var updated model.Order
	switch current.Source {
	case model.SourceLocal:
		var err error
		updated, err = r.updateCached(ctx, id, status)
		if err != nil {
			return model.Order{}, err
		}
	default:
		ord, err := r.api.UpdateStatus(ctx, id, status)
		if err != nil {
			return model.Order{}, err
		}
		ord.Source = model.SourceRemote
		updated = ord
	}

	r.upsert(updated)
	r.logger.Info("Orders: status updated",
		"order_id", id,
		"source", string(updated.Source),
		"status", string(status))
	return updated, nil
}

func (r *Reconciler) find(id string) (model.Order, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := slices.IndexFunc(r.orders, func(o model.Order) bool { return o.ID == id })
	if i < 0 {
		return model.Order{}, false
	}
	return r.orders[i], true
}

func (r *Reconciler) upsert(o model.Order) {
	r.mu.Lock()
	orders := slices.Clone(r.orders)
	r.mu.Unlock()

	if i := slices.IndexFunc(orders, func(x model.Order) bool { return x.ID == o.ID }); i >= 0 {
		orders[i] = o
	} else {
		orders = append(orders, o)
	}
	sortOrders(orders)
	r.set(orders)
}

func (r *Reconciler) updateCached(ctx context.Context, id string, status model.OrderStatus) (model.Order, error) {
	cached, err := r.readCache(ctx)
	if err != nil {
		return model.Order{}, err
	}
	i := slices.IndexFunc(cached, func(o model.Order) bool { return o.ID == id })
	if i < 0 {
		return model.Order{}, fmt.Errorf("cached order %s: %w", id, model.ErrNotFound)
	}
	cached[i].Status = status
	if err := r.writeCache(ctx, cached); err != nil {
		return model.Order{}, err
	}

	out := cached[i]
	out.Source = model.SourceLocal
	return out, nil
}

// Place submits draft. A server-accepted order is also cached; when the
// server cannot take it the order is kept locally as pending so it still
// shows up in the list.
func (r *Reconciler) Place(ctx context.Context, draft model.OrderDraft) (model.Order, error) {
	ord, err := r.api.Create(ctx, draft)
	if err != nil {
		r.logger.Warn("Orders: remote create failed, keeping order locally", "error", err.Error())
		ord = model.Order{
			ID:              uuid.NewString(),
			Source:          model.SourceLocal,
			Status:          model.StatusPending,
			Items:           draft.Items,
			Totals:          draft.ComputeTotals(),
			ShippingAddress: draft.ShippingAddress,
			PaymentInfo:     draft.PaymentInfo,
			CreatedAt:       r.now().UTC(),
		}
	} else {
		ord.Source = model.SourceRemote
		if ord.CreatedAt.IsZero() {
			ord.CreatedAt = r.now().UTC()
		}
	}

	cached, err := r.readCache(ctx)
	if err != nil {
		return model.Order{}, err
	}
	if i := slices.IndexFunc(cached, func(o model.Order) bool { return o.ID == ord.ID }); i >= 0 {
		cached[i] = ord
	} else {
		cached = append(cached, ord)
	}
	if err := r.writeCache(ctx, cached); err != nil {
		return model.Order{}, err
	}

	r.upsert(ord)
	return ord, nil
}

func (r *Reconciler) readCache(ctx context.Context) ([]model.Order, error) {
	raw, ok, err := r.store.Get(ctx, r.scope.OrdersKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read order cache: %w", err)
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var orders []model.Order
	if err := json.Unmarshal([]byte(raw), &orders); err != nil {
		r.logger.Warn("Orders: cached orders are unreadable, ignoring them",
			"key", r.scope.OrdersKey,
			"error", err.Error())
		return nil, nil
	}
	return orders, nil
}

func (r *Reconciler) writeCache(ctx context.Context, orders []model.Order) error {
	raw, err := json.Marshal(orders)
	if err != nil {
		return fmt.Errorf("failed to marshal order cache: %w", err)
	}
	if err := r.store.Set(ctx, r.scope.OrdersKey, string(raw)); err != nil {
		return fmt.Errorf("failed to write order cache: %w", err)
	}
	return nil
}
