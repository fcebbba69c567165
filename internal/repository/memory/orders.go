package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/baghaven/storefront/internal/model"
)

var _ model.OrderStore = (*OrderRepository)(nil)

// OrderRepository stores orders newest first.
type OrderRepository struct {
	mu     sync.RWMutex
	orders []model.Order
	now    func() time.Time
}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{now: time.Now}
}

func (r *OrderRepository) Create(_ context.Context, order model.Order) (model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = r.now().UTC()
	}
	order.Source = ""
	r.orders = slices.Insert(r.orders, 0, order)
	return order, nil
}

func (r *OrderRepository) GetByID(_ context.Context, id string) (model.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i := slices.IndexFunc(r.orders, func(o model.Order) bool { return o.ID == id })
	if i < 0 {
		return model.Order{}, model.ErrNotFound
	}
	return r.orders[i], nil
}

func (r *OrderRepository) ListByUser(_ context.Context, userID string) ([]model.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []model.Order{}
	for _, o := range r.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *OrderRepository) List(_ context.Context) ([]model.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := slices.Clone(r.orders)
	if out == nil {
		out = []model.Order{}
	}
	return out, nil
}

func (r *OrderRepository) UpdateStatus(_ context.Context, id string, status model.OrderStatus) (model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := slices.IndexFunc(r.orders, func(o model.Order) bool { return o.ID == id })
	if i < 0 {
		return model.Order{}, model.ErrNotFound
	}
	r.orders[i].Status = status
	return r.orders[i], nil
}
