package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/baghaven/storefront/internal/model"
)

var _ model.CollectionStore = (*CollectionRepository)(nil)

// CollectionRepository keeps one ordered item list per user. Used for both
// the cart and the wishlist.
type CollectionRepository struct {
	mu     sync.RWMutex
	byUser map[string][]model.Item
}

func NewCollectionRepository() *CollectionRepository {
	return &CollectionRepository{byUser: make(map[string][]model.Item)}
}

func (r *CollectionRepository) Items(_ context.Context, userID string) ([]model.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.byUser[userID]), nil
}

// Put inserts item or replaces the line with the same product.
func (r *CollectionRepository) Put(_ context.Context, userID string, item model.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	items := r.byUser[userID]
	if i := slices.IndexFunc(items, func(it model.Item) bool { return it.ProductID == item.ProductID }); i >= 0 {
		item.ID = items[i].ID
		items[i] = item
		return nil
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	r.byUser[userID] = append(items, item)
	return nil
}

func (r *CollectionRepository) Remove(_ context.Context, userID, productID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	items := r.byUser[userID]
	i := slices.IndexFunc(items, func(it model.Item) bool { return it.ProductID == productID })
	if i < 0 {
		return model.ErrNotFound
	}
	r.byUser[userID] = slices.Delete(items, i, i+1)
	return nil
}

func (r *CollectionRepository) Clear(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byUser, userID)
	return nil
}
