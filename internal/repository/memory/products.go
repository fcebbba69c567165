package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/baghaven/storefront/internal/model"
)

var _ model.ProductStore = (*ProductRepository)(nil)

// ProductRepository is the catalog, kept in insertion order.
type ProductRepository struct {
	mu       sync.RWMutex
	products []model.Product
}

func NewProductRepository(seed ...model.Product) *ProductRepository {
	r := &ProductRepository{}
	for _, p := range seed {
		_, _ = r.Create(context.Background(), p)
	}
	return r
}

func (r *ProductRepository) List(_ context.Context) ([]model.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.products), nil
}

func (r *ProductRepository) GetByID(_ context.Context, id string) (model.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i := slices.IndexFunc(r.products, func(p model.Product) bool { return p.ID == id })
	if i < 0 {
		return model.Product{}, model.ErrNotFound
	}
	return r.products[i], nil
}

func (r *ProductRepository) Create(_ context.Context, product model.Product) (model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	if slices.ContainsFunc(r.products, func(p model.Product) bool { return p.ID == product.ID }) {
		return model.Product{}, model.ErrAlreadyExists
	}
	r.products = append(r.products, product)
	return product, nil
}

// DefaultProducts is the catalog the development server starts with.
func DefaultProducts() []model.Product {
	return []model.Product{
		{ID: "bag-tote-001", Name: "Canvas Tote", Price: 29.99, Category: "totes", Stock: 40,
			Description: "Everyday canvas tote with inner pocket."},
		{ID: "bag-back-002", Name: "Leather Backpack", Price: 149, Category: "backpacks", Stock: 12,
			Description: "Full-grain leather with padded laptop sleeve."},
		{ID: "bag-cross-003", Name: "Mini Crossbody", Price: 59.5, Category: "crossbody", Stock: 25,
			Description: "Compact crossbody with adjustable strap."},
		{ID: "bag-duff-004", Name: "Weekender Duffel", Price: 119, Category: "travel", Stock: 8,
			Description: "Water-resistant duffel for short trips."},
	}
}
