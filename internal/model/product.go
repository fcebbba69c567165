package model

import "context"

// ProductStore defines catalog persistence of the development API server.
type ProductStore interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (Product, error)
	Create(ctx context.Context, product Product) (Product, error)
}

// CollectionStore persists per-user collections (cart, wishlist) of the
// development API server.
type CollectionStore interface {
	Items(ctx context.Context, userID string) ([]Item, error)
	Put(ctx context.Context, userID string, item Item) error
	Remove(ctx context.Context, userID, productID string) error
	Clear(ctx context.Context, userID string) error
}
