package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/baghaven/storefront/internal/model"
)

// Collection is a per-user product collection endpoint (cart or wishlist).
type Collection struct {
	client     *Client
	name       string
	quantities bool
}

var _ model.CollectionAPI = (*Collection)(nil)

// Cart returns the /cart endpoint.
func (c *Client) Cart() *Collection {
	return &Collection{client: c, name: "cart", quantities: true}
}

// Wishlist returns the /wishlist endpoint.
func (c *Client) Wishlist() *Collection {
	return &Collection{client: c, name: "wishlist"}
}

type addRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity,omitempty"`
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

// List returns the collection's normalized items.
func (col *Collection) List(ctx context.Context) ([]model.Item, error) {
	var raw json.RawMessage
	if err := col.client.do(ctx, request{method: http.MethodGet, path: "/" + col.name, auth: true}, &raw); err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", col.name, err)
	}
	list, err := unwrapList(raw, "items", "products", col.name)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", col.name, err)
	}
	items, err := normalizeItems(list)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", col.name, err)
	}
	return items, nil
}

// Add puts productID into the collection. Quantity is ignored by the wishlist.
func (col *Collection) Add(ctx context.Context, productID string, quantity int) error {
	body := addRequest{ProductID: productID}
	if col.quantities {
		if quantity <= 0 {
			quantity = 1
		}
		body.Quantity = quantity
	}
	err := col.client.do(ctx, request{
		method: http.MethodPost,
		path:   "/" + col.name,
		auth:   true,
		body:   body,
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to add to %s: %w", col.name, err)
	}
	return nil
}

// Remove deletes productID from the collection.
func (col *Collection) Remove(ctx context.Context, productID string) error {
	err := col.client.do(ctx, request{
		method: http.MethodDelete,
		path:   "/" + col.name + "/" + url.PathEscape(productID),
		auth:   true,
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to remove from %s: %w", col.name, err)
	}
	return nil
}

// UpdateQuantity sets the quantity of productID. Only the cart supports it.
func (col *Collection) UpdateQuantity(ctx context.Context, productID string, quantity int) error {
	if !col.quantities {
		return model.ErrQuantityUnsupported
	}
	err := col.client.do(ctx, request{
		method: http.MethodPut,
		path:   "/" + col.name + "/" + url.PathEscape(productID),
		auth:   true,
		body:   quantityRequest{Quantity: quantity},
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to update %s quantity: %w", col.name, err)
	}
	return nil
}
