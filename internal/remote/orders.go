package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/baghaven/storefront/internal/model"
)

// Orders is the order endpoint set for one scope.
type Orders struct {
	client   *Client
	listPath string
}

var _ model.OrderAPI = (*Orders)(nil)

// Orders returns the signed-in user's orders (GET /orders/my).
func (c *Client) Orders() *Orders {
	return &Orders{client: c, listPath: "/orders/my"}
}

// AdminOrders returns every order (GET /admin/orders).
func (c *Client) AdminOrders() *Orders {
	return &Orders{client: c, listPath: "/admin/orders"}
}

type statusRequest struct {
	Status model.OrderStatus `json:"status"`
}

// List returns the scope's orders as the server sees them.
func (o *Orders) List(ctx context.Context) ([]model.Order, error) {
	var raw json.RawMessage
	if err := o.client.do(ctx, request{method: http.MethodGet, path: o.listPath, auth: true}, &raw); err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	list, err := unwrapList(raw, "orders", "data")
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	orders := make([]model.Order, 0, len(list))
	for _, r := range list {
		var ord model.Order
		if err := json.Unmarshal(r, &ord); err != nil {
			return nil, fmt.Errorf("failed to decode order: %w", err)
		}
		ord.Source = model.SourceRemote
		orders = append(orders, ord)
	}
	return orders, nil
}

// Create places an order from draft.
func (o *Orders) Create(ctx context.Context, draft model.OrderDraft) (model.Order, error) {
	var raw json.RawMessage
	err := o.client.do(ctx, request{
		method: http.MethodPost,
		path:   "/orders",
		auth:   true,
		body:   draft,
	}, &raw)
	if err != nil {
		return model.Order{}, fmt.Errorf("failed to create order: %w", err)
	}
	ord, err := decodeOrder(raw)
	if err != nil {
		return model.Order{}, fmt.Errorf("failed to create order: %w", err)
	}
	return ord, nil
}

// UpdateStatus sets the status of order id and returns the server's copy.
func (o *Orders) UpdateStatus(ctx context.Context, id string, status model.OrderStatus) (model.Order, error) {
	var raw json.RawMessage
	err := o.client.do(ctx, request{
		method: http.MethodPut,
		path:   "/admin/orders/" + url.PathEscape(id) + "/status",
		auth:   true,
		body:   statusRequest{Status: status},
	}, &raw)
	if err != nil {
		return model.Order{}, fmt.Errorf("failed to update order status: %w", err)
	}
	ord, err := decodeOrder(raw)
	if err != nil {
		return model.Order{}, fmt.Errorf("failed to update order status: %w", err)
	}
	return ord, nil
}

// decodeOrder accepts a bare order or one wrapped as {order}.
func decodeOrder(raw json.RawMessage) (model.Order, error) {
	var wrapped struct {
		Order *model.Order `json:"order"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Order != nil {
		wrapped.Order.Source = model.SourceRemote
		return *wrapped.Order, nil
	}
	var ord model.Order
	if err := json.Unmarshal(raw, &ord); err != nil {
		return model.Order{}, fmt.Errorf("failed to decode order: %w", err)
	}
	if ord.ID == "" {
		return model.Order{}, fmt.Errorf("failed to decode order: missing id")
	}
	ord.Source = model.SourceRemote
	return ord, nil
}
