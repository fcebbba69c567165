package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/baghaven/storefront/internal/model"
)

// Products lists the catalog.
func (c *Client) Products(ctx context.Context) ([]model.Product, error) {
	var raw json.RawMessage
	if err := c.do(ctx, request{method: http.MethodGet, path: "/products"}, &raw); err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	list, err := unwrapList(raw, "products", "data")
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	products := make([]model.Product, 0, len(list))
	for _, r := range list {
		var p model.Product
		if err := json.Unmarshal(r, &p); err != nil {
			return nil, fmt.Errorf("failed to decode product: %w", err)
		}
		products = append(products, p)
	}
	return products, nil
}

// Product returns one catalog entry.
func (c *Client) Product(ctx context.Context, id string) (model.Product, error) {
	var raw json.RawMessage
	if err := c.do(ctx, request{method: http.MethodGet, path: "/products/" + url.PathEscape(id)}, &raw); err != nil {
		return model.Product{}, fmt.Errorf("failed to get product: %w", err)
	}
	var wrapped struct {
		Product *model.Product `json:"product"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Product != nil {
		return *wrapped.Product, nil
	}
	var p model.Product
	if err := json.Unmarshal(raw, &p); err != nil {
		return model.Product{}, fmt.Errorf("failed to decode product: %w", err)
	}
	return p, nil
}

// PaymentOrder is the provider order created for a checkout.
type PaymentOrder struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type paymentRequest struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// CreatePayment starts a PayPal payment through the storefront API.
func (c *Client) CreatePayment(ctx context.Context, amount float64, currency string) (PaymentOrder, error) {
	var out PaymentOrder
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/payments/paypal/create",
		auth:   true,
		body:   paymentRequest{Amount: amount, Currency: currency},
	}, &out)
	if err != nil {
		return PaymentOrder{}, fmt.Errorf("failed to create payment: %w", err)
	}
	return out, nil
}

// CapturePayment captures an approved PayPal payment.
func (c *Client) CapturePayment(ctx context.Context, id string) (PaymentOrder, error) {
	var out PaymentOrder
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/payments/paypal/capture/" + url.PathEscape(id),
		auth:   true,
	}, &out)
	if err != nil {
		return PaymentOrder{}, fmt.Errorf("failed to capture payment: %w", err)
	}
	return out, nil
}
