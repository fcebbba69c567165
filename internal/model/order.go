package model

import (
	"context"
	"fmt"
	"time"
)

// OrderSource tags where a merged order came from.
type OrderSource string

const (
	// SourceRemote orders came from the storefront API and are authoritative.
	SourceRemote OrderSource = "remote"
	// SourceLocal orders exist only in the client's cached order list.
	SourceLocal OrderSource = "local"
)

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

// ParseOrderStatus validates s as an OrderStatus.
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch st := OrderStatus(s); st {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return st, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
}

// Order is a placed order as seen by the client.
type Order struct {
	ID              string          `json:"_id"`
	Source          OrderSource     `json:"source,omitempty"`
	UserID          string          `json:"user,omitempty"`
	Status          OrderStatus     `json:"status"`
	Items           []OrderItem     `json:"items"`
	Totals          Totals          `json:"totals"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	PaymentInfo     PaymentInfo     `json:"paymentInfo"`
	CreatedAt       time.Time       `json:"createdAt,omitzero"`
}

// OrderItem is a line within an order.
type OrderItem struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

// Totals are the monetary amounts of an order.
type Totals struct {
	Subtotal float64 `json:"subtotal"`
	Shipping float64 `json:"shipping"`
	Tax      float64 `json:"tax"`
	Total    float64 `json:"total"`
}

// ShippingAddress is where an order ships to.
type ShippingAddress struct {
	FullName   string `json:"fullName"`
	Street     string `json:"street"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

// PaymentInfo records how an order was paid.
type PaymentInfo struct {
	Method        string `json:"method"`
	TransactionID string `json:"transactionId,omitempty"`
	Status        string `json:"status,omitempty"`
}

// OrderDraft is the checkout payload used to place an order.
type OrderDraft struct {
	Items           []OrderItem     `json:"items"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	PaymentInfo     PaymentInfo     `json:"paymentInfo"`
	Shipping        float64         `json:"shipping"`
	Tax             float64         `json:"tax"`
}

// ComputeTotals sums the draft's lines.
func (d OrderDraft) ComputeTotals() Totals {
	var subtotal float64
	for _, it := range d.Items {
		subtotal += it.Price * float64(it.Quantity)
	}
	return Totals{
		Subtotal: subtotal,
		Shipping: d.Shipping,
		Tax:      d.Tax,
		Total:    subtotal + d.Shipping + d.Tax,
	}
}

// OrderStore defines persistence operations for orders of the development API server.
type OrderStore interface {
	Create(ctx context.Context, order Order) (Order, error)
	GetByID(ctx context.Context, id string) (Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	List(ctx context.Context) ([]Order, error)
	UpdateStatus(ctx context.Context, id string, status OrderStatus) (Order, error)
}
