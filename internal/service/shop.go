package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/baghaven/storefront/internal/logger"
	"github.com/baghaven/storefront/internal/model"
)

// Shop serves the catalog, per-user collections and orders of the
// development API server.
type Shop struct {
	productStore  model.ProductStore
	cartStore     model.CollectionStore
	wishlistStore model.CollectionStore
	orderStore    model.OrderStore
	logger        *logger.Logger
}

func NewShop(
	productStore model.ProductStore,
	cartStore model.CollectionStore,
	wishlistStore model.CollectionStore,
	orderStore model.OrderStore,
	logger *logger.Logger,
) *Shop {
	return &Shop{
		productStore:  productStore,
		cartStore:     cartStore,
		wishlistStore: wishlistStore,
		orderStore:    orderStore,
		logger:        logger,
	}
}

func (s *Shop) Products(ctx context.Context) ([]model.Product, error) {
	products, err := s.productStore.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

func (s *Shop) Product(ctx context.Context, id string) (model.Product, error) {
	p, err := s.productStore.GetByID(ctx, id)
	if err != nil {
		return model.Product{}, fmt.Errorf("failed to get product %s: %w", id, err)
	}
	return p, nil
}

// Cart returns the user's cart lines with their products attached.
func (s *Shop) Cart(ctx context.Context, userID string) ([]model.Item, error) {
	return s.items(ctx, s.cartStore, userID)
}

// Wishlist returns the user's wishlist entries with their products attached.
func (s *Shop) Wishlist(ctx context.Context, userID string) ([]model.Item, error) {
	return s.items(ctx, s.wishlistStore, userID)
}

func (s *Shop) items(ctx context.Context, store model.CollectionStore, userID string) ([]model.Item, error) {
	items, err := store.Items(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	out := make([]model.Item, 0, len(items))
	for _, it := range items {
		p, err := s.productStore.GetByID(ctx, it.ProductID)
		if errors.Is(err, model.ErrNotFound) {
			s.logger.Warn("Shop service: dropping item of deleted product",
				"user_id", userID,
				"product_id", it.ProductID)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get product %s: %w", it.ProductID, err)
		}
		it.Product = &p
		out = append(out, it)
	}
	return out, nil
}

// AddToCart adds quantity of productID to the cart, merging with an existing line.
func (s *Shop) AddToCart(ctx context.Context, userID, productID string, quantity int) error {
	if quantity <= 0 {
		quantity = 1
	}
	if _, err := s.Product(ctx, productID); err != nil {
		return err
	}
	items, err := s.cartStore.Items(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list cart: %w", err)
	}
	for _, it := range items {
		if it.ProductID == productID {
			quantity += it.Quantity
			break
		}
	}
	if err := s.cartStore.Put(ctx, userID, model.Item{ProductID: productID, Quantity: quantity}); err != nil {
		return fmt.Errorf("failed to add to cart: %w", err)
	}
	s.logger.Debug("Shop service: cart updated",
		"user_id", userID,
		"product_id", productID,
		"quantity", quantity)
	return nil
}

// SetCartQuantity sets the quantity of a cart line; zero or less removes it.
func (s *Shop) SetCartQuantity(ctx context.Context, userID, productID string, quantity int) error {
	if quantity <= 0 {
		return s.RemoveFromCart(ctx, userID, productID)
	}
	items, err := s.cartStore.Items(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list cart: %w", err)
	}
	found := false
	for _, it := range items {
		if it.ProductID == productID {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("cart item %s: %w", productID, model.ErrNotFound)
	}
	if err := s.cartStore.Put(ctx, userID, model.Item{ProductID: productID, Quantity: quantity}); err != nil {
		return fmt.Errorf("failed to update cart: %w", err)
	}
	return nil
}

func (s *Shop) RemoveFromCart(ctx context.Context, userID, productID string) error {
	if err := s.cartStore.Remove(ctx, userID, productID); err != nil {
		return fmt.Errorf("failed to remove cart item %s: %w", productID, err)
	}
	return nil
}

// AddToWishlist adds productID once; repeated adds are no-ops.
func (s *Shop) AddToWishlist(ctx context.Context, userID, productID string) error {
	if _, err := s.Product(ctx, productID); err != nil {
		return err
	}
	if err := s.wishlistStore.Put(ctx, userID, model.Item{ProductID: productID}); err != nil {
		return fmt.Errorf("failed to add to wishlist: %w", err)
	}
	return nil
}

func (s *Shop) RemoveFromWishlist(ctx context.Context, userID, productID string) error {
	if err := s.wishlistStore.Remove(ctx, userID, productID); err != nil {
		return fmt.Errorf("failed to remove wishlist item %s: %w", productID, err)
	}
	return nil
}

// PlaceOrder creates a pending order for userID and empties the cart.
// Line prices and names are taken from the catalog, not from the draft.
func (s *Shop) PlaceOrder(ctx context.Context, userID string, draft model.OrderDraft) (model.Order, error) {
	if len(draft.Items) == 0 {
		return model.Order{}, fmt.Errorf("%w: order has no items", model.ErrInvalidInput)
	}
	if strings.TrimSpace(draft.ShippingAddress.Street) == "" {
		return model.Order{}, fmt.Errorf("%w: shipping address is required", model.ErrInvalidInput)
	}

	lines := make([]model.OrderItem, 0, len(draft.Items))
	for _, it := range draft.Items {
		if it.Quantity <= 0 {
			return model.Order{}, fmt.Errorf("%w: quantity of %s must be positive", model.ErrInvalidInput, it.ProductID)
		}
		p, err := s.Product(ctx, it.ProductID)
		if err != nil {
			return model.Order{}, err
		}
		lines = append(lines, model.OrderItem{ProductID: p.ID, Name: p.Name, Price: p.Price, Quantity: it.Quantity})
	}
	draft.Items = lines

	payment := draft.PaymentInfo
	if payment.Status == "" {
		payment.Status = "pending"
	}
	order, err := s.orderStore.Create(ctx, model.Order{
		UserID:          userID,
		Status:          model.StatusPending,
		Items:           lines,
		Totals:          draft.ComputeTotals(),
		ShippingAddress: draft.ShippingAddress,
		PaymentInfo:     payment,
	})
	if err != nil {
		return model.Order{}, fmt.Errorf("failed to create order: %w", err)
	}

	if err := s.cartStore.Clear(ctx, userID); err != nil {
		s.logger.Error("Shop service: failed to clear cart after order",
			"user_id", userID,
			"order_id", order.ID,
			"error", err.Error())
	}

	s.logger.Info("Shop service: order placed",
		"user_id", userID,
		"order_id", order.ID,
		"total", order.Totals.Total)
	return order, nil
}

func (s *Shop) UserOrders(ctx context.Context, userID string) ([]model.Order, error) {
	orders, err := s.orderStore.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

func (s *Shop) AllOrders(ctx context.Context) ([]model.Order, error) {
	orders, err := s.orderStore.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

func (s *Shop) UpdateOrderStatus(ctx context.Context, orderID string, status model.OrderStatus) (model.Order, error) {
	if _, err := model.ParseOrderStatus(string(status)); err != nil {
		return model.Order{}, err
	}
	order, err := s.orderStore.UpdateStatus(ctx, orderID, status)
	if err != nil {
		return model.Order{}, fmt.Errorf("failed to update order %s: %w", orderID, err)
	}
	s.logger.Info("Shop service: order status updated",
		"order_id", orderID,
		"status", string(status))
	return order, nil
}
