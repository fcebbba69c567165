package handler

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/baghaven/storefront/internal/api/rest/response"
	"github.com/baghaven/storefront/internal/logger"
	"github.com/baghaven/storefront/internal/model"
)

// ShopService defines catalog, collection and order operations.
type ShopService interface {
	Products(ctx context.Context) ([]model.Product, error)
	Product(ctx context.Context, id string) (model.Product, error)
	Cart(ctx context.Context, userID string) ([]model.Item, error)
	AddToCart(ctx context.Context, userID, productID string, quantity int) error
	SetCartQuantity(ctx context.Context, userID, productID string, quantity int) error
	RemoveFromCart(ctx context.Context, userID, productID string) error
	Wishlist(ctx context.Context, userID string) ([]model.Item, error)
	AddToWishlist(ctx context.Context, userID, productID string) error
	RemoveFromWishlist(ctx context.Context, userID, productID string) error
	PlaceOrder(ctx context.Context, userID string, draft model.OrderDraft) (model.Order, error)
	UserOrders(ctx context.Context, userID string) ([]model.Order, error)
	AllOrders(ctx context.Context) ([]model.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID string, status model.OrderStatus) (model.Order, error)
}

// Shop handles catalog, cart, wishlist and order endpoints.
type Shop struct {
	shopService    ShopService
	contextManager model.ContextManager
	logger         *logger.Logger
}

// NewShop creates a new Shop handler.
func NewShop(shopService ShopService, contextManager model.ContextManager, logger *logger.Logger) *Shop {
	return &Shop{
		shopService:    shopService,
		contextManager: contextManager,
		logger:         logger,
	}
}

type itemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type itemsResponse struct {
	Items []model.Item `json:"items"`
}

type productsResponse struct {
	Products []model.Product `json:"products"`
}

type orderResponse struct {
	Order model.Order `json:"order"`
}

type ordersResponse struct {
	Orders []model.Order `json:"orders"`
}

// Products lists the catalog as {products}.
func (h *Shop) Products(w http.ResponseWriter, r *http.Request) {
	products, err := h.shopService.Products(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, productsResponse{Products: products})
}

// Product returns one bare product document.
func (h *Shop) Product(w http.ResponseWriter, r *http.Request) {
	p, err := h.shopService.Product(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, p)
}

func (h *Shop) writeCart(w http.ResponseWriter, r *http.Request, userID string, status int) {
	items, err := h.shopService.Cart(r.Context(), userID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, status, itemsResponse{Items: items})
}

// Cart returns the cart as {items} with products embedded.
func (h *Shop) Cart(w http.ResponseWriter, r *http.Request) {
	id, err := userID(h.contextManager, r)
	if err != nil {
		response.Error(w, err)
		return
	}
	h.writeCart(w, r, id, http.StatusOK)
}

// AddToCart adds {productId, quantity} and returns the cart.
func (h *Shop) AddToCart(w http.ResponseWriter, r *http.Request) {
	id, err := userID(h.contextManager, r)
	if err != nil {
		response.Error(w, err)
		return
	}
	var req itemRequest
	if err := decode(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	if err := h.shopService.AddToCart(r.Context(), id, req.ProductID, req.Quantity); err != nil {
		response.Error(w, err)
		return
	}
	h.writeCart(w, r, id, http.StatusOK)
}

// UpdateCartItem sets the quantity of a cart line and returns the cart.
func (h *Shop) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	id, err := userID(h.contextManager, r)
	if err != nil {
		response.Error(w, err)
		return
	}
	var req itemRequest
	if err := decode(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	if err := h.shopService.SetCartQuantity(r.Context(), id, mux.Vars(r)["productId"], req.Quantity); err != nil {
		response.Error(w, err)
		return
	}
	h.writeCart(w, r, id, http.StatusOK)
}

// RemoveCartItem deletes a cart line and returns the cart.
func (h *Shop) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	id, err := userID(h.contextManager, r)
	if err != nil {
		response.Error(w, err)
		return
	}
	if err := h.shopService.RemoveFromCart(r.Context(), id, mux.Vars(r)["productId"]); err != nil {
		response.Error(w, err)
		return
	}
	h.writeCart(w, r, id, http.StatusOK)
}

// Wishlist returns the wishlist as a bare array of product documents.
func (h *Shop) Wishlist(w http.ResponseWriter, r *http.Request) {
	id, err := userID(h.contextManager, r)
	if err != nil {
		response.Error(w, err)
		return
	}
	items, err := h.shopService.Wishlist(r.Context(), id)
	if err != nil {
		response.Error(w, err)
		return
	}
	products := make([]model.Product, 0, len(items))
	for _, it := range items {
		if it.Product != nil {
			products = append(products, *it.Product)
		}
	}
	response.JSON(w, http.StatusOK, products)
}

// AddToWishlist adds {productId}.
func (h *Shop) AddToWishlist(w http.ResponseWriter, r *http.Request) {
	id, err := userID(h.contextManager, r)
	if err != nil {
		response.Error(w, err)
		return
	}
	var req itemRequest
	if err := decode(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	if err := h.shopService.AddToWishlist(r.Context(), id, req.ProductID); err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, map[string]bool{"success": true})
}

// RemoveWishlistItem deletes a wishlist entry.
func (h *Shop) RemoveWishlistItem(w http.ResponseWriter, r *http.Request) {
	id, err := userID(h.contextManager, r)
	if err != nil {
		response.Error(w, err)
		return
	}
	if err := h.shopService.RemoveFromWishlist(r.Context(), id, mux.Vars(r)["productId"]); err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusNoContent, nil)
}

// CreateOrder places an order from the checkout draft and returns {order}.
func (h *Shop) CreateOrder(w http.ResponseWriter, r *http.Request) {
	id, err := userID(h.contextManager, r)
	if err != nil {
		response.Error(w, err)
		return
	}
	var draft model.OrderDraft
	if err := decode(r, &draft); err != nil {
		response.Error(w, err)
		return
	}
	order, err := h.shopService.PlaceOrder(r.Context(), id, draft)
	if err != nil {
		h.logger.Info("Shop handler: order rejected",
			"user_id", id,
			"error", err.Error())
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, orderResponse{Order: order})
}

// MyOrders returns the caller's orders as {orders}.
func (h *Shop) MyOrders(w http.ResponseWriter, r *http.Request) {
	id, err := userID(h.contextManager, r)
	if err != nil {
		response.Error(w, err)
		return
	}
	orders, err := h.shopService.UserOrders(r.Context(), id)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, ordersResponse{Orders: orders})
}
