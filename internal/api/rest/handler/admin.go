package handler

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/baghaven/storefront/internal/api/rest/response"
	"github.com/baghaven/storefront/internal/logger"
	"github.com/baghaven/storefront/internal/model"
)

// UserAdmin defines account management operations.
type UserAdmin interface {
	Users(ctx context.Context) ([]model.User, error)
	SetBlocked(ctx context.Context, userID string, blocked bool) (model.User, error)
}

// Admin handles the admin dashboard endpoints.
type Admin struct {
	shopService ShopService
	userAdmin   UserAdmin
	logger      *logger.Logger
}

// NewAdmin creates a new Admin handler.
func NewAdmin(shopService ShopService, userAdmin UserAdmin, logger *logger.Logger) *Admin {
	return &Admin{shopService: shopService, userAdmin: userAdmin, logger: logger}
}

type statusRequest struct {
	Status model.OrderStatus `json:"status"`
}

type blockRequest struct {
	Blocked bool `json:"blocked"`
}

// Orders returns every order as a bare array.
func (h *Admin) Orders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.shopService.AllOrders(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, orders)
}

// UpdateOrderStatus sets {status} on an order and returns {order}.
func (h *Admin) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decode(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	order, err := h.shopService.UpdateOrderStatus(r.Context(), mux.Vars(r)["id"], req.Status)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, orderResponse{Order: order})
}

// Users lists accounts as {users}.
func (h *Admin) Users(w http.ResponseWriter, r *http.Request) {
	users, err := h.userAdmin.Users(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string][]model.User{"users": users})
}

// BlockUser sets {blocked} on an account and returns {user}.
func (h *Admin) BlockUser(w http.ResponseWriter, r *http.Request) {
	var req blockRequest
	if err := decode(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	user, err := h.userAdmin.SetBlocked(r.Context(), mux.Vars(r)["id"], req.Blocked)
	if err != nil {
		response.Error(w, err)
		return
	}
	h.logger.Info("Admin handler: user block state changed",
		"user_id", user.ID,
		"blocked", user.Blocked)
	response.JSON(w, http.StatusOK, userResponse{User: user})
}
