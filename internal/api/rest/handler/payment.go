package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/baghaven/storefront/internal/api/rest/response"
	"github.com/baghaven/storefront/internal/logger"
	"github.com/baghaven/storefront/internal/model"
	"github.com/baghaven/storefront/internal/payment/paypal"
)

// PaymentProvider creates and captures provider orders.
type PaymentProvider interface {
	CreateOrder(ctx context.Context, value float64, currency string) (paypal.Order, error)
	CaptureOrder(ctx context.Context, id string) (paypal.Capture, error)
}

// Payment proxies checkout payments to the provider.
type Payment struct {
	provider        PaymentProvider
	defaultCurrency string
	logger          *logger.Logger
}

// NewPayment creates a new Payment handler.
func NewPayment(provider PaymentProvider, defaultCurrency string, logger *logger.Logger) *Payment {
	return &Payment{provider: provider, defaultCurrency: defaultCurrency, logger: logger}
}

type paymentRequest struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

type paymentResponse struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	ApproveURL string `json:"approveUrl,omitempty"`
}

func (h *Payment) providerError(w http.ResponseWriter, err error) {
	h.logger.Error("Payment handler: provider call failed", "error", err.Error())
	response.JSON(w, http.StatusBadGateway, response.Message{Message: "payment provider error"})
}

// Create starts a payment for {amount, currency}.
func (h *Payment) Create(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := decode(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	if req.Amount <= 0 {
		response.Error(w, fmt.Errorf("%w: amount must be positive", model.ErrInvalidInput))
		return
	}
	if req.Currency == "" {
		req.Currency = h.defaultCurrency
	}

	order, err := h.provider.CreateOrder(r.Context(), req.Amount, req.Currency)
	if err != nil {
		h.providerError(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, paymentResponse{ID: order.ID, Status: order.Status, ApproveURL: order.ApproveURL()})
}

// Capture captures an approved payment.
func (h *Payment) Capture(w http.ResponseWriter, r *http.Request) {
	capture, err := h.provider.CaptureOrder(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.providerError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, paymentResponse{ID: capture.ID, Status: capture.Status})
}
