// Package paypal is a minimal PayPal Orders v2 client: create an order for an
// amount and capture it after the buyer approved it.
package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/baghaven/storefront/internal/logger"
)

const maxErrorBody = 64 << 10

// Link is a HATEOAS link returned with an order.
type Link struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method,omitempty"`
}

// Order is a PayPal checkout order.
type Order struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []Link `json:"links,omitempty"`
}

// ApproveURL returns the link the buyer follows to approve the order.
func (o Order) ApproveURL() string {
	for _, l := range o.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			return l.Href
		}
	}
	return ""
}

// Capture is the result of capturing an approved order.
type Capture struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Payer  struct {
		Email string `json:"email_address"`
	} `json:"payer"`
}

// Error is a non-2xx answer from PayPal.
type Error struct {
	Status  int
	Name    string `json:"name"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("paypal: %d %s: %s", e.Status, e.Name, e.Message)
}

// Client calls the PayPal REST API with a client-credentials token. The
// token is fetched on first use and reused until it expires.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *logger.Logger
}

// NewClient creates a Client for the PayPal environment at baseURL.
// ctx governs token requests for the lifetime of the client.
func NewClient(ctx context.Context, clientID, secret, baseURL string, logger *logger.Logger) *Client {
	base := strings.TrimRight(baseURL, "/")
	cc := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: secret,
		TokenURL:     base + "/v1/oauth2/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	return &Client{
		baseURL: base,
		http:    cc.Client(ctx),
		logger:  logger,
	}
}

type amount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type purchaseUnit struct {
	Amount amount `json:"amount"`
}

type createOrderRequest struct {
	Intent        string         `json:"intent"`
	PurchaseUnits []purchaseUnit `json:"purchase_units"`
}

// CreateOrder creates a CAPTURE order for value in currency.
func (c *Client) CreateOrder(ctx context.Context, value float64, currency string) (Order, error) {
	if value <= 0 {
		return Order{}, fmt.Errorf("paypal: amount must be positive, got %v", value)
	}
	if currency == "" {
		currency = "USD"
	}
	body := createOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []purchaseUnit{{Amount: amount{
			CurrencyCode: strings.ToUpper(currency),
			Value:        strconv.FormatFloat(value, 'f', 2, 64),
		}}},
	}

	var out Order
	if err := c.post(ctx, "/v2/checkout/orders", body, &out); err != nil {
		return Order{}, fmt.Errorf("failed to create paypal order: %w", err)
	}
	c.logger.Info("PayPal: order created", "order_id", out.ID, "status", out.Status)
	return out, nil
}

// CaptureOrder captures the approved order id.
func (c *Client) CaptureOrder(ctx context.Context, id string) (Capture, error) {
	if id == "" {
		return Capture{}, fmt.Errorf("paypal: order id is empty")
	}
	var out Capture
	if err := c.post(ctx, "/v2/checkout/orders/"+url.PathEscape(id)+"/capture", struct{}{}, &out); err != nil {
		return Capture{}, fmt.Errorf("failed to capture paypal order: %w", err)
	}
	c.logger.Info("PayPal: order captured", "order_id", out.ID, "status", out.Status)
	return out, nil
}

func (c *Client) post(ctx context.Context, path string, body, dest any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &Error{Status: resp.StatusCode}
		if json.Unmarshal(raw, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return apiErr
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
