// Package remote is the storefront REST API client used by the reconcilers.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/baghaven/storefront/internal/logger"
	"github.com/baghaven/storefront/internal/model"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultUserAgent = "baghaven-client/1.0"
	maxErrorBody     = 64 << 10
)

// Client talks to the storefront API on behalf of one session scope. The
// bearer token is read from the store on every request, so a login in another
// process takes effect without rebuilding the client.
type Client struct {
	baseURL  string
	http     *http.Client
	store    model.Store
	tokenKey string
	logger   *logger.Logger
}

var _ model.AuthAPI = (*Client)(nil)

// NewClient creates a Client for baseURL authenticating with the token stored
// under tokenKey.
func NewClient(baseURL string, timeout time.Duration, store model.Store, tokenKey string, logger *logger.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: timeout},
		store:    store,
		tokenKey: tokenKey,
		logger:   logger,
	}
}

// WithTokenKey returns a copy of c that authenticates with the token under key.
func (c *Client) WithTokenKey(key string) *Client {
	cp := *c
	cp.tokenKey = key
	return &cp
}

type request struct {
	method string
	path   string
	auth   bool
	body   any
}

func (c *Client) token(ctx context.Context) (string, error) {
	tok, ok, err := c.store.Get(ctx, c.tokenKey)
	if err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	if !ok || tok == "" {
		return "", fmt.Errorf("%w: no %s in store", model.ErrUnauthorized, c.tokenKey)
	}
	return tok, nil
}

// do performs r and decodes a 2xx JSON response into dest when dest is non-nil.
func (c *Client) do(ctx context.Context, r request, dest any) error {
	var bearer string
	if r.auth {
		tok, err := c.token(ctx)
		if err != nil {
			return err
		}
		bearer = tok
	}

	var body io.Reader
	if r.body != nil {
		raw, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", defaultUserAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		err := responseError(resp)
		c.logger.Debug("Remote: request failed",
			"method", r.method,
			"path", r.path,
			"status", resp.StatusCode,
			"error", err.Error())
		return err
	}
	if dest == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// responseError maps a non-2xx response to a model error.
func responseError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var eb errorBody
	msg := ""
	if json.Unmarshal(raw, &eb) == nil {
		msg = eb.Message
		if msg == "" {
			msg = eb.Error
		}
	}
	if msg == "" {
		msg = strings.TrimSpace(string(raw))
	}

	var sentinel error
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		sentinel = model.ErrUnauthorized
	case http.StatusForbidden:
		if strings.Contains(strings.ToLower(msg), "blocked") {
			sentinel = model.ErrBlocked
		} else {
			sentinel = model.ErrForbidden
		}
	case http.StatusNotFound:
		sentinel = model.ErrNotFound
	default:
		return model.NewAPIError(resp.StatusCode, msg)
	}
	if msg == "" {
		return sentinel
	}
	return fmt.Errorf("%w: %s", sentinel, msg)
}

// IsAuthError reports whether err means the stored credentials were rejected.
func IsAuthError(err error) bool {
	return errors.Is(err, model.ErrUnauthorized) || errors.Is(err, model.ErrForbidden) || errors.Is(err, model.ErrBlocked)
}
