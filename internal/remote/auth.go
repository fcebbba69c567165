package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/baghaven/storefront/internal/model"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges credentials for a token and user.
func (c *Client) Login(ctx context.Context, email, password string) (model.AuthResult, error) {
	var res model.AuthResult
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/login",
		body:   loginRequest{Email: email, Password: password},
	}, &res)
	if err != nil {
		return model.AuthResult{}, fmt.Errorf("failed to login: %w", err)
	}
	if res.Token == "" {
		return model.AuthResult{}, fmt.Errorf("failed to login: empty token in response")
	}
	return res, nil
}

// Register creates an account and signs it in.
func (c *Client) Register(ctx context.Context, params model.RegisterParams) (model.AuthResult, error) {
	var res model.AuthResult
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/register",
		body:   params,
	}, &res)
	if err != nil {
		return model.AuthResult{}, fmt.Errorf("failed to register: %w", err)
	}
	if res.Token == "" {
		return model.AuthResult{}, fmt.Errorf("failed to register: empty token in response")
	}
	return res, nil
}

// Me returns the server's copy of the authenticated user.
func (c *Client) Me(ctx context.Context) (model.User, error) {
	var raw json.RawMessage
	if err := c.do(ctx, request{method: http.MethodGet, path: "/users/me", auth: true}, &raw); err != nil {
		return model.User{}, fmt.Errorf("failed to get current user: %w", err)
	}
	user, err := decodeUser(raw)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to get current user: %w", err)
	}
	return user, nil
}

// UpdateProfile saves profile fields and returns the updated user.
func (c *Client) UpdateProfile(ctx context.Context, update model.ProfileUpdate) (model.User, error) {
	var raw json.RawMessage
	err := c.do(ctx, request{
		method: http.MethodPut,
		path:   "/users/profile",
		auth:   true,
		body:   update,
	}, &raw)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to update profile: %w", err)
	}
	user, err := decodeUser(raw)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to update profile: %w", err)
	}
	return user, nil
}

// decodeUser accepts a bare user document or one wrapped as {user}.
func decodeUser(raw json.RawMessage) (model.User, error) {
	var wrapped struct {
		User *model.User `json:"user"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.User != nil {
		return *wrapped.User, nil
	}
	var user model.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return model.User{}, fmt.Errorf("failed to decode user: %w", err)
	}
	if user.ID == "" && user.Email == "" {
		return model.User{}, fmt.Errorf("failed to decode user: empty document")
	}
	return user, nil
}
