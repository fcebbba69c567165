package model

import "context"

// AuthResult is the response of login and register.
type AuthResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// RegisterParams are the fields needed to create an account.
type RegisterParams struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ProfileUpdate carries the editable profile fields.
type ProfileUpdate struct {
	Name    string `json:"name,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

// AuthAPI is the remote authentication surface used by the session reconciler.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (AuthResult, error)
	Register(ctx context.Context, params RegisterParams) (AuthResult, error)
	Me(ctx context.Context) (User, error)
	UpdateProfile(ctx context.Context, update ProfileUpdate) (User, error)
}

// CollectionAPI is a remote per-user collection of products (cart or wishlist).
type CollectionAPI interface {
	List(ctx context.Context) ([]Item, error)
	Add(ctx context.Context, productID string, quantity int) error
	Remove(ctx context.Context, productID string) error
	UpdateQuantity(ctx context.Context, productID string, quantity int) error
}

// OrderAPI is the remote order surface for one scope.
type OrderAPI interface {
	List(ctx context.Context) ([]Order, error)
	Create(ctx context.Context, draft OrderDraft) (Order, error)
	UpdateStatus(ctx context.Context, id string, status OrderStatus) (Order, error)
}
