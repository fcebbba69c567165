package model

import (
	"context"
	"time"
)

// Roles known to the storefront.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is the account record returned by the storefront API and cached
// under the "user" key.
type User struct {
	ID        string    `json:"_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Blocked   bool      `json:"blocked"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
}

// IsAdmin reports whether the user carries the admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// UserStore defines persistence operations for users of the development API server.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (StoredUser, error)
	GetByID(ctx context.Context, id string) (StoredUser, error)
	Create(ctx context.Context, user StoredUser) (StoredUser, error)
	Update(ctx context.Context, user StoredUser) (StoredUser, error)
	List(ctx context.Context) ([]StoredUser, error)
}

// StoredUser is a user with authentication material.
type StoredUser struct {
	User
	PasswordHash []byte
	UpdatedAt    time.Time
}
