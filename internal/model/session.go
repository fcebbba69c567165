package model

import "time"

// Claims are the bearer token fields the client relies on.
type Claims struct {
	Subject   string
	Role      string
	ExpiresAt *time.Time
}

// Expired reports whether the claims expired at now. Tokens without an
// expiry never expire on the client side.
func (c Claims) Expired(now time.Time) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return !now.Before(*c.ExpiresAt)
}

// Session is the client's derived view of identity for one Scope.
type Session struct {
	Token           string
	Claims          Claims
	User            *User
	IsAuthenticated bool
}

// Scope binds a session to its persisted keys and role requirements.
type Scope struct {
	Name         string
	TokenKey     string
	UserKey      string
	OrdersKey    string
	RequiredRole string
	LoginPath    string
}

// Satisfies reports whether role passes the scope's role requirement.
func (s Scope) Satisfies(role string) bool {
	return s.RequiredRole == "" || s.RequiredRole == role
}

var (
	// UserScope is the storefront customer session.
	UserScope = Scope{
		Name:      "user",
		TokenKey:  KeyToken,
		UserKey:   KeyUser,
		OrdersKey: KeyUserOrders,
		LoginPath: "/login",
	}
	// AdminScope is the admin dashboard session.
	AdminScope = Scope{
		Name:         "admin",
		TokenKey:     KeyAdminToken,
		UserKey:      KeyUser,
		OrdersKey:    KeyAdminOrders,
		RequiredRole: RoleAdmin,
		LoginPath:    "/admin/login",
	}
)

// TokenDecoder extracts claims from a bearer token without verifying it.
type TokenDecoder interface {
	Decode(token string) (Claims, error)
}
