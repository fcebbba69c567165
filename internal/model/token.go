package model

// TokenManager issues and verifies bearer tokens on the development API server.
type TokenManager interface {
	Issue(user User) (string, error)
	Parse(token string) (Claims, error)
}
