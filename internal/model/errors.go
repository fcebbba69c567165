package model

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrBlocked             = errors.New("account blocked")
	ErrAlreadyExists       = errors.New("already exists")
	ErrInvalidToken        = errors.New("invalid token")
	ErrWatchUnsupported    = errors.New("store does not support watching")
	ErrQuantityUnsupported = errors.New("collection does not support quantities")
	ErrInvalidStatus       = errors.New("invalid order status")
	ErrInvalidInput        = errors.New("invalid input")
)

// APIError is a non-2xx response from the storefront API that has no
// dedicated sentinel.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("api error: %d %s", e.Status, e.Message)
}

// NewAPIError creates an APIError.
func NewAPIError(status int, message string) *APIError {
	return &APIError{Status: status, Message: message}
}
