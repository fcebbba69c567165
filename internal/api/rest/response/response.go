// Package response writes JSON bodies and maps domain errors to HTTP statuses.
package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/baghaven/storefront/internal/model"
)

// BlockedMessage is the body message for requests from blocked accounts.
const BlockedMessage = "account blocked"

// Message is the JSON error body.
type Message struct {
	Message string `json:"message"`
}

// JSON writes v with status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// Status maps err to an HTTP status and the message safe to show the client.
func Status(err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrInvalidInput), errors.Is(err, model.ErrInvalidStatus):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, model.ErrUnauthorized), errors.Is(err, model.ErrInvalidToken):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, model.ErrBlocked):
		return http.StatusForbidden, BlockedMessage
	case errors.Is(err, model.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, model.ErrAlreadyExists):
		return http.StatusConflict, err.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// Error writes err as a JSON error body.
func Error(w http.ResponseWriter, err error) {
	status, msg := Status(err)
	JSON(w, status, Message{Message: msg})
}
