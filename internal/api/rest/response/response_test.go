package response

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/baghaven/storefront/internal/model"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"invalid input", fmt.Errorf("%w: bad email", model.ErrInvalidInput), http.StatusBadRequest, "invalid input: bad email"},
		{"invalid status", model.ErrInvalidStatus, http.StatusBadRequest, "invalid order status"},
		{"unauthorized", fmt.Errorf("wrapped: %w", model.ErrUnauthorized), http.StatusUnauthorized, "unauthorized"},
		{"blocked", model.ErrBlocked, http.StatusForbidden, "account blocked"},
		{"forbidden", model.ErrForbidden, http.StatusForbidden, "forbidden"},
		{"not found", fmt.Errorf("order x: %w", model.ErrNotFound), http.StatusNotFound, "not found"},
		{"conflict", fmt.Errorf("email taken: %w", model.ErrAlreadyExists), http.StatusConflict, "email taken: already exists"},
		{"internal", errors.New("db down"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, msg := Status(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.msg, msg)
		})
	}
}

func TestError(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, model.ErrBlocked)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"message":"account blocked"}`, rec.Body.String())
}

func TestJSON_NilBody(t *testing.T) {
	rec := httptest.NewRecorder()
	JSON(rec, http.StatusNoContent, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}
