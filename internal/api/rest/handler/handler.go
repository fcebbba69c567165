// Package handler implements the storefront REST endpoints of the
// development API server.
package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/baghaven/storefront/internal/model"
)

const maxBodySize = 1 << 20

func decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed JSON body", model.ErrInvalidInput)
	}
	return nil
}

func userID(cm model.ContextManager, r *http.Request) (string, error) {
	id, ok := cm.GetUserIDFromContext(r.Context())
	if !ok {
		return "", model.ErrUnauthorized
	}
	return id, nil
}
