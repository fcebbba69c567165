package middleware

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/baghaven/storefront/internal/logger"
)

func TestLogging_Handle(t *testing.T) {
	tests := []struct {
		name      string
		handler   http.HandlerFunc
		wantCode  int
		wantLevel string
	}{
		{
			name: "implicit ok",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("ok"))
			},
			wantCode:  http.StatusOK,
			wantLevel: "level=INFO",
		},
		{
			name: "client error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
			wantCode:  http.StatusNotFound,
			wantLevel: "level=INFO",
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			wantCode:  http.StatusInternalServerError,
			wantLevel: "level=ERROR",
		},
		{
			name:      "nothing written",
			handler:   func(w http.ResponseWriter, r *http.Request) {},
			wantCode:  http.StatusOK,
			wantLevel: "level=INFO",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			lg := NewLogging(logger.NewWithWriter(&buf, int(slog.LevelInfo)))

			rec := httptest.NewRecorder()
			lg.Handle(tt.handler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products", nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			out := buf.String()
			assert.Contains(t, out, tt.wantLevel)
			assert.Contains(t, out, "path=/api/products")
			assert.Contains(t, out, fmt.Sprintf("status=%d", tt.wantCode))
		})
	}
}
