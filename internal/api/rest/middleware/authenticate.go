package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/baghaven/storefront/internal/api/rest/response"
	"github.com/baghaven/storefront/internal/logger"
	"github.com/baghaven/storefront/internal/model"
)

// Authenticator resolves bearer tokens to users.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (model.User, error)
}

// Authenticate validates bearer tokens and injects the user id into the
// request context. Blocked accounts get 403 "account blocked".
type Authenticate struct {
	authService    Authenticator
	contextManager model.ContextManager
	logger         *logger.Logger
}

// NewAuthenticate creates a new Authenticate middleware instance.
func NewAuthenticate(authService Authenticator, contextManager model.ContextManager, logger *logger.Logger) *Authenticate {
	return &Authenticate{authService: authService, contextManager: contextManager, logger: logger}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// Handle wraps next with authentication.
func (m *Authenticate) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := m.authService.Authenticate(r.Context(), bearerToken(r))
		if err != nil {
			m.logger.Debug("Authenticate: request rejected",
				"path", r.URL.Path,
				"error", err.Error())
			response.Error(w, err)
			return
		}

		ctx := m.contextManager.SetUserIDToContext(r.Context(), user.ID)
		if user.Role == model.RoleAdmin {
			ctx = context.WithValue(ctx, adminKey{}, true)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type adminKey struct{}

// RequireAdmin lets through only requests authenticated as an admin. It must
// run after Authenticate.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ok, _ := r.Context().Value(adminKey{}).(bool); !ok {
			response.JSON(w, http.StatusForbidden, response.Message{Message: "admin access required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
