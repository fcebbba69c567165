package handler

import (
	"context"
	"net/http"

	"github.com/baghaven/storefront/internal/api/rest/response"
	"github.com/baghaven/storefront/internal/logger"
	"github.com/baghaven/storefront/internal/model"
)

// AuthService defines account operations.
type AuthService interface {
	Register(ctx context.Context, params model.RegisterParams) (model.AuthResult, error)
	Login(ctx context.Context, email, password string) (model.AuthResult, error)
	Me(ctx context.Context, userID string) (model.User, error)
	UpdateProfile(ctx context.Context, userID string, update model.ProfileUpdate) (model.User, error)
}

// Auth handles authentication and profile endpoints.
type Auth struct {
	authService    AuthService
	contextManager model.ContextManager
	logger         *logger.Logger
}

// NewAuth creates a new Auth handler.
func NewAuth(authService AuthService, contextManager model.ContextManager, logger *logger.Logger) *Auth {
	return &Auth{
		authService:    authService,
		contextManager: contextManager,
		logger:         logger,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	Success bool       `json:"success,omitempty"`
	User    model.User `json:"user"`
}

// Register creates an account and returns {token, user}.
func (h *Auth) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterParams
	if err := decode(r, &req); err != nil {
		response.Error(w, err)
		return
	}

	res, err := h.authService.Register(r.Context(), req)
	if err != nil {
		h.logger.Info("Auth handler: registration failed",
			"email", req.Email,
			"error", err.Error())
		response.Error(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, res)
}

// Login returns {token, user} for valid credentials.
func (h *Auth) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		response.Error(w, err)
		return
	}

	res, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Info("Auth handler: login failed",
			"email", req.Email,
			"error", err.Error())
		response.Error(w, err)
		return
	}

	response.JSON(w, http.StatusOK, res)
}

// Me returns the authenticated user as {user}.
func (h *Auth) Me(w http.ResponseWriter, r *http.Request) {
	id, err := userID(h.contextManager, r)
	if err != nil {
		response.Error(w, err)
		return
	}
	user, err := h.authService.Me(r.Context(), id)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, userResponse{User: user})
}

// UpdateProfile saves profile fields and returns {success, user}.
func (h *Auth) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, err := userID(h.contextManager, r)
	if err != nil {
		response.Error(w, err)
		return
	}
	var req model.ProfileUpdate
	if err := decode(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	user, err := h.authService.UpdateProfile(r.Context(), id, req)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, userResponse{Success: true, User: user})
}
