package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/baghaven/storefront/internal/logger"
	"github.com/baghaven/storefront/internal/model"
)

const minPasswordLength = 6

// Auth handles accounts of the development API server.
type Auth struct {
	userStore    model.UserStore
	tokenManager model.TokenManager
	logger       *logger.Logger
	cost         int
}

func NewAuth(
	userStore model.UserStore,
	tokenManager model.TokenManager,
	logger *logger.Logger,
) *Auth {
	return &Auth{
		userStore:    userStore,
		tokenManager: tokenManager,
		logger:       logger,
		cost:         bcrypt.DefaultCost,
	}
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return "", fmt.Errorf("%w: invalid email %q", model.ErrInvalidInput, email)
	}
	return email, nil
}

func (a *Auth) Register(ctx context.Context, params model.RegisterParams) (model.AuthResult, error) {
	a.logger.Debug("Auth service: starting user registration",
		"email", params.Email)

	email, err := normalizeEmail(params.Email)
	if err != nil {
		return model.AuthResult{}, err
	}
	if len(params.Password) < minPasswordLength {
		return model.AuthResult{}, fmt.Errorf("%w: password must be at least %d characters", model.ErrInvalidInput, minPasswordLength)
	}

	_, err = a.userStore.GetByEmail(ctx, email)
	if err == nil {
		a.logger.Info("Auth service: user already exists",
			"email", email)
		return model.AuthResult{}, fmt.Errorf("email %s is already taken: %w", email, model.ErrAlreadyExists)
	}
	if !errors.Is(err, model.ErrNotFound) {
		a.logger.Error("Auth service: failed to get user by email",
			"email", email,
			"error", err.Error())
		return model.AuthResult{}, fmt.Errorf("failed to get user by email: %w", err)
	}

	user, err := a.createUser(ctx, model.User{
		Name:  strings.TrimSpace(params.Name),
		Email: email,
		Role:  model.RoleUser,
	}, params.Password)
	if err != nil {
		return model.AuthResult{}, err
	}

	token, err := a.tokenManager.Issue(user.User)
	if err != nil {
		return model.AuthResult{}, fmt.Errorf("failed to issue token: %w", err)
	}

	a.logger.Info("Auth service: user registration completed successfully",
		"email", email,
		"user_id", user.ID)

	return model.AuthResult{Token: token, User: user.User}, nil
}

func (a *Auth) createUser(ctx context.Context, user model.User, password string) (model.StoredUser, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return model.StoredUser{}, fmt.Errorf("failed to hash password: %w", err)
	}
	created, err := a.userStore.Create(ctx, model.StoredUser{User: user, PasswordHash: hash})
	if err != nil {
		a.logger.Error("Auth service: failed to create user",
			"email", user.Email,
			"error", err.Error())
		return model.StoredUser{}, fmt.Errorf("failed to create user: %w", err)
	}
	return created, nil
}

func (a *Auth) Login(ctx context.Context, email, password string) (model.AuthResult, error) {
	a.logger.Debug("Auth service: starting user login",
		"email", email)

	user, err := a.userStore.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, model.ErrNotFound) {
		return model.AuthResult{}, fmt.Errorf("invalid credentials: %w", model.ErrUnauthorized)
	}
	if err != nil {
		return model.AuthResult{}, fmt.Errorf("failed to get user by email: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		a.logger.Info("Auth service: wrong password",
			"email", email)
		return model.AuthResult{}, fmt.Errorf("invalid credentials: %w", model.ErrUnauthorized)
	}
	if user.Blocked {
		a.logger.Info("Auth service: blocked user tried to log in",
			"user_id", user.ID)
		return model.AuthResult{}, model.ErrBlocked
	}

	token, err := a.tokenManager.Issue(user.User)
	if err != nil {
		return model.AuthResult{}, fmt.Errorf("failed to issue token: %w", err)
	}

	a.logger.Info("Auth service: login completed successfully",
		"user_id", user.ID)

	return model.AuthResult{Token: token, User: user.User}, nil
}

// Authenticate resolves a bearer token to its user. Blocked users are
// rejected even when their token is still valid.
func (a *Auth) Authenticate(ctx context.Context, token string) (model.User, error) {
	if token == "" {
		return model.User{}, fmt.Errorf("missing authorization token: %w", model.ErrUnauthorized)
	}
	claims, err := a.tokenManager.Parse(token)
	if err != nil {
		return model.User{}, fmt.Errorf("invalid authorization token: %w", model.ErrUnauthorized)
	}

	user, err := a.userStore.GetByID(ctx, claims.Subject)
	if errors.Is(err, model.ErrNotFound) {
		return model.User{}, fmt.Errorf("unknown user: %w", model.ErrUnauthorized)
	}
	if err != nil {
		return model.User{}, fmt.Errorf("failed to get user by id: %w", err)
	}
	if user.Blocked {
		return model.User{}, model.ErrBlocked
	}
	return user.User, nil
}

func (a *Auth) Me(ctx context.Context, userID string) (model.User, error) {
	user, err := a.userStore.GetByID(ctx, userID)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to get user by id: %w", err)
	}
	return user.User, nil
}

func (a *Auth) UpdateProfile(ctx context.Context, userID string, update model.ProfileUpdate) (model.User, error) {
	user, err := a.userStore.GetByID(ctx, userID)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to get user by id: %w", err)
	}

	if name := strings.TrimSpace(update.Name); name != "" {
		user.Name = name
	}
	if update.Phone != "" {
		user.Phone = strings.TrimSpace(update.Phone)
	}
	if update.Address != "" {
		user.Address = strings.TrimSpace(update.Address)
	}

	saved, err := a.userStore.Update(ctx, user)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to update user: %w", err)
	}

	a.logger.Info("Auth service: profile updated",
		"user_id", userID)
	return saved.User, nil
}

// SetBlocked blocks or unblocks a user.
func (a *Auth) SetBlocked(ctx context.Context, userID string, blocked bool) (model.User, error) {
	user, err := a.userStore.GetByID(ctx, userID)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to get user by id: %w", err)
	}
	user.Blocked = blocked
	saved, err := a.userStore.Update(ctx, user)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to update user: %w", err)
	}

	a.logger.Info("Auth service: user block state changed",
		"user_id", userID,
		"blocked", blocked)
	return saved.User, nil
}

// Users lists every account.
func (a *Auth) Users(ctx context.Context) ([]model.User, error) {
	stored, err := a.userStore.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	out := make([]model.User, 0, len(stored))
	for _, u := range stored {
		out = append(out, u.User)
	}
	return out, nil
}

// EnsureAdmin creates the admin account unless a user with email exists.
func (a *Auth) EnsureAdmin(ctx context.Context, email, password string) (model.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return model.User{}, err
	}
	existing, err := a.userStore.GetByEmail(ctx, email)
	if err == nil {
		return existing.User, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return model.User{}, fmt.Errorf("failed to get user by email: %w", err)
	}

	created, err := a.createUser(ctx, model.User{Name: "Admin", Email: email, Role: model.RoleAdmin}, password)
	if err != nil {
		return model.User{}, err
	}
	a.logger.Info("Auth service: admin account created",
		"email", email)
	return created.User, nil
}
